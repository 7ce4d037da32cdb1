package ports

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTypes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "rule error",
			err:  NewRuleError("sntv", ErrInvalidWinners),
			want: "rule error: rule=sntv, err=invalid winner set",
		},
		{
			name: "config error",
			err:  NewConfigError("random_bloc.trials", ErrConfigNotFound),
			want: "config error: key=random_bloc.trials, err=configuration not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorTypes_Unwrap(t *testing.T) {
	assert.ErrorIs(t, NewRuleError("bloc", ErrInvalidWinners), ErrInvalidWinners)
	assert.ErrorIs(t, NewConfigError("rules", ErrConfigNotFound), ErrConfigNotFound)

	var cerr *ConfigError
	assert.ErrorAs(t, NewConfigError("groups[1]", errors.New("duplicate")), &cerr)
	assert.Equal(t, "groups[1]", cerr.ConfigKey)
}
