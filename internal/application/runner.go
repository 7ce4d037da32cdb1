package application

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-metricvote/infrastructure/middleware"
	"github.com/ahrav/go-metricvote/internal/domain"
	"github.com/ahrav/go-metricvote/internal/measure"
	"github.com/ahrav/go-metricvote/internal/ports"
)

// defaultProgressPerSecond caps progress log lines when the
// configuration leaves the rate unset.
const defaultProgressPerSecond = 1

// ErrInvalidBatch is returned when a batch fails validation before any
// sample is evaluated.
var ErrInvalidBatch = errors.New("invalid batch")

// Runner evaluates every sample of a batch under every configured rule
// and summarizes the resulting score series.
//
// Samples are evaluated concurrently. Each (sample, rule) pair gets a seed
// derived from the configured seed and its position in the batch, so a
// report depends only on the configuration and the batch, never on
// scheduling.
type Runner struct {
	config   *ExperimentConfig
	registry ports.UnitRegistry
	logger   *zap.Logger
	metrics  ports.MetricsCollector
	validate *validator.Validate
	now      func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithMetrics sets the collector that receives unit and run metrics.
func WithMetrics(metrics ports.MetricsCollector) RunnerOption {
	return func(r *Runner) { r.metrics = metrics }
}

// WithClock overrides the clock used for report timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a Runner for a validated configuration.
func NewRunner(config *ExperimentConfig, registry ports.UnitRegistry, opts ...RunnerOption) (*Runner, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: configuration is required", domain.ErrInvalidConfiguration)
	}
	if registry == nil {
		return nil, fmt.Errorf("%w: unit registry is required", domain.ErrInvalidConfiguration)
	}

	r := &Runner{
		config:   config,
		registry: registry,
		logger:   zap.NewNop(),
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// rulePlan is the evaluation of one rule: the pipeline run on each
// sample's state.
type rulePlan struct {
	name     string
	pipeline *Pipeline
}

// sampleResult holds the measurements of one sample, indexed by rule.
type sampleResult [][]domain.Measurement

// Run evaluates batch and returns its report. The first failing sample
// cancels the rest and its error is returned.
func (r *Runner) Run(ctx context.Context, batch *domain.Batch) (*domain.Report, error) {
	if err := r.validateBatch(batch); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := r.logger.With(
		zap.String("run_id", runID),
		zap.String("batch", batch.Metadata.Name),
	)

	costs, err := r.costMatrixUnit()
	if err != nil {
		return nil, err
	}
	plans, err := r.plans(batch)
	if err != nil {
		return nil, err
	}

	workers := r.config.Concurrency.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	progress := r.config.Concurrency.ProgressPerSecond
	if progress <= 0 {
		progress = defaultProgressPerSecond
	}
	limiter := rate.NewLimiter(rate.Limit(progress), 1)

	logger.Info("run started",
		zap.Int("samples", len(batch.Samples)),
		zap.Int("rules", len(plans)),
		zap.Int("workers", workers),
		zap.Uint64("seed", r.config.Seed),
	)
	start := time.Now()

	results := make([]sampleResult, len(batch.Samples))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range batch.Samples {
		g.Go(func() error {
			res, err := r.evaluateSample(gctx, runID, i, batch.Samples[i], costs, plans)
			if err != nil {
				r.recordCounter("samples_evaluated_total", "error")
				return fmt.Errorf("sample %d: %w", i, err)
			}
			results[i] = res
			r.recordCounter("samples_evaluated_total", "success")

			n := done.Add(1)
			if limiter.Allow() {
				logger.Info("progress",
					zap.Int64("completed", n),
					zap.Int("total", len(batch.Samples)),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("run failed", zap.Error(err), zap.Int64("completed", done.Load()))
		return nil, err
	}

	summaries, err := r.aggregate(ctx, plans, results)
	if err != nil {
		logger.Error("aggregation failed", zap.Error(err))
		return nil, err
	}

	elapsed := time.Since(start)
	if r.metrics != nil {
		r.metrics.RecordLatency("run", elapsed, map[string]string{"unit": "runner"})
	}
	logger.Info("run finished",
		zap.Duration("elapsed", elapsed),
		zap.Int("summaries", len(summaries)),
	)

	return &domain.Report{
		RunID:     runID,
		Batch:     batch.Metadata.Name,
		Samples:   len(batch.Samples),
		Summaries: summaries,
		Timestamp: r.now().UTC(),
	}, nil
}

// validateBatch checks batch metadata and every sample.
func (r *Runner) validateBatch(batch *domain.Batch) error {
	if batch == nil {
		return fmt.Errorf("%w: batch is nil", ErrInvalidBatch)
	}
	if err := r.validate.Struct(batch); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}
	for i, s := range batch.Samples {
		if err := s.Validate(fmt.Sprintf("sample %d", i)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidBatch, err)
		}
	}
	return nil
}

// costMatrixUnit builds the guarded, traced cost matrix step shared by
// every rule.
func (r *Runner) costMatrixUnit() (ports.Unit, error) {
	params := map[string]any{}
	if r.config.Metric.Distance != "" {
		params["distance"] = r.config.Metric.Distance
	}
	if r.config.Metric.FastPath != nil {
		params["fast_path"] = *r.config.Metric.FastPath
	}
	unit, err := r.createUnit("cost_matrix", "cost_matrix", params)
	if err != nil {
		return nil, err
	}
	guarded, err := middleware.NewLimitGuard(r.config.Limits, unit, r.metrics)
	if err != nil {
		return nil, err
	}
	return middleware.NewTracedUnit(guarded, r.metrics), nil
}

// plans resolves each rule's committee size against the batch and builds
// its pipeline: election followed by a layer of measurement units.
func (r *Runner) plans(batch *domain.Batch) ([]rulePlan, error) {
	plans := make([]rulePlan, 0, len(r.config.Rules))
	for _, rc := range r.config.Rules {
		size := rc.CommitteeSize
		if size == 0 {
			size = batch.Metadata.CommitteeSize
		}
		if size == 0 && r.needsElection(batch, rc) {
			return nil, fmt.Errorf("%w: rule %s has no committee size and samples lack its winners",
				domain.ErrInvalidConfiguration, rc.Name)
		}
		if err := r.checkEntitlements(batch, rc, size); err != nil {
			return nil, err
		}

		p, err := r.rulePipeline(rc, size)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rc.Name, err)
		}
		plans = append(plans, rulePlan{name: rc.Name, pipeline: p})
	}
	return plans, nil
}

// checkEntitlements rejects random bloc entitlements that some sample
// cannot satisfy, so a run fails before any sample is evaluated. A sample
// with recorded winners uses their count as the committee size.
func (r *Runner) checkEntitlements(batch *domain.Batch, rc RuleConfig, size int) error {
	rb := r.config.RandomBloc
	if rb == nil {
		return nil
	}
	for i, s := range batch.Samples {
		k := size
		if winners, ok := s.Winners[rc.Name]; ok && !rc.Recompute {
			k = len(winners)
		}
		for _, t := range rb.Representatives {
			if _, err := measure.BlocSize(len(s.Voters), k, t); err != nil {
				return fmt.Errorf("%w: rule %s, sample %d: %w", domain.ErrInvalidConfiguration, rc.Name, i, err)
			}
		}
	}
	return nil
}

// needsElection reports whether some sample must have rc's winners
// computed rather than read from the batch.
func (r *Runner) needsElection(batch *domain.Batch, rc RuleConfig) bool {
	if rc.Recompute {
		return true
	}
	for _, s := range batch.Samples {
		if _, ok := s.Winners[rc.Name]; !ok {
			return true
		}
	}
	return false
}

// rulePipeline assembles the units evaluating one rule.
func (r *Runner) rulePipeline(rc RuleConfig, size int) (*Pipeline, error) {
	p := NewPipeline(rc.Name)

	election, err := r.createUnit("election", "election", map[string]any{
		"rule":           rc.Name,
		"committee_size": size,
		"recompute":      rc.Recompute,
	})
	if err != nil {
		return nil, err
	}
	if err := p.Add(NewUnitAdapter(middleware.NewTracedUnit(election, r.metrics), "")); err != nil {
		return nil, err
	}

	layer := NewLayer(rc.Name + "/measurements")
	for _, g := range r.config.Groups {
		params := map[string]any{"label": g.Label, "overall": g.Overall}
		if g.Size != nil {
			params["size"] = *g.Size
		}
		r.withZeroCostPolicy(params)
		if err := r.addUnit(layer, "group_inefficiency", groupUnitName(g), params); err != nil {
			return nil, err
		}
	}
	if rb := r.config.RandomBloc; rb != nil {
		for _, t := range rb.Representatives {
			params := map[string]any{"representatives": t, "trials": rb.Trials}
			r.withZeroCostPolicy(params)
			if err := r.addUnit(layer, "random_bloc", fmt.Sprintf("random_bloc_t%d", t), params); err != nil {
				return nil, err
			}
		}
	}
	if len(layer.Executables()) > 0 {
		if err := p.Add(layer); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// addUnit creates a traced unit through the registry and adds it to layer.
func (r *Runner) addUnit(layer *Layer, unitType, name string, params map[string]any) error {
	unit, err := r.createUnit(unitType, name, params)
	if err != nil {
		return err
	}
	return layer.Add(NewUnitAdapter(middleware.NewTracedUnit(unit, r.metrics), name))
}

// createUnit builds a unit through the registry and validates it before
// it joins a pipeline.
func (r *Runner) createUnit(unitType, name string, params map[string]any) (ports.Unit, error) {
	unit, err := r.registry.CreateUnit(unitType, name, params)
	if err != nil {
		return nil, err
	}
	if err := unit.Validate(); err != nil {
		return nil, fmt.Errorf("unit %s: %w", name, err)
	}
	return unit, nil
}

func (r *Runner) withZeroCostPolicy(params map[string]any) {
	if p := r.config.Metric.ZeroCostPolicy; p != "" {
		params["zero_cost_policy"] = p
	}
}

// groupUnitName names the unit scoring g. Names double as random stream
// keys and layer IDs, so distinct groups get distinct names.
func groupUnitName(g GroupConfig) string {
	switch {
	case g.Overall && g.Size != nil:
		return fmt.Sprintf("group_overall_size%d", *g.Size)
	case g.Overall:
		return "group_overall"
	case g.Size != nil:
		return fmt.Sprintf("group_label%d_size%d", g.Label, *g.Size)
	default:
		return fmt.Sprintf("group_label%d", g.Label)
	}
}

// evaluateSample builds the sample's cost matrix once and runs every
// rule's pipeline on it.
func (r *Runner) evaluateSample(
	ctx context.Context,
	runID string,
	index int,
	sample domain.Sample,
	costs ports.Unit,
	plans []rulePlan,
) (sampleResult, error) {
	base := domain.NewState().WithMultiple(map[string]any{
		domain.KeyVoters.Name():     sample.Voters,
		domain.KeyCandidates.Name(): sample.Candidates,
		domain.KeyLabels.Name():     sample.LabelsOrDefault(),
	})
	base = base.WithExecutionContext(domain.ExecutionContext{RunID: runID, SampleIndex: index})

	base, err := costs.Execute(ctx, base)
	if err != nil {
		return nil, err
	}

	res := make(sampleResult, len(plans))
	for j, plan := range plans {
		state := base.WithExecutionContext(domain.ExecutionContext{
			RunID:       runID,
			SampleIndex: index,
			Seed:        deriveSeed(r.config.Seed, index, j),
		})
		if winners, ok := sample.Winners[plan.name]; ok {
			state = domain.With(state, domain.KeyWinners, winners)
		}

		out, err := plan.pipeline.Execute(ctx, state)
		if err != nil {
			return nil, err
		}
		res[j], _ = domain.Get(out, domain.KeyMeasurements)
	}
	return res, nil
}

// deriveSeed returns the seed of the (sample, rule) pair.
func deriveSeed(seed uint64, sample, rule int) uint64 {
	return rand.New(rand.NewPCG(seed, uint64(sample)<<32|uint64(rule))).Uint64()
}

// seriesKey identifies one score series.
type seriesKey struct {
	rule   string
	metric string
}

// aggregate collects every (rule, metric) series in sample order and runs
// each configured aggregator over it. Summaries are sorted by rule, then
// metric, then method.
func (r *Runner) aggregate(ctx context.Context, plans []rulePlan, results []sampleResult) ([]domain.Summary, error) {
	series := make(map[seriesKey][]float64)
	for _, res := range results {
		for j, ms := range res {
			for _, m := range ms {
				key := seriesKey{rule: plans[j].name, metric: m.Metric}
				series[key] = append(series[key], m.Score)
			}
		}
	}

	aggregators := make([]ports.Unit, len(r.config.Aggregators))
	for i, agg := range r.config.Aggregators {
		unit, err := createAggregator(r.registry, agg, i)
		if err != nil {
			return nil, err
		}
		aggregators[i] = unit
	}

	summaries := make([]domain.Summary, 0, len(series)*len(aggregators))
	for key, scores := range series {
		state := domain.NewState().WithMultiple(map[string]any{
			domain.KeyScores.Name(): scores,
			domain.KeyRule.Name():   key.rule,
		})
		for _, agg := range aggregators {
			out, err := agg.Execute(ctx, state)
			if err != nil {
				return nil, fmt.Errorf("aggregate %s/%s with %s: %w", key.rule, key.metric, agg.Name(), err)
			}
			summary, ok := domain.Get(out, domain.KeySummary)
			if !ok {
				return nil, domain.MissingKey(domain.KeySummary)
			}
			s := *summary
			s.Metric = key.metric
			summaries = append(summaries, s)

			if r.metrics != nil {
				r.metrics.RecordGauge(key.rule+"/"+key.metric+"/"+s.Method, s.Value, map[string]string{"unit": "runner"})
			}
		}
	}

	slices.SortFunc(summaries, func(a, b domain.Summary) int {
		return cmp.Or(
			cmp.Compare(a.Rule, b.Rule),
			cmp.Compare(a.Metric, b.Metric),
			cmp.Compare(a.Method, b.Method),
		)
	})
	return summaries, nil
}

func (r *Runner) recordCounter(metric, status string) {
	if r.metrics != nil {
		r.metrics.RecordCounter(metric, 1, map[string]string{"status": status, "unit": "runner"})
	}
}
