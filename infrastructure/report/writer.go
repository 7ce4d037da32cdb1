// Package report renders evaluation reports for people and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ahrav/go-metricvote/internal/domain"
)

// columns are the table headings, in snake case as they appear in JSON.
var columns = []string{"rule", "metric", "method", "value", "count", "mean", "std_dev", "median", "min", "max"}

// Headings returns the table headings in title case.
func Headings() []string {
	caser := cases.Title(language.English)
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = caser.String(strings.ReplaceAll(c, "_", " "))
	}
	return out
}

// WriteTable writes report as an aligned text table, one row per summary.
func WriteTable(w io.Writer, report *domain.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Run %s: %d samples of %s\n\n", report.RunID, report.Samples, report.Batch)
	fmt.Fprintln(tw, strings.Join(Headings(), "\t"))
	for _, s := range report.Summaries {
		row := []string{
			s.Rule,
			s.Metric,
			s.Method,
			formatScore(s.Value),
			strconv.Itoa(s.Count),
			formatScore(s.Mean),
			formatScore(s.StdDev),
			formatScore(s.Median),
			formatScore(s.Min),
			formatScore(s.Max),
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// WriteJSON writes report as indented JSON.
func WriteJSON(w io.Writer, report *domain.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
