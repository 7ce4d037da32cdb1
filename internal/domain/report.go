package domain

import "time"

// Measurement is one score produced for one sample under one rule.
type Measurement struct {
	// Metric names what was measured, e.g. "group_inefficiency/bloc=1".
	Metric string `json:"metric"`

	// Score is the measured value. Degenerate groups score exactly 0.
	Score float64 `json:"score"`

	// Bloc lists the voters a randomized measurement sampled.
	Bloc []int `json:"bloc,omitempty"`
}

// Summary aggregates a series of scores for one (rule, metric) pair.
type Summary struct {
	// Rule is the election rule the scores belong to.
	Rule string `json:"rule"`

	// Metric is the measurement the scores came from.
	Metric string `json:"metric"`

	// Method names the aggregator that produced Value.
	Method string `json:"method"`

	// Value is the aggregate selected by Method.
	Value float64 `json:"value"`

	// Count is the number of scores aggregated.
	Count int `json:"count"`

	// Mean and StdDev describe the score distribution.
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`

	// Median, Min and Max bound it.
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Report is the outcome of evaluating a batch.
type Report struct {
	// RunID identifies the run.
	RunID string `json:"run_id"`

	// Batch is the evaluated batch's name.
	Batch string `json:"batch"`

	// Samples is the number of samples evaluated.
	Samples int `json:"samples"`

	// Summaries holds one entry per (rule, metric), sorted by rule then metric.
	Summaries []Summary `json:"summaries"`

	// Timestamp records when the report was produced.
	Timestamp time.Time `json:"timestamp"`
}
