// Package dedup decides whether a candidate task repeats one already stored,
// by fuzzy comparison of titles.
package dedup

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/josephgoksu/taskmail/internal/task"
)

// DefaultThreshold is the score at or above which two titles are duplicates.
// Titles are short topic labels, so moderate overlap is a strong signal.
const DefaultThreshold = 50

// Metric scores two already-normalized strings from 0 (unrelated) to 100
// (identical). It must be pure and must not fail.
type Metric func(a, b string) float64

// LevenshteinRatio is 100 * (1 - distance / longer length), measured in runes.
func LevenshteinRatio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

// metrics is the registry used by configuration.
var metrics = map[string]Metric{
	"levenshtein": LevenshteinRatio,
}

// MetricByName looks up a registered metric.
func MetricByName(name string) (Metric, error) {
	if name == "" {
		return LevenshteinRatio, nil
	}
	m, ok := metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown dedup metric %q", name)
	}
	return m, nil
}

// Normalize case-folds and trims a title before scoring.
func Normalize(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Deduplicator is a greedy nearest-match test against a reference set.
type Deduplicator struct {
	Threshold float64
	Metric    Metric
}

// New returns a Deduplicator with the default metric when m is nil and the
// default threshold when threshold <= 0.
func New(threshold float64, m Metric) *Deduplicator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if m == nil {
		m = LevenshteinRatio
	}
	return &Deduplicator{Threshold: threshold, Metric: m}
}

// Match returns the first existing task whose title scores at or above the
// threshold, with its score. ok is false when none does.
func (d *Deduplicator) Match(title string, existing []task.Task) (match task.Task, score float64, ok bool) {
	n := Normalize(title)
	for _, t := range existing {
		s := d.Metric(n, Normalize(t.Title))
		if s >= d.Threshold {
			return t, s, true
		}
	}
	return task.Task{}, 0, false
}

// IsDuplicate reports whether title matches any existing task.
func (d *Deduplicator) IsDuplicate(title string, existing []task.Task) bool {
	_, _, ok := d.Match(title, existing)
	return ok
}

// Best returns the highest scoring existing task, regardless of threshold.
func (d *Deduplicator) Best(title string, existing []task.Task) (best task.Task, score float64, ok bool) {
	n := Normalize(title)
	score = -1
	for _, t := range existing {
		if s := d.Metric(n, Normalize(t.Title)); s > score {
			best, score, ok = t, s, true
		}
	}
	return best, score, ok
}
