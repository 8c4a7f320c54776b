// Package awareness implements the awareness extractor (spec §4.14): runs
// at session end to derive advisory behavioral patterns from session
// history. Patterns are signals for planners, never themselves learnings.
package awareness

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"sunwellmem/internal/logging"
)

// PatternKind classifies one emitted observation.
type PatternKind string

const (
	PatternConfidenceCalibration PatternKind = "confidence_calibration"
	PatternToolAvoidance         PatternKind = "tool_avoidance"
	PatternErrorClustering       PatternKind = "error_clustering"
	PatternBacktrackRisk         PatternKind = "backtrack_risk"
)

// Pattern is one advisory observation surfaced to planners.
type Pattern struct {
	Kind    PatternKind
	Subject string // task type, tool name, or path category this pattern concerns
	Detail  string
	Metric  float64
}

// TaskOutcome is one goal's classified outcome within a session.
type TaskOutcome struct {
	Success          bool
	StatedConfidence float64
}

// FileTouch is one edit made during the session, categorized by path for
// backtrack-rate analysis.
type FileTouch struct {
	Path        string
	Backtracked bool // true if this edit was later reverted/redone
}

// ToolAuditEntry summarizes one tool's usage across the session.
type ToolAuditEntry struct {
	Tool      string
	Uses      int
	Successes int
}

// SessionSummary is the awareness extractor's input: goal outcomes grouped
// by classified task type, plus every file touched during the session.
type SessionSummary struct {
	OutcomesByTaskType map[string][]TaskOutcome
	FilesTouched       []FileTouch
	ToolAudit          []ToolAuditEntry
	TotalToolUses      int
}

// pathCategory classifies a touched file into one of the four buckets the
// backtrack-rate analysis groups by (spec §4.14).
func pathCategory(path string) string {
	base := strings.ToLower(filepath.Base(path))
	dir := strings.ToLower(path)

	switch {
	case strings.Contains(base, "_test.") || strings.Contains(base, ".test.") || strings.Contains(dir, "/test/") || strings.Contains(dir, "/tests/"):
		return "test"
	case strings.Contains(dir, "migration") || strings.Contains(dir, "/migrations/"):
		return "migration"
	case strings.HasSuffix(base, ".yaml") || strings.HasSuffix(base, ".yml") || strings.HasSuffix(base, ".json") ||
		strings.HasSuffix(base, ".toml") || strings.HasSuffix(base, ".ini") || strings.Contains(dir, "config"):
		return "config"
	default:
		return "code"
	}
}

// AnalyzeSession runs the four independent pattern analyses concurrently
// (they only read summary and share nothing mutable beyond the result
// slice) and returns every pattern that crossed its threshold.
func AnalyzeSession(ctx context.Context, summary SessionSummary, cfg Config) ([]Pattern, error) {
	var mu sync.Mutex
	var patterns []Pattern
	add := func(p Pattern) {
		mu.Lock()
		patterns = append(patterns, p)
		mu.Unlock()
	}

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		for _, p := range analyzeConfidenceCalibration(summary, cfg) {
			add(p)
		}
		return nil
	})
	g.Go(func() error {
		for _, p := range analyzeToolAvoidance(summary, cfg) {
			add(p)
		}
		return nil
	})
	g.Go(func() error {
		for _, p := range analyzeErrorClustering(summary, cfg) {
			add(p)
		}
		return nil
	})
	g.Go(func() error {
		for _, p := range analyzeBacktrackRate(summary, cfg) {
			add(p)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logging.Get(logging.CategoryAwareness).Debug("awareness: session analysis emitted %d patterns", len(patterns))
	return patterns, nil
}

// analyzeConfidenceCalibration compares, per task type with at least
// MinSamplesForPattern outcomes, mean stated confidence against actual
// success rate; emits a pattern when they diverge by at least the
// configured threshold.
func analyzeConfidenceCalibration(summary SessionSummary, cfg Config) []Pattern {
	var out []Pattern
	for taskType, outcomes := range summary.OutcomesByTaskType {
		if len(outcomes) < cfg.MinSamplesForPattern {
			continue
		}
		var sumConfidence float64
		successes := 0
		for _, o := range outcomes {
			sumConfidence += o.StatedConfidence
			if o.Success {
				successes++
			}
		}
		meanConfidence := sumConfidence / float64(len(outcomes))
		successRate := float64(successes) / float64(len(outcomes))
		delta := meanConfidence - successRate
		if abs(delta) >= cfg.ConfidenceMiscalibrationThreshold {
			direction := "overconfident"
			if delta < 0 {
				direction = "underconfident"
			}
			out = append(out, Pattern{
				Kind:    PatternConfidenceCalibration,
				Subject: taskType,
				Detail:  direction + " relative to observed success rate",
				Metric:  delta,
			})
		}
	}
	return out
}

// analyzeToolAvoidance flags tools with a strong success record but low
// usage share, suggesting the agent under-uses an effective tool.
func analyzeToolAvoidance(summary SessionSummary, cfg Config) []Pattern {
	var out []Pattern
	if summary.TotalToolUses == 0 {
		return out
	}
	for _, t := range summary.ToolAudit {
		if t.Uses == 0 {
			continue
		}
		successRate := float64(t.Successes) / float64(t.Uses)
		usageShare := float64(t.Uses) / float64(summary.TotalToolUses)
		if successRate >= cfg.ToolUnderuseSuccessFloor && usageShare < cfg.ToolUnderuseFrequencyCeiling {
			out = append(out, Pattern{
				Kind:    PatternToolAvoidance,
				Subject: t.Tool,
				Detail:  "high success rate but rarely used",
				Metric:  usageShare,
			})
		}
	}
	return out
}

// analyzeErrorClustering flags task types whose failure rate crosses the
// configured threshold.
func analyzeErrorClustering(summary SessionSummary, cfg Config) []Pattern {
	var out []Pattern
	for taskType, outcomes := range summary.OutcomesByTaskType {
		if len(outcomes) == 0 {
			continue
		}
		failures := 0
		for _, o := range outcomes {
			if !o.Success {
				failures++
			}
		}
		failureRate := float64(failures) / float64(len(outcomes))
		if failureRate >= cfg.TaskFailureThreshold {
			out = append(out, Pattern{
				Kind:    PatternErrorClustering,
				Subject: taskType,
				Detail:  "elevated failure rate for this task type",
				Metric:  failureRate,
			})
		}
	}
	return out
}

// analyzeBacktrackRate categorizes touched files and flags categories whose
// backtrack rate crosses the configured threshold.
func analyzeBacktrackRate(summary SessionSummary, cfg Config) []Pattern {
	totals := map[string]int{}
	backtracks := map[string]int{}
	for _, f := range summary.FilesTouched {
		cat := pathCategory(f.Path)
		totals[cat]++
		if f.Backtracked {
			backtracks[cat]++
		}
	}

	var out []Pattern
	for cat, total := range totals {
		if total == 0 {
			continue
		}
		rate := float64(backtracks[cat]) / float64(total)
		if rate >= cfg.BacktrackThreshold {
			out = append(out, Pattern{
				Kind:    PatternBacktrackRisk,
				Subject: cat,
				Detail:  "elevated backtrack rate editing this category of file",
				Metric:  rate,
			})
		}
	}
	return out
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
