package awareness

import (
	"context"
	"testing"
)

func hasPattern(patterns []Pattern, kind PatternKind, subject string) bool {
	for _, p := range patterns {
		if p.Kind == kind && p.Subject == subject {
			return true
		}
	}
	return false
}

func TestConfidenceCalibrationFlagsOverconfidence(t *testing.T) {
	summary := SessionSummary{
		OutcomesByTaskType: map[string][]TaskOutcome{
			"refactor": {
				{Success: false, StatedConfidence: 0.9},
				{Success: false, StatedConfidence: 0.9},
				{Success: true, StatedConfidence: 0.9},
			},
		},
	}
	patterns, err := AnalyzeSession(context.Background(), summary, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !hasPattern(patterns, PatternConfidenceCalibration, "refactor") {
		t.Fatalf("expected confidence calibration pattern for refactor, got %+v", patterns)
	}
}

func TestToolAvoidanceFlagsUnderusedReliableTool(t *testing.T) {
	summary := SessionSummary{
		TotalToolUses: 100,
		ToolAudit: []ToolAuditEntry{
			{Tool: "grep", Uses: 5, Successes: 5},
			{Tool: "bash", Uses: 95, Successes: 60},
		},
	}
	patterns, err := AnalyzeSession(context.Background(), summary, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !hasPattern(patterns, PatternToolAvoidance, "grep") {
		t.Fatalf("expected tool avoidance pattern for grep, got %+v", patterns)
	}
	if hasPattern(patterns, PatternToolAvoidance, "bash") {
		t.Fatalf("did not expect tool avoidance pattern for heavily-used bash, got %+v", patterns)
	}
}

func TestErrorClusteringFlagsHighFailureTaskType(t *testing.T) {
	summary := SessionSummary{
		OutcomesByTaskType: map[string][]TaskOutcome{
			"migration": {
				{Success: false}, {Success: false}, {Success: true}, {Success: true},
			},
		},
	}
	patterns, err := AnalyzeSession(context.Background(), summary, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !hasPattern(patterns, PatternErrorClustering, "migration") {
		t.Fatalf("expected error clustering pattern for migration, got %+v", patterns)
	}
}

func TestBacktrackRateFlagsHighBacktrackCategory(t *testing.T) {
	summary := SessionSummary{
		FilesTouched: []FileTouch{
			{Path: "db/migrations/0001_init.sql", Backtracked: true},
			{Path: "db/migrations/0002_add_col.sql", Backtracked: false},
			{Path: "internal/app/server.go", Backtracked: false},
		},
	}
	patterns, err := AnalyzeSession(context.Background(), summary, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !hasPattern(patterns, PatternBacktrackRisk, "migration") {
		t.Fatalf("expected backtrack risk pattern for migration category, got %+v", patterns)
	}
	if hasPattern(patterns, PatternBacktrackRisk, "code") {
		t.Fatalf("did not expect backtrack risk pattern for low-backtrack code category, got %+v", patterns)
	}
}
