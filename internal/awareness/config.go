package awareness

import "time"

// Config holds the awareness extractor's thresholds as configuration
// rather than constants (spec §9 design note), with the defaults spec §9
// names explicitly.
type Config struct {
	MinSamplesForPattern              int           `json:"min_samples_for_pattern" yaml:"min_samples_for_pattern"`
	ConfidenceMiscalibrationThreshold float64       `json:"confidence_miscalibration_threshold" yaml:"confidence_miscalibration_threshold"`
	TaskFailureThreshold              float64       `json:"task_failure_threshold" yaml:"task_failure_threshold"`
	BacktrackThreshold                float64       `json:"backtrack_threshold" yaml:"backtrack_threshold"`
	ToolUnderuseSuccessFloor          float64       `json:"tool_underuse_success_floor" yaml:"tool_underuse_success_floor"`
	ToolUnderuseFrequencyCeiling      float64       `json:"tool_underuse_frequency_ceiling" yaml:"tool_underuse_frequency_ceiling"`
	DeadLetterRetention               time.Duration `json:"dead_letter_retention" yaml:"dead_letter_retention"`
}

// DefaultConfig returns the thresholds named directly in spec §9.
func DefaultConfig() Config {
	return Config{
		MinSamplesForPattern:              3,
		ConfidenceMiscalibrationThreshold: 0.10,
		TaskFailureThreshold:              0.25,
		BacktrackThreshold:                0.20,
		ToolUnderuseSuccessFloor:          0.80,
		ToolUnderuseFrequencyCeiling:      0.10,
		DeadLetterRetention:               24 * time.Hour,
	}
}
