package core

import "fmt"

// ConfigurationError reports an invalid parameter or parameter combination.
// It is returned before any simulated time elapses.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// ThroughputBoundsError is returned by Result.CheckThroughput when the
// measured throughput falls outside the expected bounds. A zero bound is
// treated as unbounded.
type ThroughputBoundsError struct {
	Throughput float64
	Min        float64
	Max        float64
}

func (e *ThroughputBoundsError) Error() string {
	if e.Max > 0 {
		return fmt.Sprintf("obtained throughput %.4f Mbit/s is not in the expected boundaries [%.4f, %.4f]", e.Throughput, e.Min, e.Max)
	}
	return fmt.Sprintf("obtained throughput %.4f Mbit/s is below the expected minimum %.4f", e.Throughput, e.Min)
}

func configErr(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
