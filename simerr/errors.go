// Package simerr names the fatal/non-fatal error kinds a run can surface
// (spec §7), wrapped with github.com/pkg/errors the way the rest of this
// module wraps construction-time errors.
package simerr

import "github.com/pkg/errors"

// InvariantError marks a decision-invariant violation (spec §7's "Decision
// invariant violation" kind) — a bug in a policy, not a data problem. The
// engine panics with one of these rather than returning it, mirroring the
// source's bare `assert` statements, which abort the run unconditionally.
// Callers that want to fail a batch run gracefully instead of crashing the
// process recover it at the top of one run's goroutine and convert it back
// into an error.
type InvariantError struct {
	Op  string
	Msg string
}

func (e *InvariantError) Error() string {
	return "invariant violated in " + e.Op + ": " + e.Msg
}

// Invariant panics with an *InvariantError. Call sites name the operation
// they were performing so a recovered panic still identifies where it broke.
func Invariant(op, msg string) {
	panic(&InvariantError{Op: op, Msg: msg})
}

// ConfigError wraps a configuration inconsistency (spec §7's "Configuration
// inconsistency" kind) — returned normally, never panicked, since it is
// caught before a run starts.
func ConfigError(msg string, args ...interface{}) error {
	return errors.Errorf(msg, args...)
}

// WrapConfig wraps an underlying error as a configuration inconsistency.
func WrapConfig(err error, msg string) error {
	return errors.Wrap(err, msg)
}

// PlanInfeasible marks the non-fatal "plan infeasibility" kind (spec §7):
// a policy found no admissible action (e.g. no merge partner satisfies
// every condition) and fell back to the safe default. Logged, not panicked.
type PlanInfeasible struct {
	Op     string
	Reason string
}

func (e *PlanInfeasible) Error() string {
	return "no feasible plan in " + e.Op + ": " + e.Reason
}

// DataAnomaly marks the non-fatal "data anomaly" kind (spec §7): malformed
// or out-of-range input data that the run can route around (e.g. skip the
// offending record) rather than abort for.
type DataAnomaly struct {
	Op     string
	Detail string
}

func (e *DataAnomaly) Error() string {
	return "data anomaly in " + e.Op + ": " + e.Detail
}
