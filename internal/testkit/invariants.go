// Package testkit implements invariant checkers for the eight
// testable properties (§8), ported from the teacher's span-invariant
// checker pattern (a small pure function per property, taking the
// relevant shadow state and returning an error describing the first
// violation found).
package testkit

import (
	"fmt"

	"rtrace/internal/ctxstack"
	"rtrace/internal/ids"
	"rtrace/internal/shadow"
)

// CheckThunkTimestampOrdering implements invariant 1: creation_ts ≤
// first_force_ts ≤ last_event_ts for every thunk that has been forced
// at least once. A never-forced thunk has no first_force_ts to order
// against, so it is skipped.
func CheckThunkTimestampOrdering(thunks []*shadow.DenotedValue) error {
	for _, t := range thunks {
		if !t.FirstForceTS.IsDefined() {
			continue
		}
		if t.CreationTS > t.FirstForceTS {
			return fmt.Errorf("thunk %d: creation_ts %d > first_force_ts %d", t.ID, t.CreationTS, t.FirstForceTS)
		}
		if t.FirstForceTS > t.LastEventTS {
			return fmt.Errorf("thunk %d: first_force_ts %d > last_event_ts %d", t.ID, t.FirstForceTS, t.LastEventTS)
		}
	}
	return nil
}

// VariableAssignTrace is one observed modification_ts sequence for a
// variable, in the order the assigns actually happened.
type VariableAssignTrace struct {
	Variable         *shadow.Variable
	ObservedAtAssign []ids.Timestamp
}

// CheckVariableModificationMonotonic implements invariant 2: a
// variable with at least one assign has a defined modification_ts
// that strictly increases across successive assigns.
func CheckVariableModificationMonotonic(traces []VariableAssignTrace) error {
	for _, tr := range traces {
		if len(tr.ObservedAtAssign) == 0 {
			continue
		}
		if !tr.Variable.ModificationTS.IsDefined() {
			return fmt.Errorf("variable %d: assigned but modification_ts undefined", tr.Variable.ID)
		}
		for i := 1; i < len(tr.ObservedAtAssign); i++ {
			if tr.ObservedAtAssign[i] <= tr.ObservedAtAssign[i-1] {
				return fmt.Errorf("variable %d: modification_ts did not strictly increase: %d then %d",
					tr.Variable.ID, tr.ObservedAtAssign[i-1], tr.ObservedAtAssign[i])
			}
		}
	}
	return nil
}

// CheckArgumentCountAgainstFormals implements invariant 3: the number
// of arguments bound to a call is at least formal_parameter_count
// minus the number of missing arguments; an actual count above the
// formal count is only possible through `...` expansion, so it is
// never treated as a violation here.
func CheckArgumentCountAgainstFormals(call *shadow.Call) error {
	want := call.FormalCount - len(call.MissingArgs)
	if len(call.Arguments) < want {
		return fmt.Errorf("call %d: %d arguments, want at least %d (formals=%d missing=%d)",
			call.ID, len(call.Arguments), want, call.FormalCount, len(call.MissingArgs))
	}
	return nil
}

// CheckNoDoubleFree implements invariant 4. shadow's ThunkRegistry
// already panics on a second deallocate of the same DenotedValue;
// this checker verifies the complementary half — every destroyed
// value reports Deallocated exactly when it was not left owned by a
// live argument.
func CheckNoDoubleFree(destroyed []shadow.DestroyedThunk) error {
	seen := make(map[uint64]bool)
	for _, d := range destroyed {
		id := uint64(d.Value.ID)
		if seen[id] {
			return fmt.Errorf("thunk %d destroyed more than once in the same batch", id)
		}
		seen[id] = true
		if d.Deallocated == d.Value.IsArgument {
			return fmt.Errorf("thunk %d: deallocated=%t but is_argument=%t, expected deallocated iff !is_argument",
				id, d.Deallocated, d.Value.IsArgument)
		}
	}
	return nil
}

// StackDepthSample is a before/after pair of stack depths bracketing
// one probe event, plus whether that event was a non-local-return
// unwind (exempt from the ±1 rule).
type StackDepthSample struct {
	Before, After  int
	NonLocalReturn bool
}

// CheckStackDepthDelta implements invariant 5: every probe event
// changes stack depth by at most one frame, except non-local-return
// frames which may pop several at once.
func CheckStackDepthDelta(samples []StackDepthSample) error {
	for i, s := range samples {
		if s.NonLocalReturn {
			continue
		}
		delta := s.After - s.Before
		if delta != -1 && delta != 0 && delta != 1 {
			return fmt.Errorf("sample %d: stack depth delta %d outside {-1,0,+1}", i, delta)
		}
	}
	return nil
}

// CheckExecutionTimeDelta implements invariant 6: for a thunk on the
// stack across a probe body, execution_time(after) - execution_time
// (before) equals the elapsed nanoseconds charged to that probe.
func CheckExecutionTimeDelta(before, after, elapsedNS uint64) error {
	if after-before != elapsedNS {
		return fmt.Errorf("execution_time delta %d != elapsed %d", after-before, elapsedNS)
	}
	return nil
}

// CheckScopeCounterAdditivity implements invariant 7: for every axis
// of a ScopeCounterSet, total equals before_escape + after_escape,
// which EscapeSplit.Total already guarantees by construction — this
// checker exists to catch a future refactor that breaks it, not a
// runtime possibility today.
func CheckScopeCounterAdditivity(set shadow.ScopeCounterSet) error {
	axes := []struct {
		name string
		axis shadow.DirectAxis
	}{
		{"self", set.Self},
		{"lexical", set.Lexical},
		{"non_lexical", set.NonLexical},
	}
	for _, a := range axes {
		for _, split := range []struct {
			name string
			s    shadow.EscapeSplit
		}{{"direct", a.axis.Direct}, {"indirect", a.axis.Indirect}} {
			if split.s.Total() != split.s.BeforeEscape+split.s.AfterEscape {
				return fmt.Errorf("%s/%s: total %d != before %d + after %d",
					a.name, split.name, split.s.Total(), split.s.BeforeEscape, split.s.AfterEscape)
			}
		}
	}
	return nil
}

// DirectIndirectObservation is one variable event's outcome for a
// single qualifying thunk: its distance from the top of the stack at
// the time of the event, and whether it was tagged direct.
type DirectIndirectObservation struct {
	Depth  int
	Direct bool
}

// CheckInnermostDirect implements invariant 8: for one variable
// event, exactly the innermost qualifying thunk (the smallest depth
// among the observations) is tagged direct; every other one is
// indirect.
func CheckInnermostDirect(obs []DirectIndirectObservation) error {
	if len(obs) == 0 {
		return nil
	}
	directCount := 0
	minDepth := obs[0].Depth
	for _, o := range obs {
		if o.Depth < minDepth {
			minDepth = o.Depth
		}
		if o.Direct {
			directCount++
		}
	}
	if directCount != 1 {
		return fmt.Errorf("expected exactly one direct observation, got %d", directCount)
	}
	for _, o := range obs {
		if o.Direct && o.Depth != minDepth {
			return fmt.Errorf("direct observation at depth %d, innermost depth is %d", o.Depth, minDepth)
		}
	}
	return nil
}

// CheckStackWellFormed is a supplemental sanity check, not one of the
// eight numbered properties: a non-empty stack on tracer exit is a
// probe-ordering bug, not a fatal error. teardown.Cleanup does not
// call it; it performs the same emptiness check itself and logs it.
func CheckStackWellFormed(stack *ctxstack.Stack) error {
	if !stack.IsEmpty() {
		return fmt.Errorf("stack not empty at exit: depth=%d", stack.Len())
	}
	return nil
}
