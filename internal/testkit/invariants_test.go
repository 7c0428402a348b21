package testkit

import (
	"strings"
	"testing"

	"rtrace/internal/ctxstack"
	"rtrace/internal/ids"
	"rtrace/internal/shadow"
)

func ts(n uint64) ids.Timestamp { return ids.Timestamp(n) }

func TestCheckThunkTimestampOrdering(t *testing.T) {
	ok := &shadow.DenotedValue{ID: 1, CreationTS: ts(1), FirstForceTS: ts(2), LastEventTS: ts(3)}
	neverForced := &shadow.DenotedValue{ID: 2, CreationTS: ts(1)}
	if err := CheckThunkTimestampOrdering([]*shadow.DenotedValue{ok, neverForced}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := &shadow.DenotedValue{ID: 3, CreationTS: ts(5), FirstForceTS: ts(2), LastEventTS: ts(9)}
	if err := CheckThunkTimestampOrdering([]*shadow.DenotedValue{bad}); err == nil {
		t.Fatal("expected violation for creation_ts > first_force_ts")
	}
}

func TestCheckVariableModificationMonotonic(t *testing.T) {
	v := &shadow.Variable{ID: 1, ModificationTS: ts(3)}
	good := VariableAssignTrace{Variable: v, ObservedAtAssign: []ids.Timestamp{ts(1), ts(2), ts(3)}}
	if err := CheckVariableModificationMonotonic([]VariableAssignTrace{good}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := VariableAssignTrace{Variable: v, ObservedAtAssign: []ids.Timestamp{ts(3), ts(2)}}
	if err := CheckVariableModificationMonotonic([]VariableAssignTrace{bad}); err == nil {
		t.Fatal("expected violation for non-increasing modification_ts")
	}

	undefined := &shadow.Variable{ID: 2}
	missing := VariableAssignTrace{Variable: undefined, ObservedAtAssign: []ids.Timestamp{ts(1)}}
	if err := CheckVariableModificationMonotonic([]VariableAssignTrace{missing}); err == nil {
		t.Fatal("expected violation for assigned variable with undefined modification_ts")
	}
}

func TestCheckArgumentCountAgainstFormals(t *testing.T) {
	call := &shadow.Call{ID: 1, FormalCount: 3, MissingArgs: []int{2}, Arguments: make([]*shadow.Argument, 2)}
	if err := CheckArgumentCountAgainstFormals(call); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	short := &shadow.Call{ID: 2, FormalCount: 3, Arguments: make([]*shadow.Argument, 1)}
	if err := CheckArgumentCountAgainstFormals(short); err == nil {
		t.Fatal("expected violation for too few arguments")
	}
}

func TestCheckNoDoubleFree(t *testing.T) {
	freed := &shadow.DenotedValue{ID: 1, IsArgument: false}
	stillOwned := &shadow.DenotedValue{ID: 2, IsArgument: true}
	batch := []shadow.DestroyedThunk{
		{Value: freed, Deallocated: true},
		{Value: stillOwned, Deallocated: false},
	}
	if err := CheckNoDoubleFree(batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	contradiction := []shadow.DestroyedThunk{{Value: freed, Deallocated: false}}
	if err := CheckNoDoubleFree(contradiction); err == nil {
		t.Fatal("expected violation: deallocated must equal !is_argument")
	}

	dup := []shadow.DestroyedThunk{
		{Value: freed, Deallocated: true},
		{Value: freed, Deallocated: true},
	}
	if err := CheckNoDoubleFree(dup); err == nil || !strings.Contains(err.Error(), "more than once") {
		t.Fatalf("expected double-destroy violation, got %v", err)
	}
}

func TestCheckStackDepthDelta(t *testing.T) {
	samples := []StackDepthSample{
		{Before: 0, After: 1},
		{Before: 1, After: 1},
		{Before: 1, After: 0},
		{Before: 5, After: 0, NonLocalReturn: true},
	}
	if err := CheckStackDepthDelta(samples); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := []StackDepthSample{{Before: 0, After: 3}}
	if err := CheckStackDepthDelta(bad); err == nil {
		t.Fatal("expected violation for a +3 delta without non_local_return")
	}
}

func TestCheckExecutionTimeDelta(t *testing.T) {
	if err := CheckExecutionTimeDelta(100, 150, 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckExecutionTimeDelta(100, 150, 40); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestCheckScopeCounterAdditivity(t *testing.T) {
	split := shadow.EscapeSplit{BeforeEscape: 2, AfterEscape: 3}
	axis := shadow.DirectAxis{Direct: split, Indirect: split}
	set := shadow.ScopeCounterSet{Self: axis, Lexical: axis, NonLexical: axis}
	if err := CheckScopeCounterAdditivity(set); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckInnermostDirect(t *testing.T) {
	obs := []DirectIndirectObservation{
		{Depth: 0, Direct: true},
		{Depth: 1, Direct: false},
		{Depth: 2, Direct: false},
	}
	if err := CheckInnermostDirect(obs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	none := []DirectIndirectObservation{{Depth: 0, Direct: false}}
	if err := CheckInnermostDirect(none); err == nil {
		t.Fatal("expected violation: no direct observation")
	}

	wrongDepth := []DirectIndirectObservation{
		{Depth: 0, Direct: false},
		{Depth: 1, Direct: true},
	}
	if err := CheckInnermostDirect(wrongDepth); err == nil {
		t.Fatal("expected violation: direct observation not at innermost depth")
	}
}

func TestCheckStackWellFormed(t *testing.T) {
	stack := ctxstack.New()
	if err := CheckStackWellFormed(stack); err != nil {
		t.Fatalf("unexpected error on empty stack: %v", err)
	}
}
