package fixture

import (
	"path/filepath"
	"testing"

	"rtrace/internal/hostapi"
	"rtrace/internal/ids"
	"rtrace/internal/rtconfig"
	"rtrace/internal/shadow"
	"rtrace/internal/testkit"
	"rtrace/internal/tracerstate"
)

// newScenarioTracer wires a fresh fixture host into a TracerState the
// same way the rtrace CLI's offline `run` subcommand does, writing
// under a throwaway per-test output directory.
func newScenarioTracer(t *testing.T, host *Host) *tracerstate.TracerState {
	t.Helper()
	cfg := rtconfig.Default()
	cfg.OutputDirpath = filepath.Join(t.TempDir(), "out")
	ts, err := tracerstate.New(host, cfg)
	if err != nil {
		t.Fatalf("tracerstate.New: %v", err)
	}
	return ts
}

func assertNoErrors(t *testing.T, ts *tracerstate.TracerState) {
	t.Helper()
	if diag := ts.Diagnostics(); diag.HasErrors() {
		t.Fatalf("unexpected error diagnostics: %v", diag.Items())
	}
}

// TestScenario_S1EagerCall covers spec scenario S1: f(1,2) where
// f=function(a,b) a+b, both actuals already-materialized values
// instead of thunks.
func TestScenario_S1EagerCall(t *testing.T) {
	const (
		callerEnv hostapi.EnvHandle = 1
		calleeEnv hostapi.EnvHandle = 2
		fn        hostapi.FuncHandle = 100
		valA      hostapi.ValueHandle = 201
		valB      hostapi.ValueHandle = 202
	)
	host := New()
	host.SetParent(calleeEnv, callerEnv)
	host.DefineFunc(fn, FuncSpec{
		Kind:    hostapi.CallClosure,
		Formals: []hostapi.FormalInfo{{Name: "a", Position: 0}, {Name: "b", Position: 1}},
		Namespace: "pkg", Names: []string{"f"},
	})

	ts := newScenarioTracer(t, host)

	bindingOf := func(name string) (hostapi.Binding, bool) {
		switch name {
		case "a":
			return hostapi.Binding{Eager: valA}, true
		case "b":
			return hostapi.Binding{Eager: valB}, true
		}
		return hostapi.Binding{}, false
	}
	call := ts.OnClosureEntry(fn, "f", calleeEnv, bindingOf)

	if err := testkit.CheckArgumentCountAgainstFormals(call); err != nil {
		t.Fatalf("CheckArgumentCountAgainstFormals: %v", err)
	}
	if len(call.Arguments) != 2 {
		t.Fatalf("got %d arguments, want 2", len(call.Arguments))
	}
	for _, arg := range call.Arguments {
		if arg.DenotedValue.IsPromise {
			t.Fatalf("argument %d: is_promise=true, want an eager value", arg.FormalPosition)
		}
		if arg.IsDotDotDot {
			t.Fatalf("argument %d: dot_dot_dot=true, want false", arg.FormalPosition)
		}
		// An eager argument is already materialized when the callee is
		// entered, so it counts as directly forced by that call.
		if !arg.DirectForce || arg.IndirectForce {
			t.Fatalf("argument %d: direct_force=%t indirect_force=%t, want direct_force=true, indirect_force=false", arg.FormalPosition, arg.DirectForce, arg.IndirectForce)
		}
	}

	ts.OnCallExit(call)
	if err := ts.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	assertNoErrors(t, ts)
}

// TestScenario_S2UnusedThunk covers spec scenario S2: f(expensive())
// with f=function(x) 1 — the argument thunk is bound but never forced.
func TestScenario_S2UnusedThunk(t *testing.T) {
	const (
		callerEnv hostapi.EnvHandle = 1
		calleeEnv hostapi.EnvHandle = 2
		fn        hostapi.FuncHandle = 100
		argThunk  hostapi.ThunkHandle = 200
	)
	host := New()
	host.SetParent(calleeEnv, callerEnv)
	host.SetPromiseEnv(argThunk, callerEnv)
	host.DefineFunc(fn, FuncSpec{
		Kind:    hostapi.CallClosure,
		Formals: []hostapi.FormalInfo{{Name: "x", Position: 0}},
	})

	ts := newScenarioTracer(t, host)

	bindingOf := func(name string) (hostapi.Binding, bool) {
		if name == "x" {
			return hostapi.Binding{IsThunk: true, Thunk: argThunk}, true
		}
		return hostapi.Binding{}, false
	}
	call := ts.OnClosureEntry(fn, "f", calleeEnv, bindingOf)

	if len(call.Arguments) != 1 {
		t.Fatalf("got %d arguments, want 1", len(call.Arguments))
	}
	arg := call.Arguments[0]
	v := arg.DenotedValue
	if !v.IsPromise {
		t.Fatalf("argument value is not a promise")
	}
	if arg.DirectForce || arg.IndirectForce {
		t.Fatalf("unused thunk recorded a force")
	}
	if v.ForceCount.Total() != 0 {
		t.Fatalf("promises.force_count = %d, want 0", v.ForceCount.Total())
	}
	if err := testkit.CheckThunkTimestampOrdering([]*shadow.DenotedValue{v}); err != nil {
		t.Fatalf("CheckThunkTimestampOrdering: %v", err)
	}

	ts.OnCallExit(call)
	if err := ts.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	assertNoErrors(t, ts)
}

// TestScenario_S3SelfScopeMutation covers spec scenario S3:
// f=function(){x<-1;x<-2}; f() — no thunk is ever created, so the
// walk in identify_side_effect_creators terminates at the closure's
// own frame before it could reach any promise, and no mutation is
// ever recorded anywhere.
func TestScenario_S3SelfScopeMutation(t *testing.T) {
	const (
		env hostapi.EnvHandle = 1
		fn  hostapi.FuncHandle = 100
	)
	host := New()
	host.DefineFunc(fn, FuncSpec{Kind: hostapi.CallClosure})

	ts := newScenarioTracer(t, host)

	call := ts.OnClosureEntry(fn, "f", env, func(string) (hostapi.Binding, bool) { return hostapi.Binding{}, false })

	v1 := ts.OnVariableAssign(env, "x")
	ts1 := v1.ModificationTS
	v2 := ts.OnVariableAssign(env, "x")
	ts2 := v2.ModificationTS

	trace := testkit.VariableAssignTrace{Variable: v1, ObservedAtAssign: []ids.Timestamp{ts1, ts2}}
	if err := testkit.CheckVariableModificationMonotonic([]testkit.VariableAssignTrace{trace}); err != nil {
		t.Fatalf("CheckVariableModificationMonotonic: %v", err)
	}

	if len(call.ForceOrder) != 0 {
		t.Fatalf("force_order = %v, want empty", call.ForceOrder)
	}

	ts.OnCallExit(call)
	if err := ts.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	assertNoErrors(t, ts)
}

// TestScenario_S4LexicalMutationFromThunk covers spec scenario S4: a
// delayed thunk whose home environment is lexically nested inside the
// environment holding the variable it mutates when forced. Per the
// glossary's definition of the lexical relation (the thunk's home env
// is an ancestor-nested scope of the write target), this is exactly
// what direct_lexical_scope_mutation_count counts.
func TestScenario_S4LexicalMutationFromThunk(t *testing.T) {
	const (
		outerEnv hostapi.EnvHandle = 1
		innerEnv hostapi.EnvHandle = 2
		delayed  hostapi.ThunkHandle = 300
	)
	host := New()
	host.SetParent(innerEnv, outerEnv)
	host.SetPromiseEnv(delayed, innerEnv)

	ts := newScenarioTracer(t, host)

	ts.OnVariableAssign(outerEnv, "x") // x <- 1

	thunk := ts.OnForceBegin(delayed, nil)
	ts.OnVariableAssign(outerEnv, "x") // x <<- 2, while the thunk's promise frame is active
	ts.OnForceEnd(thunk)

	if got := thunk.Mutation.Lexical.Direct.Total(); got != 1 {
		t.Fatalf("direct_lexical_scope_mutation_count = %d, want 1", got)
	}
	if total := thunk.Mutation.Self.Total() + thunk.Mutation.NonLexical.Total(); total != 0 {
		t.Fatalf("self/non_lexical mutation counts = %d, want 0", total)
	}
	if err := testkit.CheckScopeCounterAdditivity(thunk.Mutation); err != nil {
		t.Fatalf("CheckScopeCounterAdditivity: %v", err)
	}
	if err := testkit.CheckThunkTimestampOrdering([]*shadow.DenotedValue{thunk}); err != nil {
		t.Fatalf("CheckThunkTimestampOrdering: %v", err)
	}

	if err := ts.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	assertNoErrors(t, ts)
}

// TestScenario_S5EscapedThunk covers spec scenario S5: a thunk stored
// somewhere outside the call that first referenced it, then forced
// again after that call has already returned. The escape transition
// itself happens through the real probe surface: OnForceBegin calls
// MaybeEscape before touching the thunk, so the second force below is
// what flips Escaped, not a manual call into shadow.
func TestScenario_S5EscapedThunk(t *testing.T) {
	const (
		callerEnv hostapi.EnvHandle = 1
		calleeEnv hostapi.EnvHandle = 2
		fn        hostapi.FuncHandle = 100
		argThunk  hostapi.ThunkHandle = 200
	)
	host := New()
	host.SetParent(calleeEnv, callerEnv)
	host.SetPromiseEnv(argThunk, callerEnv)
	host.DefineFunc(fn, FuncSpec{
		Kind:    hostapi.CallClosure,
		Formals: []hostapi.FormalInfo{{Name: "p", Position: 0}},
	})

	ts := newScenarioTracer(t, host)

	bindingOf := func(name string) (hostapi.Binding, bool) {
		if name == "p" {
			return hostapi.Binding{IsThunk: true, Thunk: argThunk}, true
		}
		return hostapi.Binding{}, false
	}
	call := ts.OnClosureEntry(fn, "h", calleeEnv, bindingOf)
	arg := call.Arguments[0]
	v := arg.DenotedValue

	beforeEscape := ts.OnForceBegin(argThunk, call)
	ts.OnForceEnd(beforeEscape)
	if got := v.ForceCount.BeforeEscape; got != 1 {
		t.Fatalf("force_count.before_escape = %d, want 1", got)
	}

	ts.OnCallExit(call)
	if v.IsArgument {
		t.Fatalf("thunk still owned by an argument after call exit")
	}

	afterEscape := ts.OnForceBegin(argThunk, nil)
	if !v.Escaped {
		t.Fatalf("escaped=false after forcing a detached, previously-owned thunk")
	}
	ts.OnForceEnd(afterEscape)
	if got := v.ForceCount.AfterEscape; got != 1 {
		t.Fatalf("force_count.after_escape = %d, want 1", got)
	}

	if err := ts.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	assertNoErrors(t, ts)
}

// TestScenario_S6DotDotDotExpansion covers spec scenario S6:
// f=function(...) list(...); f(1,2,3) — three arguments rows sharing
// one formal_parameter_position but with distinct actual positions.
func TestScenario_S6DotDotDotExpansion(t *testing.T) {
	const (
		env  hostapi.EnvHandle = 1
		fn   hostapi.FuncHandle = 100
		val1 hostapi.ValueHandle = 201
		val2 hostapi.ValueHandle = 202
		val3 hostapi.ValueHandle = 203
	)
	host := New()
	host.DefineFunc(fn, FuncSpec{
		Kind:    hostapi.CallClosure,
		Formals: []hostapi.FormalInfo{{Name: "...", Position: 0, IsDotDotDot: true}},
	})

	ts := newScenarioTracer(t, host)

	bindingOf := func(name string) (hostapi.Binding, bool) {
		if name != "..." {
			return hostapi.Binding{}, false
		}
		return hostapi.Binding{
			IsDotsAgg: true,
			DotsElements: []hostapi.Binding{
				{Eager: val1},
				{Eager: val2},
				{Eager: val3},
			},
		}, true
	}
	call := ts.OnClosureEntry(fn, "f", env, bindingOf)

	if err := testkit.CheckArgumentCountAgainstFormals(call); err != nil {
		t.Fatalf("CheckArgumentCountAgainstFormals: %v", err)
	}
	if len(call.Arguments) != 3 {
		t.Fatalf("got %d arguments, want 3", len(call.Arguments))
	}
	for i, arg := range call.Arguments {
		if arg.FormalPosition != 0 {
			t.Fatalf("argument %d: formal_parameter_position = %d, want 0", i, arg.FormalPosition)
		}
		if arg.ActualPosition != i {
			t.Fatalf("argument %d: actual_argument_position = %d, want %d", i, arg.ActualPosition, i)
		}
		if !arg.IsDotDotDot {
			t.Fatalf("argument %d: dot_dot_dot=false, want true", i)
		}
	}

	ts.OnCallExit(call)
	if err := ts.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	assertNoErrors(t, ts)
}

// TestScenario_VariableRemove covers §4.2's remove_variable: a variable
// defined and assigned in an environment, then detached via rm(), after
// which a fresh lookup under the same name finds nothing. Exercised both
// directly through OnVariableRemove and through the fixture's var_remove
// replay event, so the registry operation has a real caller end-to-end.
func TestScenario_VariableRemove(t *testing.T) {
	const env hostapi.EnvHandle = 1

	host := New()
	ts := newScenarioTracer(t, host)

	ts.OnVariableDefine(env, "x")
	ts.OnVariableAssign(env, "x")

	removed, ok := ts.OnVariableRemove(env, "x")
	if !ok {
		t.Fatalf("OnVariableRemove: variable %q not found", "x")
	}
	if removed.Name != "x" {
		t.Fatalf("removed variable name = %q, want %q", removed.Name, "x")
	}

	if _, ok := ts.OnVariableLookup(env, "x"); ok {
		t.Fatalf("lookup succeeded after remove, want not-found")
	}

	if _, ok := ts.OnVariableRemove(env, "x"); ok {
		t.Fatalf("second remove of an already-removed variable succeeded, want not-found")
	}

	log := &EventLog{
		Environments: []EnvSpec{{Env: env}},
		Events: []Event{
			{Op: "var_define", Env: env, Name: "y"},
			{Op: "var_assign", Env: env, Name: "y"},
			{Op: "var_remove", Env: env, Name: "y"},
		},
	}
	Seed(host, log)
	if err := Replay(ts, log); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if _, ok := ts.OnVariableLookup(env, "y"); ok {
		t.Fatalf("lookup succeeded after replayed var_remove, want not-found")
	}

	if err := ts.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	assertNoErrors(t, ts)
}
