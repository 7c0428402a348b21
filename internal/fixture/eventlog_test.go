package fixture

import (
	"path/filepath"
	"testing"

	"rtrace/internal/hostapi"
	"rtrace/internal/rtconfig"
	"rtrace/internal/tracerstate"
)

// buildLog assembles a minimal but realistic trace: a closure call
// `f(x)` whose single argument is a thunk that gets forced once, then
// the call returns normally.
func buildLog() *EventLog {
	const (
		callerEnv hostapi.EnvHandle = 1
		calleeEnv hostapi.EnvHandle = 2
		fn        hostapi.FuncHandle = 100
		argThunk  hostapi.ThunkHandle = 200
	)
	return &EventLog{
		Environments: []EnvSpec{{Env: calleeEnv, Parent: callerEnv}},
		Functions: []FunctionEntry{{
			Func: fn,
			Spec: FuncSpec{
				Kind:    hostapi.CallClosure,
				Formals: []hostapi.FormalInfo{{Name: "x", Position: 0}},
			},
		}},
		PromiseEnvs: []PromiseEnvEntry{{Thunk: argThunk, Env: callerEnv}},
		Types: []TypeEntry{
			{Handle: hostapi.Handle(argThunk), Info: hostapi.TypeInfo{ExpressionType: "promise"}},
		},
		Events: []Event{
			{Op: "thunk_create", ID: "t1", Thunk: argThunk, Local: false},
			{
				Op:   "closure_entry",
				ID:   "c1",
				Func: fn,
				Name: "f",
				Env:  calleeEnv,
				Bindings: []BindingSpec{
					{Formal: "x", IsThunk: true, Thunk: argThunk},
				},
			},
			{Op: "force_begin", ID: "f1", Call: "c1", Thunk: argThunk},
			{Op: "force_end", ID: "f1", Thunk: argThunk},
			{Op: "var_define", Env: calleeEnv, Name: "local"},
			{Op: "var_assign", Env: calleeEnv, Name: "local"},
			{Op: "var_lookup", Env: calleeEnv, Name: "local"},
			{Op: "call_exit", ID: "c1"},
		},
	}
}

func TestReplay_ClosureCallWithForcedArgument(t *testing.T) {
	log := buildLog()
	host := New()
	Seed(host, log)

	cfg := rtconfig.Default()
	cfg.OutputDirpath = filepath.Join(t.TempDir(), "out")

	ts, err := tracerstate.New(host, cfg)
	if err != nil {
		t.Fatalf("tracerstate.New: %v", err)
	}

	if err := Replay(ts, log); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if err := ts.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	if diag := ts.Diagnostics(); diag.HasErrors() {
		t.Fatalf("unexpected error diagnostics: %v", diag.Items())
	}
}

func TestReplay_UnknownOpFails(t *testing.T) {
	log := &EventLog{Events: []Event{{Op: "not_a_real_op"}}}
	host := New()
	Seed(host, log)

	cfg := rtconfig.Default()
	cfg.OutputDirpath = filepath.Join(t.TempDir(), "out")
	ts, err := tracerstate.New(host, cfg)
	if err != nil {
		t.Fatalf("tracerstate.New: %v", err)
	}
	if err := Replay(ts, log); err == nil {
		t.Fatal("expected an error for an unknown op")
	}
}

func TestReplay_NonLocalReturnUnwindsPastPromiseFrame(t *testing.T) {
	const (
		env      hostapi.EnvHandle   = 1
		outerFn  hostapi.FuncHandle  = 10
		argThunk hostapi.ThunkHandle = 20
	)
	log := &EventLog{
		Functions: []FunctionEntry{{Func: outerFn, Spec: FuncSpec{Kind: hostapi.CallClosure}}},
		Types:     []TypeEntry{{Handle: hostapi.Handle(argThunk), Info: hostapi.TypeInfo{ExpressionType: "promise"}}},
		Events: []Event{
			{Op: "closure_entry", ID: "outer", Func: outerFn, Name: "outer", Env: env},
			{Op: "thunk_create", ID: "t1", Thunk: argThunk},
			{Op: "force_begin", ID: "f1", Call: "outer", Thunk: argThunk},
			{Op: "non_local_return", ID: "outer"},
		},
	}
	host := New()
	Seed(host, log)
	cfg := rtconfig.Default()
	cfg.OutputDirpath = filepath.Join(t.TempDir(), "out")
	ts, err := tracerstate.New(host, cfg)
	if err != nil {
		t.Fatalf("tracerstate.New: %v", err)
	}
	if err := Replay(ts, log); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if err := ts.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
}
