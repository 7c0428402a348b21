package tracerstate

import (
	"fmt"

	"rtrace/internal/ctxstack"
	"rtrace/internal/diagx"
	"rtrace/internal/funcsummary"
	"rtrace/internal/hostapi"
	"rtrace/internal/shadow"
)

// OnClosureEntry implements the closure_call_entry probe: interns the
// callee, builds its Call/Argument graph against bindingOf, pushes a
// Closure context, and runs the wrapper-detection check against the
// caller's frame (§4.4, §4.11).
func (ts *TracerState) OnClosureEntry(fn hostapi.FuncHandle, name string, env hostapi.EnvHandle, bindingOf func(string) (hostapi.Binding, bool)) *shadow.Call {
	var call *shadow.Call
	ts.probe(true, func() {
		funcInfo := ts.internFunction(fn)
		formals := ts.host.Formals(fn)
		call = ts.calls.CreateClosureCall(funcInfo, name, env, formals, bindingOf, ts.promiseEnvOf, ts.assignScope)
		ts.stack.PushClosure(call)
		funcsummary.UpdateWrapper(ts.stack, hostapi.CallClosure)
	})
	return call
}

// OnNonClosureEntry implements the builtin/special call entry probe:
// no rho walk, just the host's argument-evaluation bitmap recorded as
// the call's force order (§4.4).
func (ts *TracerState) OnNonClosureEntry(fn hostapi.FuncHandle, kind hostapi.CallKind, name string, env hostapi.EnvHandle) *shadow.Call {
	var call *shadow.Call
	ts.probe(true, func() {
		funcInfo := ts.internFunction(fn)
		evalBitmap := ts.host.ArgEvalBitmap(fn)
		call = ts.calls.CreateNonClosureCall(funcInfo, kind, name, env, evalBitmap)
		if kind == hostapi.CallBuiltin {
			ts.stack.PushBuiltin(call)
		} else {
			ts.stack.PushSpecial(call)
		}
		funcsummary.UpdateWrapper(ts.stack, kind)
	})
	return call
}

// internFunction interns fn, observing its host SEXP type in the
// object_count table the first time this handle is seen (the function
// itself persists across every call that invokes it, so it is only
// counted once, on first encounter).
func (ts *TracerState) internFunction(fn hostapi.FuncHandle) *funcsummary.Function {
	if _, existed := ts.funcs.Peek(fn); !existed {
		ts.objects.Observe(ts.host.TypeOf(fn).ExpressionType)
	}
	return ts.funcs.Intern(fn, ts.host)
}

// OnCallExit implements the matching call-exit probe for whichever
// entry pushed call: pops its frame, tears it down, and emits its
// arguments rows plus its call_summary signature.
func (ts *TracerState) OnCallExit(call *shadow.Call) {
	ts.probe(false, func() {
		if frame, ok := ts.stack.Pop(); !ok || frame.Call != call {
			ts.diag.Report(diagx.SevError, "unmatched-pop", fmt.Sprintf("exit of call %d does not match the top of the stack", call.ID))
		}
		ts.flushDestroyedCall(call)
	})
}

// OnNonLocalReturn implements the unwind probe fired when control
// leaves through a non-local jump (§7): every call/promise frame up
// to and including target is popped eagerly, with non_local_return
// stamped on each affected call's arguments before the usual teardown
// runs.
func (ts *TracerState) OnNonLocalReturn(target *shadow.Call) {
	ts.probe(false, func() {
		for {
			frame, ok := ts.stack.Pop()
			if !ok {
				break
			}
			if frame.Kind == ctxstack.KindPromise {
				continue
			}
			call := frame.Call
			call.NonLocalReturn = true
			for _, arg := range call.Arguments {
				arg.NonLocalReturn = true
			}
			ts.flushDestroyedCall(call)
			if call == target {
				break
			}
		}
	})
}
