package tracerstate

import (
	"fmt"

	"rtrace/internal/ctxstack"
	"rtrace/internal/diagx"
	"rtrace/internal/hostapi"
	"rtrace/internal/shadow"
)

// OnThunkCreate implements the promise-creation probe: a thunk the
// host just allocated, not yet bound to any call's argument list
// (§4.3 create_thunk, the "first encountered outside argument
// processing" path).
func (ts *TracerState) OnThunkCreate(handle hostapi.ThunkHandle, local bool) *shadow.DenotedValue {
	var v *shadow.DenotedValue
	ts.probe(true, func() {
		homeEnv, _ := ts.host.PromiseEnv(handle)
		v = ts.thunks.CreateThunk(handle, local, homeEnv, ts.assignScope)
		v.Touch(ts.clock.Now())
		typeInfo := ts.host.TypeOf(handle)
		v.ExpressionType = typeInfo.ExpressionType
		ts.objects.Observe(typeInfo.ExpressionType)
	})
	return v
}

// OnForceBegin implements the promise-force-entry probe: looks up (or
// lazily creates, for a thunk this tracer never saw created
// explicitly) the thunk's shadow, snapshots its evaluation depth on
// the very first force, records the lifecycle action, and pushes a
// Promise context (§4.3, §4.10).
func (ts *TracerState) OnForceBegin(handle hostapi.ThunkHandle, owningCall *shadow.Call) *shadow.DenotedValue {
	var v *shadow.DenotedValue
	ts.probe(true, func() {
		homeEnv, _ := ts.host.PromiseEnv(handle)
		v, _ = ts.thunks.LookupThunk(handle, true, false, homeEnv, ts.assignScope)
		v.MaybeEscape()
		v.TouchForce(ts.clock.Now())
		if !v.FirstForceDone {
			v.FirstForceDone = true
			if owningCall != nil {
				v.EvalDepth = ctxstack.EvaluationDepthAt(ts.stack, owningCall)
			}
		}
		if owningCall != nil {
			for _, arg := range v.OwningArguments {
				if arg.Call == owningCall {
					owningCall.RecordForcedFormal(arg.FormalPosition)
					arg.RecordForce(ts.isInnermostCall(owningCall))
				}
			}
		}
		v.Lifecycle.Record("force")
		ts.stack.PushPromise(v)
	})
	return v
}

// OnForceEnd implements the promise-force-exit probe: pops the Promise
// context, classifies the materialized value's S3/S4 dispatch, and
// tallies a force against the escape-split counter (§4.3, §4.2).
func (ts *TracerState) OnForceEnd(v *shadow.DenotedValue) {
	ts.probe(false, func() {
		if frame, ok := ts.stack.Pop(); !ok || frame.Thunk != v {
			ts.diag.Report(diagx.SevError, "unmatched-pop", fmt.Sprintf("force end of thunk %d does not match the top of the stack", v.ID))
		}
		v.Touch(ts.clock.Now())
		typeInfo := ts.host.TypeOf(v.HostHandle)
		v.ValueType = typeInfo.ValueType
		v.ClassName = typeInfo.ClassName
		if typeInfo.IsS4 {
			v.S4DispatchCount++
			for _, arg := range v.OwningArguments {
				arg.UsedForS4Dispatch = true
			}
		} else {
			v.S3DispatchCount++
			for _, arg := range v.OwningArguments {
				arg.UsedForS3Dispatch = true
			}
		}
		v.ForceCount.Add(v.Escaped)
	})
}

// isInnermostCall reports whether call is the Call frame currently on
// top of the stack, i.e. the context a direct/indirect classification
// should key off of.
func (ts *TracerState) isInnermostCall(call *shadow.Call) bool {
	top, ok := ts.stack.Peek(0)
	return ok && top.IsCall() && top.Call == call
}

// OnGC implements the supplemented garbage-collection probe (§4.15):
// a batch of thunk and environment handles the host just reclaimed,
// torn down through the same paths as their explicit destroy probes.
func (ts *TracerState) OnGC(thunkHandles []hostapi.ThunkHandle, envHandles []hostapi.EnvHandle) {
	ts.probe(true, func() {
		for _, h := range thunkHandles {
			if destroyed, ok := ts.thunks.DestroyThunk(h); ok {
				ts.flushDestroyedThunk(destroyed)
			}
		}
		for _, h := range envHandles {
			if _, existed := ts.envs.Peek(h); existed {
				ts.envs.Release(h)
			}
		}
	})
}
