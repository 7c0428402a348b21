package shadow

import (
	"fmt"

	"rtrace/internal/hostapi"
	"rtrace/internal/ids"
)

// ThunkRegistry is the C4 thunk registry: maps host thunk handles to
// their shadow DenotedValue and owns the create/lookup/destroy
// lifecycle (§4.3).
type ThunkRegistry struct {
	clock    *ids.Clock
	byHandle map[hostapi.ThunkHandle]*DenotedValue
}

// NewThunkRegistry constructs an empty registry.
func NewThunkRegistry(clock *ids.Clock) *ThunkRegistry {
	return &ThunkRegistry{clock: clock, byHandle: make(map[hostapi.ThunkHandle]*DenotedValue)}
}

func (r *ThunkRegistry) newRaw(handle hostapi.ThunkHandle, local bool, isPromise bool, homeEnv hostapi.EnvHandle, scopeAssigner func(*DenotedValue)) *DenotedValue {
	v := &DenotedValue{
		ID:         r.clock.NextThunkID(),
		HostHandle: handle,
		IsLocal:    local,
		IsPromise:  isPromise,
		HomeEnv:    homeEnv,
		CreationTS: r.clock.Now(),
		EvalDepth:  EscapedPromiseEvalDepth,
	}
	if scopeAssigner != nil {
		scopeAssigner(v)
	}
	v.Lifecycle.Record("create")
	return v
}

// CreateThunk inserts a fresh DenotedValue for handle unconditionally,
// replacing any prior entry under the same handle. The replaced entry's
// active flag is cleared here, since nothing else will do it (§4.3).
func (r *ThunkRegistry) CreateThunk(handle hostapi.ThunkHandle, local bool, homeEnv hostapi.EnvHandle, scopeAssigner func(*DenotedValue)) *DenotedValue {
	if old, ok := r.byHandle[handle]; ok {
		old.Active = false
	}
	v := r.newRaw(handle, local, true, homeEnv, scopeAssigner)
	v.Active = true
	r.byHandle[handle] = v
	return v
}

// LookupThunk returns the existing shadow for handle; if absent and
// create is true, it constructs one in place (this is the "first
// encountered via argument processing, never explicitly created" path)
// and scopeAssigner runs since this is this thunk's one-and-only
// creation moment (§3 "scope is set exactly once at creation").
func (r *ThunkRegistry) LookupThunk(handle hostapi.ThunkHandle, create, local bool, homeEnv hostapi.EnvHandle, scopeAssigner func(*DenotedValue)) (*DenotedValue, bool) {
	if v, ok := r.byHandle[handle]; ok {
		return v, true
	}
	if !create {
		return nil, false
	}
	v := r.newRaw(handle, local, true, homeEnv, scopeAssigner)
	v.Active = true
	r.byHandle[handle] = v
	return v, true
}

// CreateEagerValue wraps an already-materialized value in a DenotedValue
// that is never registered under a handle: it is owned solely by the
// Argument that references it, so Active starts false — there is no
// registry side holding a second reference (§4.4 "otherwise wrap the
// eager value in a fresh DenotedValue").
func (r *ThunkRegistry) CreateEagerValue(handle hostapi.ValueHandle) *DenotedValue {
	return &DenotedValue{
		ID:         r.clock.NextThunkID(),
		HostHandle: handle,
		IsPromise:  false,
		CreationTS: r.clock.Now(),
		EvalDepth:  EscapedPromiseEvalDepth,
	}
}

// DestroyedThunk carries the emission-relevant snapshot back to the
// caller, since shadow does not know how to talk to the sinks.
type DestroyedThunk struct {
	Value        *DenotedValue
	EmitPromise  bool
	EmitEscaped  bool
	Deallocated  bool
}

// DestroyThunk implements the registry-initiated half of §4.3's
// destroy_thunk: clear active, always emit a promises row, summarize the
// lifecycle, emit an escaped_arguments row iff escaped, and deallocate
// only if the thunk is not currently held by a live call argument.
func (r *ThunkRegistry) DestroyThunk(handle hostapi.ThunkHandle) (DestroyedThunk, bool) {
	v, ok := r.byHandle[handle]
	if !ok {
		return DestroyedThunk{}, false
	}
	delete(r.byHandle, handle)
	v.Active = false
	v.Lifecycle.Record("destroy")

	result := DestroyedThunk{Value: v, EmitPromise: true, EmitEscaped: v.Escaped}
	if !v.IsArgument {
		r.deallocate(v)
		result.Deallocated = true
	}
	return result, true
}

// DestroyAll tears down every thunk still registered, in arbitrary
// order. Used by teardown (C9) to flush whatever is left when the host
// signals shutdown, mirroring the original tracer's cleanup() loop over
// its promises_ map.
func (r *ThunkRegistry) DestroyAll() []DestroyedThunk {
	handles := make([]hostapi.ThunkHandle, 0, len(r.byHandle))
	for h := range r.byHandle {
		handles = append(handles, h)
	}
	out := make([]DestroyedThunk, 0, len(handles))
	for _, h := range handles {
		if result, ok := r.DestroyThunk(h); ok {
			out = append(out, result)
		}
	}
	return out
}

// deallocate marks v as freed. Go's GC reclaims the memory once nothing
// references v any longer; this bookkeeping exists purely to make the
// two-flag ownership protocol's "exactly once" guarantee testable
// (§8 invariant 4), mirroring the live/double-free flag on a heap
// object in a manually managed runtime. Double-free is a bug in the
// probe wiring, not a recoverable runtime condition, so it panics the
// same way the teacher's arena heap does on a double free.
func (r *ThunkRegistry) deallocate(v *DenotedValue) {
	if v.freed {
		panic(fmt.Sprintf("shadow: double free of thunk %d", v.ID))
	}
	v.freed = true
}
