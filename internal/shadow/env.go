// Package shadow holds the object graph the tracer core maintains in
// parallel with the host's own environments, thunks and calls: C3
// (environment/variable registry), C4 (thunk registry / DenotedValue)
// and C5 (call/argument registry).
package shadow

import (
	"rtrace/internal/hostapi"
	"rtrace/internal/ids"
)

// Variable is the shadow of one binding inside an Environment.
type Variable struct {
	ID             ids.VarID
	Name           string
	CreationTS     ids.Timestamp
	ModificationTS ids.Timestamp // ids.NoTimestamp until first assign
}

// Environment is the shadow of one host environment/frame.
type Environment struct {
	ID         ids.EnvID
	HostHandle hostapi.EnvHandle
	Vars       map[string]*Variable
}

func newEnvironment(id ids.EnvID, handle hostapi.EnvHandle) *Environment {
	return &Environment{ID: id, HostHandle: handle, Vars: make(map[string]*Variable)}
}

// EnvRegistry maps host environment handles to their shadow record (C3).
type EnvRegistry struct {
	clock    *ids.Clock
	byHandle map[hostapi.EnvHandle]*Environment
}

// NewEnvRegistry constructs an empty registry sharing clock with the
// rest of the tracer state.
func NewEnvRegistry(clock *ids.Clock) *EnvRegistry {
	return &EnvRegistry{clock: clock, byHandle: make(map[hostapi.EnvHandle]*Environment)}
}

// LookupEnvironment returns the existing record for handle, or inserts a
// fresh one when create is true and none exists yet (§4.2).
func (r *EnvRegistry) LookupEnvironment(handle hostapi.EnvHandle, create bool) (*Environment, bool) {
	if env, ok := r.byHandle[handle]; ok {
		return env, true
	}
	if !create {
		return nil, false
	}
	env := newEnvironment(r.clock.NextEnvID(), handle)
	r.byHandle[handle] = env
	return env, true
}

// Peek looks up without creating, mirroring the "host handle not found"
// tolerant path used outside LookupEnvironment's create flag.
func (r *EnvRegistry) Peek(handle hostapi.EnvHandle) (*Environment, bool) {
	env, ok := r.byHandle[handle]
	return env, ok
}

// Release drops the shadow for handle when the host signals environment
// release. A handle unknown to the registry is a no-op (§7).
func (r *EnvRegistry) Release(handle hostapi.EnvHandle) {
	delete(r.byHandle, handle)
}

// Len reports the number of live shadow environments, used by C9's
// object_count emission.
func (r *EnvRegistry) Len() int { return len(r.byHandle) }

// LookupVariable implements §4.2's lookup_variable: ensures the
// environment exists per createEnv, then looks up (and optionally
// creates) the named variable inside it.
func (r *EnvRegistry) LookupVariable(handle hostapi.EnvHandle, name string, createEnv, createVar bool) (*Variable, bool) {
	env, ok := r.LookupEnvironment(handle, createEnv)
	if !ok {
		return nil, false
	}
	if v, ok := env.Vars[name]; ok {
		return v, true
	}
	if !createVar {
		return nil, false
	}
	v := &Variable{ID: r.clock.NextVarID(), Name: name, CreationTS: r.clock.Now()}
	env.Vars[name] = v
	return v, true
}

// DefineVariable always allocates a fresh var_id, even if name already
// existed: redefinition overwrites identity (§4.2).
func (r *EnvRegistry) DefineVariable(handle hostapi.EnvHandle, name string) *Variable {
	env, _ := r.LookupEnvironment(handle, true)
	v := &Variable{ID: r.clock.NextVarID(), Name: name, CreationTS: r.clock.Now()}
	env.Vars[name] = v
	return v
}

// UpdateVariable looks up name in handle's environment and stamps its
// modification_ts with the current timestamp. Returns false if the
// variable does not exist (caller may choose to define it instead).
func (r *EnvRegistry) UpdateVariable(handle hostapi.EnvHandle, name string) (*Variable, bool) {
	v, ok := r.LookupVariable(handle, name, false, false)
	if !ok {
		return nil, false
	}
	v.ModificationTS = r.clock.Now()
	return v, true
}

// RemoveVariable detaches name from handle's environment and returns the
// prior record, if any.
func (r *EnvRegistry) RemoveVariable(handle hostapi.EnvHandle, name string) (*Variable, bool) {
	env, ok := r.Peek(handle)
	if !ok {
		return nil, false
	}
	v, ok := env.Vars[name]
	if !ok {
		return nil, false
	}
	delete(env.Vars, name)
	return v, true
}
