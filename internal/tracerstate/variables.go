package tracerstate

import (
	"rtrace/internal/attribution"
	"rtrace/internal/hostapi"
	"rtrace/internal/shadow"
)

// OnVariableDefine implements the variable-definition probe (§4.2):
// always allocates a fresh variable identity, even redefining an
// existing name.
func (ts *TracerState) OnVariableDefine(env hostapi.EnvHandle, name string) *shadow.Variable {
	var v *shadow.Variable
	ts.probe(true, func() {
		ts.ensureEnvCounted(env)
		v = ts.envs.DefineVariable(env, name)
	})
	return v
}

// OnVariableAssign implements the variable-assignment probe (§4.2,
// §4.8): stamps the variable's modification_ts and runs
// identify_side_effect_creators against every enclosing thunk
// context, using the timestamp as it stood immediately before this
// write.
func (ts *TracerState) OnVariableAssign(env hostapi.EnvHandle, name string) *shadow.Variable {
	var v *shadow.Variable
	ts.probe(true, func() {
		ts.ensureEnvCounted(env)
		existing, ok := ts.envs.LookupVariable(env, name, true, false)
		if !ok {
			existing = ts.envs.DefineVariable(env, name)
		}
		prior := existing.ModificationTS
		ts.envs.UpdateVariable(env, name)
		attribution.IdentifySideEffectCreators(ts.stack, ts.host, existing, env, prior)
		v = existing
	})
	return v
}

// OnVariableLookup implements the variable-lookup probe (§4.2, §4.8):
// runs identify_side_effect_observers against every enclosing thunk
// context iff the variable has ever been assigned. Returns false when
// name does not resolve from env.
func (ts *TracerState) OnVariableLookup(env hostapi.EnvHandle, name string) (*shadow.Variable, bool) {
	var v *shadow.Variable
	var ok bool
	ts.probe(true, func() {
		v, ok = ts.envs.LookupVariable(env, name, false, false)
		if !ok {
			return
		}
		attribution.IdentifySideEffectObservers(ts.stack, ts.host, v, env)
	})
	return v, ok
}

// OnVariableRemove implements the variable-removal probe (§4.2
// remove_variable): detaches name from env's shadow registry. A name
// or environment unknown to the registry is a no-op, matching
// RemoveVariable's own tolerance.
func (ts *TracerState) OnVariableRemove(env hostapi.EnvHandle, name string) (*shadow.Variable, bool) {
	var v *shadow.Variable
	var ok bool
	ts.probe(true, func() {
		v, ok = ts.envs.RemoveVariable(env, name)
	})
	return v, ok
}

// OnEnvRelease implements the environment-release probe (§4.2, §7): an
// unknown handle is a no-op, matching the registry's own tolerance.
func (ts *TracerState) OnEnvRelease(env hostapi.EnvHandle) {
	ts.probe(true, func() {
		if _, existed := ts.envs.Peek(env); existed {
			ts.envs.Release(env)
		}
	})
}
