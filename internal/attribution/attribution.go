// Package attribution implements the causal attribution engine (C7,
// §4.8–4.9): given a variable event (assign or lookup), it walks the
// execution-context stack and tags the enclosing thunks responsible for
// or observing that event, splitting the tally into self/lexical/
// non-lexical scope relations and direct/indirect innermost-vs-outer
// roles.
package attribution

import (
	"rtrace/internal/ctxstack"
	"rtrace/internal/hostapi"
	"rtrace/internal/ids"
	"rtrace/internal/shadow"
)

// IsParent implements §4.9: Ea is a lexical ancestor of Eb iff walking
// Eb's host-provided enclosing chain eventually reaches Ea. An
// environment is never its own parent.
func IsParent(envs hostapi.EnvIntrospector, ea, eb hostapi.EnvHandle) bool {
	if ea == eb {
		return false
	}
	cur := eb
	for {
		parent, ok := envs.Parent(cur)
		if !ok {
			return false
		}
		if parent == ea {
			return true
		}
		cur = parent
	}
}

func relationOf(envs hostapi.EnvIntrospector, e, ep hostapi.EnvHandle) shadow.Relation {
	if ep == e {
		return shadow.RelationSelf
	}
	if IsParent(envs, e, ep) {
		return shadow.RelationLexical
	}
	return shadow.RelationNonLexical
}

// IdentifySideEffectCreators implements identify_side_effect_creators
// (§4.8): v was just written in environment e. priorModificationTS is
// v's modification_ts as it stood immediately before this write (the
// caller must snapshot it before stamping the new one).
func IdentifySideEffectCreators(stack *ctxstack.Stack, envs hostapi.EnvIntrospector, v *shadow.Variable, e hostapi.EnvHandle, priorModificationTS ids.Timestamp) {
	direct := true
	stack.WalkTopDown(func(f ctxstack.Frame) bool {
		switch f.Kind {
		case ctxstack.KindClosure:
			// a function writing into its own environment is uninteresting
			return f.Call.Env != e
		case ctxstack.KindPromise:
			p := f.Thunk
			p.MaybeEscape()
			ep := p.HomeEnv
			rel := relationOf(envs, e, ep)
			if rel == shadow.RelationSelf {
				if p.CreationTS > priorModificationTS {
					p.Mutation.Add(shadow.RelationSelf, direct, p.Escaped)
					direct = false
					return false
				}
				// Self-relation with a failing timestamp guard falls through
				// to the non-lexical branch of the priority chain (section 4.8):
				// a self env is never its own lexical ancestor, so there is
				// nowhere else for it to land.
				rel = shadow.RelationNonLexical
			}
			p.Mutation.Add(rel, direct, p.Escaped)
			direct = false
			return true
		default: // Builtin/Special are transparent
			return true
		}
	})
}

// IdentifySideEffectObservers implements identify_side_effect_observers
// (§4.8): v was just read in environment e.
func IdentifySideEffectObservers(stack *ctxstack.Stack, envs hostapi.EnvIntrospector, v *shadow.Variable, e hostapi.EnvHandle) {
	if !v.ModificationTS.IsDefined() {
		return
	}
	direct := true
	stack.WalkTopDown(func(f ctxstack.Frame) bool {
		switch f.Kind {
		case ctxstack.KindClosure:
			return f.Call.Env != e
		case ctxstack.KindPromise:
			p := f.Thunk
			p.MaybeEscape()
			ep := p.HomeEnv
			rel := relationOf(envs, e, ep)
			if rel == shadow.RelationSelf {
				if p.CreationTS < v.ModificationTS {
					p.Observation.Add(shadow.RelationSelf, direct, p.Escaped)
					direct = false
					return false
				}
				// Same fallthrough as IdentifySideEffectCreators: a failing
				// self-relation timestamp guard lands in non-lexical, never
				// a silent no-op.
				rel = shadow.RelationNonLexical
			}
			p.Observation.Add(rel, direct, p.Escaped)
			direct = false
			return true
		default:
			return true
		}
	})
}
