package attribution

import (
	"testing"

	"rtrace/internal/ctxstack"
	"rtrace/internal/hostapi"
	"rtrace/internal/ids"
	"rtrace/internal/shadow"
)

// fakeEnvs is a minimal hostapi.EnvIntrospector backed by a parent map,
// enough to drive IsParent/relationOf without a real host.
type fakeEnvs struct {
	parent map[hostapi.EnvHandle]hostapi.EnvHandle
}

func (f *fakeEnvs) Parent(e hostapi.EnvHandle) (hostapi.EnvHandle, bool) {
	p, ok := f.parent[e]
	return p, ok
}

func (f *fakeEnvs) LookupByName(hostapi.EnvHandle, string) (hostapi.ValueHandle, bool) {
	return hostapi.NoHandle, false
}

func TestIsParent(t *testing.T) {
	envs := &fakeEnvs{parent: map[hostapi.EnvHandle]hostapi.EnvHandle{
		3: 2,
		2: 1,
	}}
	if IsParent(envs, 1, 1) {
		t.Error("an environment must never be its own parent")
	}
	if !IsParent(envs, 1, 2) {
		t.Error("1 is the direct parent of 2")
	}
	if !IsParent(envs, 1, 3) {
		t.Error("1 is a transitive ancestor of 3")
	}
	if IsParent(envs, 3, 1) {
		t.Error("3 is not an ancestor of 1")
	}
}

func TestRelationOf(t *testing.T) {
	envs := &fakeEnvs{parent: map[hostapi.EnvHandle]hostapi.EnvHandle{2: 1}}
	if got := relationOf(envs, 1, 1); got != shadow.RelationSelf {
		t.Errorf("relationOf(1,1) = %v, want RelationSelf", got)
	}
	if got := relationOf(envs, 1, 2); got != shadow.RelationLexical {
		t.Errorf("relationOf(1,2) = %v, want RelationLexical", got)
	}
	if got := relationOf(envs, 2, 1); got != shadow.RelationNonLexical {
		t.Errorf("relationOf(2,1) = %v, want RelationNonLexical", got)
	}
}

// TestIdentifySideEffectCreators_SelfTimestampFailureFallsThrough is
// the direct regression test for the fallthrough rule (§4.8): a
// self-relation promise frame whose timestamp guard fails records a
// non-lexical attribution for that frame instead of a no-op (a self
// env is never its own lexical ancestor, so non-lexical is the only
// place left in the chain), the walk continues outward, and the
// direct latch has already flipped by the time the outer frame is
// reached.
func TestIdentifySideEffectCreators_SelfTimestampFailureFallsThrough(t *testing.T) {
	const (
		e        hostapi.EnvHandle = 1
		outerEnv hostapi.EnvHandle = 0
	)
	// outerEnv's parent is e, so relationOf(e, outerEnv) is RelationLexical.
	envs := &fakeEnvs{parent: map[hostapi.EnvHandle]hostapi.EnvHandle{outerEnv: e}}

	selfPromise := &shadow.DenotedValue{HomeEnv: e, CreationTS: ids.Timestamp(5)}
	outerPromise := &shadow.DenotedValue{HomeEnv: outerEnv, CreationTS: ids.Timestamp(1)}

	stack := ctxstack.New()
	stack.PushPromise(outerPromise)
	stack.PushPromise(selfPromise)

	v := &shadow.Variable{}
	priorModificationTS := ids.Timestamp(10) // selfPromise.CreationTS (5) > 10 is false

	IdentifySideEffectCreators(stack, envs, v, e, priorModificationTS)

	if got := selfPromise.Mutation.NonLexical.Direct.Total(); got != 1 {
		t.Fatalf("self frame with failed timestamp guard got %d direct non-lexical mutations, want 1", got)
	}
	if got := outerPromise.Mutation.Lexical.Indirect.Total(); got != 1 {
		t.Fatalf("outer lexical frame got %d indirect mutations, want 1 (walk continues past the self fallthrough with the direct latch already flipped)", got)
	}
}

// TestIdentifySideEffectCreators_SelfTimestampSuccessStopsWalk mirrors
// the success path: the timestamp guard passing records a direct self
// attribution and stops the walk, so an outer frame is never reached.
func TestIdentifySideEffectCreators_SelfTimestampSuccessStopsWalk(t *testing.T) {
	const (
		e        hostapi.EnvHandle = 1
		outerEnv hostapi.EnvHandle = 0
	)
	envs := &fakeEnvs{parent: map[hostapi.EnvHandle]hostapi.EnvHandle{outerEnv: e}}

	selfPromise := &shadow.DenotedValue{HomeEnv: e, CreationTS: ids.Timestamp(20)}
	outerPromise := &shadow.DenotedValue{HomeEnv: outerEnv, CreationTS: ids.Timestamp(1)}

	stack := ctxstack.New()
	stack.PushPromise(outerPromise)
	stack.PushPromise(selfPromise)

	v := &shadow.Variable{}
	priorModificationTS := ids.Timestamp(10) // selfPromise.CreationTS (20) > 10 is true

	IdentifySideEffectCreators(stack, envs, v, e, priorModificationTS)

	if got := selfPromise.Mutation.Self.Direct.Total(); got != 1 {
		t.Fatalf("self frame with passing timestamp guard got %d direct self mutations, want 1", got)
	}
	if total := outerPromise.Mutation.Self.Total() + outerPromise.Mutation.Lexical.Total() + outerPromise.Mutation.NonLexical.Total(); total != 0 {
		t.Fatalf("outer frame recorded %d mutations, want 0 (walk must stop once the self case records)", total)
	}
}

// TestIdentifySideEffectCreators_LexicalAndNonLexicalAlwaysRecord
// confirms the non-self branches are unaffected by the self-case fix:
// they always record and always continue, regardless of timestamps.
func TestIdentifySideEffectCreators_LexicalAndNonLexicalAlwaysRecord(t *testing.T) {
	const (
		e         hostapi.EnvHandle = 1
		lexEnv    hostapi.EnvHandle = 0
		unrelated hostapi.EnvHandle = 99
	)
	// lexEnv's parent is e, so relationOf(e, lexEnv) is RelationLexical;
	// unrelated has no recorded ancestry, so relationOf(e, unrelated) is
	// RelationNonLexical.
	envs := &fakeEnvs{parent: map[hostapi.EnvHandle]hostapi.EnvHandle{lexEnv: e}}

	lexical := &shadow.DenotedValue{HomeEnv: lexEnv}
	nonLexical := &shadow.DenotedValue{HomeEnv: unrelated}

	stack := ctxstack.New()
	stack.PushPromise(nonLexical)
	stack.PushPromise(lexical)

	v := &shadow.Variable{}
	IdentifySideEffectCreators(stack, envs, v, e, ids.NoTimestamp)

	if got := lexical.Mutation.Lexical.Direct.Total(); got != 1 {
		t.Fatalf("lexical frame got %d direct mutations, want 1", got)
	}
	if got := nonLexical.Mutation.NonLexical.Indirect.Total(); got != 1 {
		t.Fatalf("non-lexical frame got %d indirect mutations, want 1 (direct latch should have flipped after the lexical frame)", got)
	}
}

// TestIdentifySideEffectCreators_ClosureOwningEnvStopsWalk checks the
// transparent-closure-frame rule: a closure whose own environment is e
// stops the walk immediately, never reaching any promise frame beneath it.
func TestIdentifySideEffectCreators_ClosureOwningEnvStopsWalk(t *testing.T) {
	const e hostapi.EnvHandle = 1
	envs := &fakeEnvs{}

	beneath := &shadow.DenotedValue{HomeEnv: e}
	stack := ctxstack.New()
	stack.PushPromise(beneath)
	stack.PushClosure(&shadow.Call{Env: e})

	v := &shadow.Variable{}
	IdentifySideEffectCreators(stack, envs, v, e, ids.NoTimestamp)

	if total := beneath.Mutation.Self.Total() + beneath.Mutation.Lexical.Total() + beneath.Mutation.NonLexical.Total(); total != 0 {
		t.Fatalf("frame beneath a closure owning e recorded %d mutations, want 0", total)
	}
}

// TestIdentifySideEffectObservers_SelfTimestampFailureFallsThrough is
// the observer-side counterpart of the creators regression test.
func TestIdentifySideEffectObservers_SelfTimestampFailureFallsThrough(t *testing.T) {
	const (
		e        hostapi.EnvHandle = 1
		outerEnv hostapi.EnvHandle = 0
	)
	envs := &fakeEnvs{parent: map[hostapi.EnvHandle]hostapi.EnvHandle{outerEnv: e}}

	selfPromise := &shadow.DenotedValue{HomeEnv: e, CreationTS: ids.Timestamp(20)}
	outerPromise := &shadow.DenotedValue{HomeEnv: outerEnv, CreationTS: ids.Timestamp(1)}

	stack := ctxstack.New()
	stack.PushPromise(outerPromise)
	stack.PushPromise(selfPromise)

	v := &shadow.Variable{ModificationTS: ids.Timestamp(10)} // selfPromise.CreationTS (20) < 10 is false

	IdentifySideEffectObservers(stack, envs, v, e)

	if got := selfPromise.Observation.NonLexical.Direct.Total(); got != 1 {
		t.Fatalf("self frame with failed timestamp guard got %d direct non-lexical observations, want 1", got)
	}
	if got := outerPromise.Observation.Lexical.Indirect.Total(); got != 1 {
		t.Fatalf("outer lexical frame got %d indirect observations, want 1", got)
	}
}

// TestIdentifySideEffectObservers_UndefinedModificationTSSkipsWalk
// covers the early-return guard: a variable never assigned has no
// modification_ts, so no attribution walk should run at all.
func TestIdentifySideEffectObservers_UndefinedModificationTSSkipsWalk(t *testing.T) {
	const e hostapi.EnvHandle = 1
	envs := &fakeEnvs{}
	p := &shadow.DenotedValue{HomeEnv: e}
	stack := ctxstack.New()
	stack.PushPromise(p)

	v := &shadow.Variable{} // ModificationTS is ids.NoTimestamp
	IdentifySideEffectObservers(stack, envs, v, e)

	if total := p.Observation.Self.Total(); total != 0 {
		t.Fatalf("observer walk ran against a variable with no modification_ts, recorded %d", total)
	}
}
