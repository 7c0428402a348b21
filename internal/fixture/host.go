// Package fixture supplies a deterministic in-memory implementation
// of hostapi.HostQueries, plus a recorded-event player that drives a
// tracerstate.TracerState the same way a real host evaluator's probe
// calls would. It exists so the module builds and tests standalone,
// without a real lazy-language evaluator wired up (§6, "a recorded
// event log drives the tracer end to end for tests and for the rtrace
// CLI's offline `run` subcommand").
package fixture

import (
	"fmt"

	"rtrace/internal/hostapi"
)

// FuncSpec is everything the fixture host needs to answer queries
// about one function handle.
type FuncSpec struct {
	Kind          hostapi.CallKind
	Formals       []hostapi.FormalInfo
	ArgEvalBitmap []bool
	Definition    string
	ByteCompiled  bool
	HasDefinition bool
	Namespace     string
	Names         []string
	GenericMethod string
	IsDispatcher  bool
}

// Host is a deterministic, entirely in-memory hostapi.HostQueries: a
// handful of maps standing in for the real evaluator's environment
// chain, promise table and function table.
type Host struct {
	parents     map[hostapi.EnvHandle]hostapi.EnvHandle
	bindings    map[hostapi.EnvHandle]map[string]hostapi.ValueHandle
	promiseEnvs map[hostapi.ThunkHandle]hostapi.EnvHandle
	funcs       map[hostapi.FuncHandle]FuncSpec
	types       map[hostapi.Handle]hostapi.TypeInfo
	symbols     map[hostapi.Handle]string
	dots        map[hostapi.Handle]bool
}

// New returns an empty fixture host.
func New() *Host {
	return &Host{
		parents:     make(map[hostapi.EnvHandle]hostapi.EnvHandle),
		bindings:    make(map[hostapi.EnvHandle]map[string]hostapi.ValueHandle),
		promiseEnvs: make(map[hostapi.ThunkHandle]hostapi.EnvHandle),
		funcs:       make(map[hostapi.FuncHandle]FuncSpec),
		types:       make(map[hostapi.Handle]hostapi.TypeInfo),
		symbols:     make(map[hostapi.Handle]string),
		dots:        make(map[hostapi.Handle]bool),
	}
}

// SetParent records e's lexically enclosing environment.
func (h *Host) SetParent(e, parent hostapi.EnvHandle) { h.parents[e] = parent }

// Bind records that name resolves to value inside env, for
// LookupByName to answer.
func (h *Host) Bind(env hostapi.EnvHandle, name string, value hostapi.ValueHandle) {
	m, ok := h.bindings[env]
	if !ok {
		m = make(map[string]hostapi.ValueHandle)
		h.bindings[env] = m
	}
	m[name] = value
}

// SetPromiseEnv records the environment a thunk was created in.
func (h *Host) SetPromiseEnv(thunk hostapi.ThunkHandle, env hostapi.EnvHandle) {
	h.promiseEnvs[thunk] = env
}

// DefineFunc records a function's static shape.
func (h *Host) DefineFunc(fn hostapi.FuncHandle, spec FuncSpec) { h.funcs[fn] = spec }

// SetType records the result type_of(v) should answer for handle.
func (h *Host) SetType(handle hostapi.Handle, info hostapi.TypeInfo) { h.types[handle] = info }

// SetSymbol records the printable name for a symbol handle.
func (h *Host) SetSymbol(handle hostapi.Handle, name string) { h.symbols[handle] = name }

// MarkDotDotDot flags handle as denoting the `...` symbol.
func (h *Host) MarkDotDotDot(handle hostapi.Handle) { h.dots[handle] = true }

// Parent implements hostapi.EnvIntrospector.
func (h *Host) Parent(e hostapi.EnvHandle) (hostapi.EnvHandle, bool) {
	p, ok := h.parents[e]
	return p, ok
}

// LookupByName implements hostapi.EnvIntrospector: walks the parent
// chain from e, the same way a real lexical-scoping evaluator would.
func (h *Host) LookupByName(e hostapi.EnvHandle, name string) (hostapi.ValueHandle, bool) {
	cur := e
	for {
		if m, ok := h.bindings[cur]; ok {
			if v, ok := m[name]; ok {
				return v, true
			}
		}
		parent, ok := h.parents[cur]
		if !ok {
			return hostapi.NoHandle, false
		}
		cur = parent
	}
}

// PromiseEnv implements hostapi.HostQueries.
func (h *Host) PromiseEnv(p hostapi.ThunkHandle) (hostapi.EnvHandle, bool) {
	env, ok := h.promiseEnvs[p]
	return env, ok
}

// Formals implements hostapi.HostQueries.
func (h *Host) Formals(fn hostapi.FuncHandle) []hostapi.FormalInfo {
	return h.funcs[fn].Formals
}

// TypeOf implements hostapi.HostQueries.
func (h *Host) TypeOf(v hostapi.ValueHandle) hostapi.TypeInfo {
	return h.types[v]
}

// ArgEvalBitmap implements hostapi.HostQueries.
func (h *Host) ArgEvalBitmap(fn hostapi.FuncHandle) []bool {
	return h.funcs[fn].ArgEvalBitmap
}

// SymbolToString implements hostapi.HostQueries.
func (h *Host) SymbolToString(handle hostapi.Handle) string {
	if name, ok := h.symbols[handle]; ok {
		return name
	}
	return fmt.Sprintf("<symbol %d>", handle)
}

// IsDotDotDot implements hostapi.HostQueries.
func (h *Host) IsDotDotDot(handle hostapi.Handle) bool { return h.dots[handle] }

// FunctionKind implements hostapi.HostQueries.
func (h *Host) FunctionKind(fn hostapi.FuncHandle) hostapi.CallKind { return h.funcs[fn].Kind }

// FunctionDefinition implements hostapi.HostQueries.
func (h *Host) FunctionDefinition(fn hostapi.FuncHandle) (string, bool, bool) {
	spec := h.funcs[fn]
	return spec.Definition, spec.ByteCompiled, spec.HasDefinition
}

// FunctionNames implements hostapi.HostQueries.
func (h *Host) FunctionNames(fn hostapi.FuncHandle) (string, []string, string, bool) {
	spec := h.funcs[fn]
	return spec.Namespace, spec.Names, spec.GenericMethod, spec.IsDispatcher
}

var _ hostapi.HostQueries = (*Host)(nil)
