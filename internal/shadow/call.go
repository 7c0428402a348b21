package shadow

import (
	"rtrace/internal/hostapi"
	"rtrace/internal/ids"
)

// FunctionInfo is the narrow view of a shadow Function that shadow.Call
// needs, kept as an interface so this package does not have to import
// funcsummary (which in turn needs to import shadow for Call).
type FunctionInfo interface {
	ID() ids.FunctionID
	FormalParameterCount() int
	MarkWrapper()
}

// Call is the shadow of one function activation (§3 "Call", C5).
type Call struct {
	ID          ids.CallID
	FunctionID  ids.FunctionID
	Kind        hostapi.CallKind
	Name        string
	FormalCount int
	Env         hostapi.EnvHandle
	Function    FunctionInfo
	Arguments   []*Argument

	ReturnValueType string
	ForceOrder      []int // formal positions, in the order they were first forced
	MissingArgs     []int // formal positions never bound
	NonLocalReturn  bool
}

// AddArgument appends arg to the call's argument list.
func (c *Call) AddArgument(arg *Argument) {
	c.Arguments = append(c.Arguments, arg)
}

// RecordForcedFormal appends pos to ForceOrder the first time that
// formal position is forced during this call.
func (c *Call) RecordForcedFormal(pos int) {
	for _, p := range c.ForceOrder {
		if p == pos {
			return
		}
	}
	c.ForceOrder = append(c.ForceOrder, pos)
}

// CallRegistry builds and tears down Call/Argument records (C5, §4.4).
type CallRegistry struct {
	clock  *ids.Clock
	thunks *ThunkRegistry
}

// NewCallRegistry constructs a registry sharing clock and the thunk
// registry with the rest of the tracer state.
func NewCallRegistry(clock *ids.Clock, thunks *ThunkRegistry) *CallRegistry {
	return &CallRegistry{clock: clock, thunks: thunks}
}

// CreateClosureCall builds a Call for a closure invocation by walking
// formals against the bindings resolved from rho (§4.4). scopeAssigner
// is invoked for every freshly allocated DenotedValue so the caller can
// run the stack-dependent scope-assignment walk (§4.7) without this
// package depending on the execution-context stack.
func (r *CallRegistry) CreateClosureCall(
	fn FunctionInfo,
	name string,
	env hostapi.EnvHandle,
	formals []hostapi.FormalInfo,
	bindingOf func(formalName string) (hostapi.Binding, bool),
	promiseEnvOf func(hostapi.ThunkHandle) hostapi.EnvHandle,
	scopeAssigner func(*DenotedValue),
) *Call {
	call := &Call{
		ID:          r.clock.NextCallID(),
		FunctionID:  fn.ID(),
		Kind:        hostapi.CallClosure,
		Name:        name,
		FormalCount: fn.FormalParameterCount(),
		Env:         env,
		Function:    fn,
	}

	actualPos := -1
	for formalPos, formal := range formals {
		binding, ok := bindingOf(formal.Name)
		if !ok {
			call.MissingArgs = append(call.MissingArgs, formalPos)
			continue
		}
		if binding.IsDotsAgg {
			for _, elem := range binding.DotsElements {
				actualPos++
				r.addClosureArgument(call, formalPos, actualPos, elem, true, promiseEnvOf, scopeAssigner)
			}
			continue
		}
		actualPos++
		r.addClosureArgument(call, formalPos, actualPos, binding, formal.IsDotDotDot, promiseEnvOf, scopeAssigner)
	}
	return call
}

func (r *CallRegistry) addClosureArgument(call *Call, formalPos, actualPos int, binding hostapi.Binding, dotDotDot bool, promiseEnvOf func(hostapi.ThunkHandle) hostapi.EnvHandle, scopeAssigner func(*DenotedValue)) {
	var value *DenotedValue
	if binding.IsThunk {
		value, _ = r.thunks.LookupThunk(binding.Thunk, true, false, promiseEnvOf(binding.Thunk), scopeAssigner)
	} else {
		value = r.thunks.CreateEagerValue(binding.Eager)
		scopeAssigner(value)
	}

	// A promise evaluated in the callee's own environment is a default
	// argument expression; one carrying the caller's environment was
	// actually passed in. Eager values never reach this distinction, so
	// they default to true, matching the original tracer's literal logic.
	defaultArgument := true
	if value.IsPromise {
		defaultArgument = value.HomeEnv == call.Env
	}

	arg := NewArgument(call, formalPos, actualPos, defaultArgument, dotDotDot)
	arg.DenotedValue = value
	// An eager value is already materialized when the callee is entered,
	// so its argument is recorded as directly forced by this call.
	if !value.IsPromise {
		arg.RecordForce(true)
	}
	value.AddArgument(arg)
	call.AddArgument(arg)
}

// CreateNonClosureCall builds a Call for a builtin/special invocation:
// no per-argument walk, just the host's argument-evaluation bitmap
// recorded as force order (§4.4).
func (r *CallRegistry) CreateNonClosureCall(fn FunctionInfo, kind hostapi.CallKind, name string, env hostapi.EnvHandle, evalBitmap []bool) *Call {
	call := &Call{
		ID:          r.clock.NextCallID(),
		FunctionID:  fn.ID(),
		Kind:        kind,
		Name:        name,
		FormalCount: fn.FormalParameterCount(),
		Env:         env,
		Function:    fn,
	}
	for pos, evaluated := range evalBitmap {
		if evaluated {
			call.ForceOrder = append(call.ForceOrder, pos)
		}
	}
	return call
}

// DestroyedArgument is one row worth of data handed back by DestroyCall
// for emission to the arguments/escaped_arguments sinks.
type DestroyedArgument struct {
	Argument *Argument
	Value    *DenotedValue
	Freed    bool
}

// DestroyCall tears down call: for each argument it detaches from its
// thunk (clearing is_argument and recording last-call metadata),
// deallocating the thunk iff no longer active (§4.4).
func (r *CallRegistry) DestroyCall(call *Call) []DestroyedArgument {
	out := make([]DestroyedArgument, 0, len(call.Arguments))
	for _, arg := range call.Arguments {
		value := arg.DenotedValue
		value.RemoveArgument(arg, call.ID, call.FunctionID, call.ReturnValueType, call.FormalCount)
		freed := false
		if !value.Active {
			r.thunks.deallocate(value)
			freed = true
		}
		out = append(out, DestroyedArgument{Argument: arg, Value: value, Freed: freed})
	}
	return out
}
