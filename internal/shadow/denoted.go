package shadow

import (
	"rtrace/internal/hostapi"
	"rtrace/internal/ids"
)

// EvaluationDepth is the stack-shape snapshot taken the first time a
// thunk is forced (§4.10).
type EvaluationDepth struct {
	CallDepth                     int
	PromiseDepth                  int
	NestedPromiseDepth            int
	ForcingActualArgumentPosition int
}

// EscapedPromiseEvalDepth is the sentinel returned when the owning call
// could not be found on the stack during the depth walk.
var EscapedPromiseEvalDepth = EvaluationDepth{ForcingActualArgumentPosition: -1}

// PreviousArgumentLinkage records the most recent call/argument that
// referenced this thunk, refreshed every time an owning argument is torn
// down (§3, "linkage to last owning argument").
type PreviousArgumentLinkage struct {
	CallID                  ids.CallID
	FunctionID              ids.FunctionID
	FormalParameterCount    int
	FormalParameterPosition int
	ActualArgumentPosition  int
	CallReturnValueType     string
	DefaultArgument         bool
}

// DenotedValue is the shadow of a thunk or an eagerly materialized
// argument value (C4, §3 "DenotedValue").
type DenotedValue struct {
	ID         ids.ThunkID
	HostHandle hostapi.ThunkHandle
	IsLocal    bool
	IsPromise  bool // true for a real lazy thunk, false for an eager wrapper

	ArgumentType   string
	ExpressionType string
	ValueType      string
	ClassName      string
	Scope          ids.FunctionID

	// HomeEnv is the environment a promise was created in, used to tell
	// a default-argument promise (evaluated in the callee's own
	// environment) apart from a promise built from the caller's actual
	// argument expression. Unused for eager values.
	HomeEnv hostapi.EnvHandle

	Active      bool
	IsArgument  bool
	Preforced   bool
	Escaped     bool
	WasArgument bool

	CreationTS   ids.Timestamp
	FirstForceTS ids.Timestamp // ids.NoTimestamp until first force
	LastEventTS  ids.Timestamp

	ForceCount             EscapeSplit
	MetaprogramCount       EscapeSplit
	ValueLookupCount       EscapeSplit
	ValueAssignCount       EscapeSplit
	ExpressionLookupCount  EscapeSplit
	ExpressionAssignCount  EscapeSplit
	EnvironmentLookupCount EscapeSplit
	EnvironmentAssignCount EscapeSplit

	S3DispatchCount uint64
	S4DispatchCount uint64

	Mutation    ScopeCounterSet
	Observation ScopeCounterSet

	Previous       PreviousArgumentLinkage
	NonLocalReturn bool

	ExecutionTime uint64 // nanoseconds accumulated while on the stack

	EvalDepth      EvaluationDepth
	FirstForceDone bool

	// OwningArguments lists every Argument currently holding a reference
	// to this thunk (usually zero or one; more than one is possible when
	// the same thunk is simultaneously an argument of nested calls).
	OwningArguments []*Argument

	Lifecycle LifecycleRecord

	freed bool
}

// IsForced reports whether the thunk has been forced at least once.
func (d *DenotedValue) IsForced() bool { return d.ForceCount.Total() > 0 }

// Touch stamps last_event_ts, called on every event that still
// references this thunk after its first force (§8 invariant 1:
// creation_ts ≤ first_force_ts ≤ last_event_ts).
func (d *DenotedValue) Touch(t ids.Timestamp) { d.LastEventTS = t }

// TouchForce stamps first_force_ts the first time it is called, then
// behaves like Touch.
func (d *DenotedValue) TouchForce(t ids.Timestamp) {
	if !d.FirstForceTS.IsDefined() {
		d.FirstForceTS = t
	}
	d.Touch(t)
}

// MaybeEscape flips Escaped the first time a causal event fires on a
// thunk that is no longer referenced by any live call's argument list
// but is still active (still referenced from somewhere, e.g. a global)
// — GLOSSARY "Escape: a thunk outliving the call whose argument list
// first referenced it."
func (d *DenotedValue) MaybeEscape() {
	if !d.IsArgument && d.WasArgument && !d.Escaped {
		d.Escaped = true
	}
}

// AddArgument records that arg now shares ownership of d (§5).
func (d *DenotedValue) AddArgument(arg *Argument) {
	d.IsArgument = true
	d.WasArgument = true
	d.OwningArguments = append(d.OwningArguments, arg)
}

// RemoveArgument detaches arg from d, refreshes the previous-linkage
// snapshot and clears IsArgument when no owner remains (§4.3, §4.4).
func (d *DenotedValue) RemoveArgument(arg *Argument, callID ids.CallID, functionID ids.FunctionID, returnValueType string, formalParameterCount int) {
	for i, a := range d.OwningArguments {
		if a == arg {
			d.OwningArguments = append(d.OwningArguments[:i], d.OwningArguments[i+1:]...)
			break
		}
	}
	d.Previous = PreviousArgumentLinkage{
		CallID:                  callID,
		FunctionID:              functionID,
		FormalParameterCount:    formalParameterCount,
		FormalParameterPosition: arg.FormalPosition,
		ActualArgumentPosition:  arg.ActualPosition,
		CallReturnValueType:     returnValueType,
		DefaultArgument:         arg.IsDefault,
	}
	d.NonLocalReturn = d.NonLocalReturn || arg.NonLocalReturn
	if len(d.OwningArguments) == 0 {
		d.IsArgument = false
	}
}
