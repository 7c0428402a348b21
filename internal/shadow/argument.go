package shadow

// Argument is the one-to-one shadow of a formal/actual pair bound on a
// particular Call (§3 "Argument"). It shares ownership of its
// DenotedValue with the thunk registry (§5).
type Argument struct {
	Call           *Call
	FormalPosition int
	ActualPosition int
	IsDefault      bool
	IsDotDotDot    bool
	DenotedValue   *DenotedValue

	NonLocalReturn bool

	// Direct/indirect classification of events that happened while this
	// argument's owning call was the innermost active context (direct)
	// versus while some other, more deeply nested context was active
	// (indirect) — see DESIGN.md for the resolution of this open
	// question; no original source for Argument's own bookkeeping
	// survived to ground it more concretely.
	DirectForce              bool
	IndirectForce            bool
	DirectLookupCount        uint64
	IndirectLookupCount      uint64
	DirectMetaprogramCount   uint64
	IndirectMetaprogramCount uint64
	UsedForS3Dispatch        bool
	UsedForS4Dispatch        bool
}

// NewArgument constructs an Argument bound to call at the given formal
// and actual positions.
func NewArgument(call *Call, formalPos, actualPos int, isDefault, isDotDotDot bool) *Argument {
	return &Argument{
		Call:           call,
		FormalPosition: formalPos,
		ActualPosition: actualPos,
		IsDefault:      isDefault,
		IsDotDotDot:    isDotDotDot,
	}
}

// RecordForce classifies a force event against this argument as direct
// or indirect depending on whether the argument's owning call is the
// context currently active at the top of the stack.
func (a *Argument) RecordForce(ownerIsActive bool) {
	if ownerIsActive {
		a.DirectForce = true
	} else {
		a.IndirectForce = true
	}
}

// RecordLookup classifies a lookup of the underlying value/expression.
func (a *Argument) RecordLookup(ownerIsActive bool) {
	if ownerIsActive {
		a.DirectLookupCount++
	} else {
		a.IndirectLookupCount++
	}
}

// RecordMetaprogram classifies a metaprogramming access (e.g.
// substitute/quote) of the underlying expression.
func (a *Argument) RecordMetaprogram(ownerIsActive bool) {
	if ownerIsActive {
		a.DirectMetaprogramCount++
	} else {
		a.IndirectMetaprogramCount++
	}
}
