// Package funcsummary implements the function summary component (C10,
// §4.11): interning host function handles into shadow Functions,
// accumulating per-invocation signatures, and the wrapper/dispatcher
// bookkeeping needed for the call_summary and function_definition
// output tables.
package funcsummary

import (
	"rtrace/internal/ctxstack"
	"rtrace/internal/hostapi"
	"rtrace/internal/ids"
	"rtrace/internal/shadow"
)

// Signature is one distinct (force_order, missing_args, return_type)
// tuple observed across every call to a function, with its occurrence
// count.
type Signature struct {
	ForceOrder  []int
	MissingArgs []int
	ReturnType  string
	Count       uint64
}

// Function is the shadow of one host function (§3). It implements
// shadow.FunctionInfo so shadow.Call can reference it without this
// package importing shadow.Call back.
type Function struct {
	id         ids.FunctionID
	HostHandle hostapi.FuncHandle
	Kind       hostapi.CallKind

	FormalCount  int
	ByteCompiled bool
	Definition   string
	HasDefinition bool

	Namespace     string
	Names         []string
	GenericMethod string
	IsDispatcher  bool
	IsWrapper     bool

	Summaries []*Signature
}

// ID returns the function's identity.
func (f *Function) ID() ids.FunctionID { return f.id }

// FormalParameterCount returns the number of formals.
func (f *Function) FormalParameterCount() int { return f.FormalCount }

// MarkWrapper flags this function as a wrapper around an internal or
// primitive callee (§4.11 update_wrapper).
func (f *Function) MarkWrapper() { f.IsWrapper = true }

// AddSummary increments the matching (force_order, missing_args,
// return_type) signature's count, appending a new one if none matches.
func (f *Function) AddSummary(call *shadow.Call) {
	for _, s := range f.Summaries {
		if intsEqual(s.ForceOrder, call.ForceOrder) && intsEqual(s.MissingArgs, call.MissingArgs) && s.ReturnType == call.ReturnValueType {
			s.Count++
			return
		}
	}
	f.Summaries = append(f.Summaries, &Signature{
		ForceOrder:  append([]int(nil), call.ForceOrder...),
		MissingArgs: append([]int(nil), call.MissingArgs...),
		ReturnType:  call.ReturnValueType,
		Count:       1,
	})
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Registry interns host function handles into Functions (§4.11
// lookup_function) and tracks which ones have already emitted their
// function_definition row.
type Registry struct {
	clock    *ids.Clock
	byHandle map[hostapi.FuncHandle]*Function
	emitted  map[ids.FunctionID]bool
}

// NewRegistry constructs an empty registry sharing clock with the rest
// of the tracer state.
func NewRegistry(clock *ids.Clock) *Registry {
	return &Registry{
		clock:    clock,
		byHandle: make(map[hostapi.FuncHandle]*Function),
		emitted:  make(map[ids.FunctionID]bool),
	}
}

// Peek returns the already-interned Function for handle without
// querying the host, used by callers that need to distinguish a fresh
// intern from a repeat one (e.g. object_count bookkeeping).
func (r *Registry) Peek(handle hostapi.FuncHandle) (*Function, bool) {
	fn, ok := r.byHandle[handle]
	return fn, ok
}

// Intern returns the existing Function for handle, or queries host and
// builds one on first encounter.
func (r *Registry) Intern(handle hostapi.FuncHandle, host hostapi.HostQueries) *Function {
	if fn, ok := r.byHandle[handle]; ok {
		return fn
	}
	formals := host.Formals(handle)
	definition, byteCompiled, hasDefinition := host.FunctionDefinition(handle)
	namespace, names, generic, dispatcher := host.FunctionNames(handle)
	fn := &Function{
		id:            r.clock.NextFunctionID(),
		HostHandle:    handle,
		Kind:          host.FunctionKind(handle),
		FormalCount:   len(formals),
		ByteCompiled:  byteCompiled,
		Definition:    definition,
		HasDefinition: hasDefinition,
		Namespace:     namespace,
		Names:         names,
		GenericMethod: generic,
		IsDispatcher:  dispatcher,
	}
	r.byHandle[handle] = fn
	return fn
}

// UpdateWrapper implements §4.11's update_wrapper: called on call
// entry once the callee's own frame is already on stack, it peeks one
// frame further down; if that caller frame is a closure, its function
// is marked a wrapper iff the callee just entered is builtin or
// special (i.e. "internal/primitive", not another closure).
func UpdateWrapper(stack *ctxstack.Stack, calleeKind hostapi.CallKind) {
	caller, ok := stack.Peek(1)
	if !ok || caller.Kind != ctxstack.KindClosure {
		return
	}
	if calleeKind == hostapi.CallClosure {
		return
	}
	caller.Call.Function.MarkWrapper()
}

// FunctionDefinitionRow is one row of the function_definition table,
// emitted at most once per function via the seen set.
type FunctionDefinitionRow struct {
	FunctionID   ids.FunctionID
	ByteCompiled bool
	Definition   string
}

// DrainDefinitions returns a function_definition row for every interned
// function not yet emitted that has a definition, marking each as
// emitted. Functions without a definition produce no row.
func (r *Registry) DrainDefinitions() []FunctionDefinitionRow {
	var rows []FunctionDefinitionRow
	for _, fn := range r.byHandle {
		if r.emitted[fn.id] {
			continue
		}
		if !fn.HasDefinition {
			continue
		}
		r.emitted[fn.id] = true
		rows = append(rows, FunctionDefinitionRow{FunctionID: fn.id, ByteCompiled: fn.ByteCompiled, Definition: fn.Definition})
	}
	return rows
}

// CallSummaryRow is one row of the call_summary table: one per distinct
// signature observed for a function.
type CallSummaryRow struct {
	FunctionID            ids.FunctionID
	FunctionType          hostapi.CallKind
	FormalParameterCount  int
	Wrapper               bool
	FunctionName          string
	GenericMethod         string
	Dispatcher            bool
	ForceOrder            []int
	MissingArguments      []int
	ReturnValueType       string
	CallCount             uint64
}

// allNames builds the call_summary FunctionName field per
// serialize_function_call_summary_(): every interned name for fn,
// namespace-qualified and joined with " | " (needed since S3/S4
// generics dispatch the same handle under multiple names).
func allNames(fn *Function) string {
	if len(fn.Names) == 0 {
		return fn.Namespace
	}
	name := fn.Namespace + "::" + fn.Names[0]
	for _, n := range fn.Names[1:] {
		name += " | " + fn.Namespace + "::" + n
	}
	return name
}

// DrainCallSummaries renders one call_summary row per distinct
// (force_order, missing_args, return_type) signature across every
// interned function.
func (r *Registry) DrainCallSummaries() []CallSummaryRow {
	var rows []CallSummaryRow
	for _, fn := range r.byHandle {
		name := allNames(fn)
		for _, s := range fn.Summaries {
			rows = append(rows, CallSummaryRow{
				FunctionID:           fn.id,
				FunctionType:         fn.Kind,
				FormalParameterCount: fn.FormalCount,
				Wrapper:              fn.IsWrapper,
				FunctionName:         name,
				GenericMethod:        fn.GenericMethod,
				Dispatcher:           fn.IsDispatcher,
				ForceOrder:           s.ForceOrder,
				MissingArguments:     s.MissingArgs,
				ReturnValueType:      s.ReturnType,
				CallCount:            s.Count,
			})
		}
	}
	return rows
}
