package fixture

import (
	"fmt"

	"rtrace/internal/hostapi"
	"rtrace/internal/shadow"
	"rtrace/internal/tracerstate"
)

// callHandle and thunkHandle box the live shadow objects a call or
// force event returned, keyed by the event log's own correlation ID
// so a later exit/end event can find them again.
type callHandle struct{ call *shadow.Call }
type thunkHandle struct{ value *shadow.DenotedValue }

// BindingSpec is the JSON-serializable form of hostapi.Binding, used
// to describe a closure call's formal/actual graph inside a recorded
// event.
type BindingSpec struct {
	Formal       string        `json:"formal"`
	IsThunk      bool          `json:"is_thunk,omitempty"`
	Thunk        hostapi.ThunkHandle `json:"thunk,omitempty"`
	Eager        hostapi.ValueHandle `json:"eager,omitempty"`
	IsDotsAgg    bool          `json:"is_dots_agg,omitempty"`
	DotsElements []BindingSpec `json:"dots_elements,omitempty"`
}

func (b BindingSpec) toBinding() hostapi.Binding {
	elems := make([]hostapi.Binding, len(b.DotsElements))
	for i, e := range b.DotsElements {
		elems[i] = e.toBinding()
	}
	return hostapi.Binding{
		IsThunk:      b.IsThunk,
		Thunk:        b.Thunk,
		Eager:        b.Eager,
		IsDotsAgg:    b.IsDotsAgg,
		DotsElements: elems,
	}
}

// EnvSpec seeds one environment's parent link.
type EnvSpec struct {
	Env    hostapi.EnvHandle `json:"env"`
	Parent hostapi.EnvHandle `json:"parent,omitempty"`
}

// BindingEntry seeds one name binding visible to LookupByName.
type BindingEntry struct {
	Env   hostapi.EnvHandle   `json:"env"`
	Name  string              `json:"name"`
	Value hostapi.ValueHandle `json:"value"`
}

// PromiseEnvEntry seeds the environment a thunk closed over.
type PromiseEnvEntry struct {
	Thunk hostapi.ThunkHandle `json:"thunk"`
	Env   hostapi.EnvHandle   `json:"env"`
}

// TypeEntry seeds the type_of(handle) answer.
type TypeEntry struct {
	Handle hostapi.Handle    `json:"handle"`
	Info   hostapi.TypeInfo  `json:"info"`
}

// FunctionEntry seeds one function's static shape.
type FunctionEntry struct {
	Func hostapi.FuncHandle `json:"func"`
	Spec FuncSpec           `json:"spec"`
}

// Event is one probe call in a recorded trace, in the order the host
// evaluator would have fired it.
type Event struct {
	Op string `json:"op"`
	// ID correlates an entry event with its matching exit event
	// (call_exit/non_local_return with closure_entry/builtin_entry/
	// special_entry, force_end with force_begin); caller-chosen.
	ID string `json:"id,omitempty"`
	// Call references the ID of an enclosing call, used by force_begin
	// to identify which call's argument list owns the thunk being
	// forced (may be empty for a thunk forced outside any tracked
	// call, e.g. a top-level promise).
	Call string `json:"call,omitempty"`

	Env      hostapi.EnvHandle   `json:"env,omitempty"`
	Name     string              `json:"name,omitempty"`
	Func     hostapi.FuncHandle  `json:"func,omitempty"`
	Thunk    hostapi.ThunkHandle `json:"thunk,omitempty"`
	Local    bool                `json:"local,omitempty"`
	Bindings []BindingSpec       `json:"bindings,omitempty"`

	ThunkHandles []hostapi.ThunkHandle `json:"thunk_handles,omitempty"`
	EnvHandles   []hostapi.EnvHandle   `json:"env_handles,omitempty"`
}

// EventLog is a complete recorded trace: the host state it assumes
// plus the ordered probe sequence to replay against it.
type EventLog struct {
	Environments []EnvSpec         `json:"environments,omitempty"`
	Functions    []FunctionEntry   `json:"functions,omitempty"`
	Bindings     []BindingEntry    `json:"bindings,omitempty"`
	PromiseEnvs  []PromiseEnvEntry `json:"promise_envs,omitempty"`
	Types        []TypeEntry       `json:"types,omitempty"`
	Events       []Event           `json:"events"`
}

// Seed populates h with everything log.Environments/Functions/
// Bindings/PromiseEnvs/Types describe, before Replay runs its events
// against it.
func Seed(h *Host, log *EventLog) {
	for _, e := range log.Environments {
		if e.Parent != hostapi.NoHandle {
			h.SetParent(e.Env, e.Parent)
		}
	}
	for _, f := range log.Functions {
		h.DefineFunc(f.Func, f.Spec)
	}
	for _, b := range log.Bindings {
		h.Bind(b.Env, b.Name, b.Value)
	}
	for _, p := range log.PromiseEnvs {
		h.SetPromiseEnv(p.Thunk, p.Env)
	}
	for _, t := range log.Types {
		h.SetType(t.Handle, t.Info)
	}
}

// Replay drives ts through every event in log, in order. It is the
// fixture half of the deterministic-replay story (§6): same log, same
// host state, same table contents every time, apart from exectimer's
// execution_time column. Row order is not fixed for the tables drained
// from maps at teardown (the remaining promises and escaped_arguments
// rows, call_summary and function_definition).
func Replay(ts *tracerstate.TracerState, log *EventLog) error {
	calls := make(map[string]*callHandle)
	thunks := make(map[string]*thunkHandle)

	for i, ev := range log.Events {
		if err := replayOne(ts, ev, calls, thunks); err != nil {
			return fmt.Errorf("event %d (%s): %w", i, ev.Op, err)
		}
	}
	return nil
}

func replayOne(ts *tracerstate.TracerState, ev Event, calls map[string]*callHandle, thunks map[string]*thunkHandle) error {
	switch ev.Op {
	case "closure_entry":
		bindingOf := bindingLookup(ev.Bindings)
		call := ts.OnClosureEntry(ev.Func, ev.Name, ev.Env, bindingOf)
		calls[ev.ID] = &callHandle{call: call}
		return nil
	case "builtin_entry":
		call := ts.OnNonClosureEntry(ev.Func, hostapi.CallBuiltin, ev.Name, ev.Env)
		calls[ev.ID] = &callHandle{call: call}
		return nil
	case "special_entry":
		call := ts.OnNonClosureEntry(ev.Func, hostapi.CallSpecial, ev.Name, ev.Env)
		calls[ev.ID] = &callHandle{call: call}
		return nil
	case "call_exit":
		c, ok := calls[ev.ID]
		if !ok {
			return fmt.Errorf("unknown call id %q", ev.ID)
		}
		ts.OnCallExit(c.call)
		delete(calls, ev.ID)
		return nil
	case "non_local_return":
		c, ok := calls[ev.ID]
		if !ok {
			return fmt.Errorf("unknown call id %q", ev.ID)
		}
		ts.OnNonLocalReturn(c.call)
		delete(calls, ev.ID)
		return nil
	case "thunk_create":
		v := ts.OnThunkCreate(ev.Thunk, ev.Local)
		if ev.ID != "" {
			thunks[ev.ID] = &thunkHandle{value: v}
		}
		return nil
	case "force_begin":
		var owningCall *shadow.Call
		if ev.Call != "" {
			if c, ok := calls[ev.Call]; ok {
				owningCall = c.call
			}
		}
		v := ts.OnForceBegin(ev.Thunk, owningCall)
		thunks[ev.ID] = &thunkHandle{value: v}
		return nil
	case "force_end":
		t, ok := thunks[ev.ID]
		if !ok {
			return fmt.Errorf("unknown thunk id %q", ev.ID)
		}
		ts.OnForceEnd(t.value)
		delete(thunks, ev.ID)
		return nil
	case "var_define":
		ts.OnVariableDefine(ev.Env, ev.Name)
		return nil
	case "var_assign":
		ts.OnVariableAssign(ev.Env, ev.Name)
		return nil
	case "var_lookup":
		ts.OnVariableLookup(ev.Env, ev.Name)
		return nil
	case "var_remove":
		ts.OnVariableRemove(ev.Env, ev.Name)
		return nil
	case "env_release":
		ts.OnEnvRelease(ev.Env)
		return nil
	case "gc":
		ts.OnGC(ev.ThunkHandles, ev.EnvHandles)
		return nil
	default:
		return fmt.Errorf("unknown op %q", ev.Op)
	}
}

func bindingLookup(specs []BindingSpec) func(string) (hostapi.Binding, bool) {
	byName := make(map[string]hostapi.Binding, len(specs))
	for _, s := range specs {
		byName[s.Formal] = s.toBinding()
	}
	return func(formal string) (hostapi.Binding, bool) {
		b, ok := byName[formal]
		return b, ok
	}
}
