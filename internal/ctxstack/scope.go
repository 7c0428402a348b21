package ctxstack

import "rtrace/internal/shadow"

// AssignScope implements §4.7 exactly as described, including the
// documented open question: the loop overwrites scope on every Call
// frame (closure, builtin or special) it passes over, not only the
// first one, and only stops once it reaches a Closure frame. Whether
// that repeated overwrite was intentional in the tracer this was
// distilled from is unclear; the walk order is preserved verbatim
// rather than "optimized" to assign scope once.
func AssignScope(stack *Stack, thunk *shadow.DenotedValue) {
	stack.WalkTopDown(func(f Frame) bool {
		if !f.IsCall() {
			return true
		}
		thunk.Scope = f.Call.FunctionID
		return f.Kind != KindClosure
	})
}

// EvaluationDepthAt implements §4.10: snapshot {call_depth, promise_depth,
// nested_promise_depth, forcing_actual_argument_position} for a force of
// thunk while call is the innermost closure activation it belongs to.
func EvaluationDepthAt(stack *Stack, call *shadow.Call) shadow.EvaluationDepth {
	depth := shadow.EvaluationDepth{ForcingActualArgumentPosition: -1}
	nesting := true
	found := false

	stack.WalkTopDown(func(f Frame) bool {
		switch f.Kind {
		case KindClosure:
			nesting = false
			if f.Call == call {
				found = true
				return false
			}
			depth.CallDepth++
			return true
		case KindPromise:
			depth.PromiseDepth++
			if nesting {
				depth.NestedPromiseDepth++
			}
			if depth.ForcingActualArgumentPosition == -1 {
				if pos, ok := actualPositionIn(f.Thunk, call); ok {
					depth.ForcingActualArgumentPosition = pos
				}
			}
			return true
		default: // Builtin/Special are transparent
			return true
		}
	})

	if !found {
		return shadow.EscapedPromiseEvalDepth
	}
	return depth
}

func actualPositionIn(thunk *shadow.DenotedValue, call *shadow.Call) (int, bool) {
	for _, arg := range thunk.OwningArguments {
		if arg.Call == call {
			return arg.ActualPosition, true
		}
	}
	return 0, false
}
