package teardown

import (
	"strconv"
	"strings"

	"rtrace/internal/funcsummary"
	"rtrace/internal/shadow"
)

func formatBool(b bool) string { return strconv.FormatBool(b) }
func formatUint(n uint64) string { return strconv.FormatUint(n, 10) }
func formatInt(n int) string { return strconv.Itoa(n) }

// formatIntList renders a force_order/missing_args position list as a
// comma-joined string; the original narrow schema (§9, "preserve the
// narrower schema as-is") never spells out a separator for this
// column, so a plain comma join is used throughout.
func formatIntList(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

// ArgumentsHeader is the arguments table's column list (§6), 21 columns.
func ArgumentsHeader() []string {
	return []string{
		"call_id", "function_id", "value_id", "formal_parameter_position",
		"actual_argument_position", "argument_type", "expression_type", "value_type",
		"default", "dot_dot_dot", "preforce", "direct_force", "direct_lookup_count",
		"direct_metaprogram_count", "indirect_force", "indirect_lookup_count",
		"indirect_metaprogram_count", "S3_dispatch", "S4_dispatch",
		"forcing_actual_argument_position", "non_local_return",
	}
}

// BuildArgumentRow renders one arguments row for arg/value at call
// teardown (§4.4 destroy_call).
func BuildArgumentRow(call *shadow.Call, arg *shadow.Argument, value *shadow.DenotedValue) []string {
	return []string{
		formatUint(uint64(call.ID)),
		formatUint(uint64(call.FunctionID)),
		formatUint(uint64(value.ID)),
		formatInt(arg.FormalPosition),
		formatInt(arg.ActualPosition),
		value.ArgumentType,
		value.ExpressionType,
		value.ValueType,
		formatBool(arg.IsDefault),
		formatBool(arg.IsDotDotDot),
		formatBool(value.Preforced),
		formatBool(arg.DirectForce),
		formatUint(arg.DirectLookupCount),
		formatUint(arg.DirectMetaprogramCount),
		formatBool(arg.IndirectForce),
		formatUint(arg.IndirectLookupCount),
		formatUint(arg.IndirectMetaprogramCount),
		formatBool(arg.UsedForS3Dispatch),
		formatBool(arg.UsedForS4Dispatch),
		formatInt(value.EvalDepth.ForcingActualArgumentPosition),
		formatBool(arg.NonLocalReturn),
	}
}

// PromisesHeader is the promises table's column list (§6), 32 columns.
func PromisesHeader() []string {
	return []string{
		"value_id", "argument", "expression_type", "value_type", "scope",
		"S3_dispatch", "S4_dispatch", "preforce", "force_count",
		"call_depth", "promise_depth", "nested_promise_depth",
		"metaprogram_count", "value_lookup_count", "value_assign_count",
		"expression_lookup_count", "expression_assign_count",
		"environment_lookup_count", "environment_assign_count",
		"direct_self_scope_mutation_count", "indirect_self_scope_mutation_count",
		"direct_lexical_scope_mutation_count", "indirect_lexical_scope_mutation_count",
		"direct_non_lexical_scope_mutation_count", "indirect_non_lexical_scope_mutation_count",
		"direct_self_scope_observation_count", "indirect_self_scope_observation_count",
		"direct_lexical_scope_observation_count", "indirect_lexical_scope_observation_count",
		"direct_non_lexical_scope_observation_count", "indirect_non_lexical_scope_observation_count",
		"execution_time",
	}
}

// BuildPromiseRow renders one promises row at destroy_thunk time
// (§4.3), using each counter's lifetime total (no before/after split).
func BuildPromiseRow(value *shadow.DenotedValue) []string {
	m, o := value.Mutation, value.Observation
	return []string{
		formatUint(uint64(value.ID)),
		formatBool(value.IsArgument),
		value.ExpressionType,
		value.ValueType,
		formatUint(uint64(value.Scope)),
		formatUint(value.S3DispatchCount),
		formatUint(value.S4DispatchCount),
		formatBool(value.Preforced),
		formatUint(value.ForceCount.Total()),
		formatInt(value.EvalDepth.CallDepth),
		formatInt(value.EvalDepth.PromiseDepth),
		formatInt(value.EvalDepth.NestedPromiseDepth),
		formatUint(value.MetaprogramCount.Total()),
		formatUint(value.ValueLookupCount.Total()),
		formatUint(value.ValueAssignCount.Total()),
		formatUint(value.ExpressionLookupCount.Total()),
		formatUint(value.ExpressionAssignCount.Total()),
		formatUint(value.EnvironmentLookupCount.Total()),
		formatUint(value.EnvironmentAssignCount.Total()),
		formatUint(m.Self.Direct.Total()),
		formatUint(m.Self.Indirect.Total()),
		formatUint(m.Lexical.Direct.Total()),
		formatUint(m.Lexical.Indirect.Total()),
		formatUint(m.NonLexical.Direct.Total()),
		formatUint(m.NonLexical.Indirect.Total()),
		formatUint(o.Self.Direct.Total()),
		formatUint(o.Self.Indirect.Total()),
		formatUint(o.Lexical.Direct.Total()),
		formatUint(o.Lexical.Indirect.Total()),
		formatUint(o.NonLexical.Direct.Total()),
		formatUint(o.NonLexical.Indirect.Total()),
		formatUint(value.ExecutionTime),
	}
}

// EscapedArgumentsHeader is the escaped_arguments table's column list
// (§6), 62 columns: the arguments superset plus a depth snapshot, the
// escape flag, and the full before/after-escape scope-counter matrix.
func EscapedArgumentsHeader() []string {
	return []string{
		"call_id", "function_id", "return_value_type", "formal_parameter_count",
		"formal_parameter_position", "actual_argument_position", "value_id", "class",
		"S3_dispatch", "S4_dispatch", "argument_type", "expression_type", "value_type",
		"default", "non_local_return", "escape", "call_depth", "promise_depth",
		"nested_promise_depth", "forcing_actual_argument_position", "preforce",
		"before_escape_force_count", "before_escape_metaprogram_count",
		"before_escape_value_lookup_count", "before_escape_value_assign_count",
		"before_escape_expression_lookup_count", "before_escape_expression_assign_count",
		"before_escape_environment_lookup_count", "before_escape_environment_assign_count",
		"after_escape_force_count", "after_escape_metaprogram_count",
		"after_escape_value_lookup_count", "after_escape_value_assign_count",
		"after_escape_expression_lookup_count", "after_escape_expression_assign_count",
		"after_escape_environment_lookup_count", "after_escape_environment_assign_count",
		"before_escape_direct_self_scope_mutation_count", "before_escape_indirect_self_scope_mutation_count",
		"before_escape_direct_lexical_scope_mutation_count", "before_escape_indirect_lexical_scope_mutation_count",
		"before_escape_direct_non_lexical_scope_mutation_count", "before_escape_indirect_non_lexical_scope_mutation_count",
		"before_escape_direct_self_scope_observation_count", "before_escape_indirect_self_scope_observation_count",
		"before_escape_direct_lexical_scope_observation_count", "before_escape_indirect_lexical_scope_observation_count",
		"before_escape_direct_non_lexical_scope_observation_count", "before_escape_indirect_non_lexical_scope_observation_count",
		"after_escape_direct_self_scope_mutation_count", "after_escape_indirect_self_scope_mutation_count",
		"after_escape_direct_lexical_scope_mutation_count", "after_escape_indirect_lexical_scope_mutation_count",
		"after_escape_direct_non_lexical_scope_mutation_count", "after_escape_indirect_non_lexical_scope_mutation_count",
		"after_escape_direct_self_scope_observation_count", "after_escape_indirect_self_scope_observation_count",
		"after_escape_direct_lexical_scope_observation_count", "after_escape_indirect_lexical_scope_observation_count",
		"after_escape_direct_non_lexical_scope_observation_count", "after_escape_indirect_non_lexical_scope_observation_count",
		"execution_time",
	}
}

// BuildEscapedArgumentRow renders one escaped_arguments row at
// destroy_thunk time, using the last owning argument's linkage (§3
// "previous_*") since by the time a thunk is both active-cleared and
// escaped it no longer has a live owning argument of its own.
func BuildEscapedArgumentRow(value *shadow.DenotedValue) []string {
	p := value.Previous
	m, o := value.Mutation, value.Observation
	return []string{
		formatUint(uint64(p.CallID)),
		formatUint(uint64(p.FunctionID)),
		p.CallReturnValueType,
		formatInt(p.FormalParameterCount),
		formatInt(p.FormalParameterPosition),
		formatInt(p.ActualArgumentPosition),
		formatUint(uint64(value.ID)),
		value.ClassName,
		formatUint(value.S3DispatchCount),
		formatUint(value.S4DispatchCount),
		value.ArgumentType,
		value.ExpressionType,
		value.ValueType,
		formatBool(p.DefaultArgument),
		formatBool(value.NonLocalReturn),
		formatBool(value.Escaped),
		formatInt(value.EvalDepth.CallDepth),
		formatInt(value.EvalDepth.PromiseDepth),
		formatInt(value.EvalDepth.NestedPromiseDepth),
		formatInt(value.EvalDepth.ForcingActualArgumentPosition),
		formatBool(value.Preforced),
		formatUint(value.ForceCount.BeforeEscape),
		formatUint(value.MetaprogramCount.BeforeEscape),
		formatUint(value.ValueLookupCount.BeforeEscape),
		formatUint(value.ValueAssignCount.BeforeEscape),
		formatUint(value.ExpressionLookupCount.BeforeEscape),
		formatUint(value.ExpressionAssignCount.BeforeEscape),
		formatUint(value.EnvironmentLookupCount.BeforeEscape),
		formatUint(value.EnvironmentAssignCount.BeforeEscape),
		formatUint(value.ForceCount.AfterEscape),
		formatUint(value.MetaprogramCount.AfterEscape),
		formatUint(value.ValueLookupCount.AfterEscape),
		formatUint(value.ValueAssignCount.AfterEscape),
		formatUint(value.ExpressionLookupCount.AfterEscape),
		formatUint(value.ExpressionAssignCount.AfterEscape),
		formatUint(value.EnvironmentLookupCount.AfterEscape),
		formatUint(value.EnvironmentAssignCount.AfterEscape),
		formatUint(m.Self.Direct.BeforeEscape),
		formatUint(m.Self.Indirect.BeforeEscape),
		formatUint(m.Lexical.Direct.BeforeEscape),
		formatUint(m.Lexical.Indirect.BeforeEscape),
		formatUint(m.NonLexical.Direct.BeforeEscape),
		formatUint(m.NonLexical.Indirect.BeforeEscape),
		formatUint(o.Self.Direct.BeforeEscape),
		formatUint(o.Self.Indirect.BeforeEscape),
		formatUint(o.Lexical.Direct.BeforeEscape),
		formatUint(o.Lexical.Indirect.BeforeEscape),
		formatUint(o.NonLexical.Direct.BeforeEscape),
		formatUint(o.NonLexical.Indirect.BeforeEscape),
		formatUint(m.Self.Direct.AfterEscape),
		formatUint(m.Self.Indirect.AfterEscape),
		formatUint(m.Lexical.Direct.AfterEscape),
		formatUint(m.Lexical.Indirect.AfterEscape),
		formatUint(m.NonLexical.Direct.AfterEscape),
		formatUint(m.NonLexical.Indirect.AfterEscape),
		formatUint(o.Self.Direct.AfterEscape),
		formatUint(o.Self.Indirect.AfterEscape),
		formatUint(o.Lexical.Direct.AfterEscape),
		formatUint(o.Lexical.Indirect.AfterEscape),
		formatUint(o.NonLexical.Direct.AfterEscape),
		formatUint(o.NonLexical.Indirect.AfterEscape),
		formatUint(value.ExecutionTime),
	}
}

// CallSummaryHeader is the call_summary table's column list (§6).
func CallSummaryHeader() []string {
	return []string{
		"function_id", "function_type", "formal_parameter_count", "wrapper",
		"function_name", "generic_method", "dispatcher", "force_order",
		"missing_arguments", "return_value_type", "call_count",
	}
}

// BuildCallSummaryRow renders one call_summary row from a
// funcsummary.CallSummaryRow.
func BuildCallSummaryRow(r funcsummary.CallSummaryRow) []string {
	return []string{
		formatUint(uint64(r.FunctionID)),
		r.FunctionType.String(),
		formatInt(r.FormalParameterCount),
		formatBool(r.Wrapper),
		r.FunctionName,
		r.GenericMethod,
		formatBool(r.Dispatcher),
		formatIntList(r.ForceOrder),
		formatIntList(r.MissingArguments),
		r.ReturnValueType,
		formatUint(r.CallCount),
	}
}

// FunctionDefinitionHeader is the function_definition table's column
// list (§6).
func FunctionDefinitionHeader() []string {
	return []string{"function_id", "byte_compiled", "definition"}
}

// BuildFunctionDefinitionRow renders one function_definition row.
func BuildFunctionDefinitionRow(r funcsummary.FunctionDefinitionRow) []string {
	return []string{
		formatUint(uint64(r.FunctionID)),
		formatBool(r.ByteCompiled),
		r.Definition,
	}
}
