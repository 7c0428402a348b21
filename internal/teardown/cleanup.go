// Package teardown implements C9: draining whatever state is still
// live when the host signals shutdown, flushing the batch tables
// (object_count, call_summary, function_definition, promise_lifecycle),
// closing every sink, and writing the CONFIGURATION/ERROR/NOERROR side
// files (§4.15, grounded on original_source/TracerState.h's cleanup()).
package teardown

import (
	"rtrace/internal/ctxstack"
	"rtrace/internal/diagx"
	"rtrace/internal/funcsummary"
	"rtrace/internal/rtconfig"
	"rtrace/internal/shadow"
	"rtrace/internal/sink"
)

// Cleanup mirrors the original tracer's cleanup(error) in order: every
// still-registered thunk is destroyed (flushing its promises/
// escaped_arguments row), every interned function's call_summary and
// function_definition rows are drained, the object_count and
// promise_lifecycle batch tables are written, the stack is checked for
// emptiness (a violation is logged, not fatal), every sink is closed,
// and finally CONFIGURATION plus the terminal ERROR/NOERROR marker are
// written.
func Cleanup(
	stack *ctxstack.Stack,
	thunks *shadow.ThunkRegistry,
	funcs *funcsummary.Registry,
	objects *ObjectCounter,
	lifecycle *LifecycleSummary,
	sinks *sink.Set,
	bag *diagx.Bag,
	cfg rtconfig.Config,
	outputDir string,
) error {
	for _, destroyed := range thunks.DestroyAll() {
		EmitDestroyedThunk(sinks, lifecycle, destroyed)
	}

	if s := sinks.Table("call_summary"); s != nil {
		for _, row := range funcs.DrainCallSummaries() {
			if err := s.WriteRow(BuildCallSummaryRow(row)); err != nil {
				bag.Report(diagx.SevError, "table-write", err.Error())
			}
		}
	}
	if s := sinks.Table("function_definition"); s != nil {
		for _, row := range funcs.DrainDefinitions() {
			if err := s.WriteRow(BuildFunctionDefinitionRow(row)); err != nil {
				bag.Report(diagx.SevError, "table-write", err.Error())
			}
		}
	}

	if s := sinks.Table("object_count"); s != nil {
		for _, row := range objects.Rows() {
			if err := s.WriteRow(row); err != nil {
				bag.Report(diagx.SevError, "table-write", err.Error())
			}
		}
	}
	if s := sinks.Table("promise_lifecycle"); s != nil {
		for _, row := range lifecycle.Rows() {
			if err := s.WriteRow(row); err != nil {
				bag.Report(diagx.SevError, "table-write", err.Error())
			}
		}
	}

	if !stack.IsEmpty() {
		bag.Report(diagx.SevError, "stack-not-empty", "stack not empty on tracer exit:\n"+stack.DumpText())
	}

	if err := sinks.Close(); err != nil {
		bag.Report(diagx.SevError, "sink-close", err.Error())
	}

	if err := WriteConfiguration(outputDir, cfg); err != nil {
		return err
	}
	return WriteSentinel(outputDir, bag.HasErrors())
}

// EmitDestroyedThunk flushes the rows and lifecycle counters associated
// with a thunk that has just been destroyed, whether that happened
// during final cleanup or mid-run garbage collection.
func EmitDestroyedThunk(sinks *sink.Set, lifecycle *LifecycleSummary, destroyed shadow.DestroyedThunk) {
	lifecycle.Record(destroyed.Value.Lifecycle)
	if destroyed.EmitPromise {
		if s := sinks.Table("promises"); s != nil {
			s.WriteRow(BuildPromiseRow(destroyed.Value))
		}
	}
	if destroyed.EmitEscaped {
		if s := sinks.Table("escaped_arguments"); s != nil {
			s.WriteRow(BuildEscapedArgumentRow(destroyed.Value))
		}
	}
}
