// Package tracerstate is the orchestrator: it wires every shadow
// registry, the execution-context stack, the execution timer, the
// attribution engine and the output sinks behind the set of probe
// entry points a host evaluator actually calls (§4, "Global mutable
// tracer state becomes an explicit TracerState value threaded through
// every probe callback").
package tracerstate

import (
	"rtrace/internal/ctxstack"
	"rtrace/internal/diagx"
	"rtrace/internal/exectimer"
	"rtrace/internal/funcsummary"
	"rtrace/internal/hostapi"
	"rtrace/internal/ids"
	"rtrace/internal/rtconfig"
	"rtrace/internal/shadow"
	"rtrace/internal/sink"
	"rtrace/internal/teardown"
)

// TracerState bundles every component behind the probe surface. One
// value is constructed per trace and threaded through every probe
// call for its lifetime.
type TracerState struct {
	clock *ids.Clock

	envs   *shadow.EnvRegistry
	thunks *shadow.ThunkRegistry
	calls  *shadow.CallRegistry
	funcs  *funcsummary.Registry

	stack *ctxstack.Stack
	timer *exectimer.Timer

	objects   *teardown.ObjectCounter
	lifecycle *teardown.LifecycleSummary
	sinks     *sink.Set
	diag      *diagx.Bag

	host hostapi.HostQueries
	cfg  rtconfig.Config
}

var headerByTable = map[string]func() []string{
	"object_count":        teardown.Header,
	"call_summary":        teardown.CallSummaryHeader,
	"function_definition": teardown.FunctionDefinitionHeader,
	"arguments":           teardown.ArgumentsHeader,
	"escaped_arguments":   teardown.EscapedArgumentsHeader,
	"promises":            teardown.PromisesHeader,
	"promise_lifecycle":   teardown.LifecycleHeader,
}

// New opens the output sinks under cfg.OutputDirpath, writes every
// table's header row, and returns a TracerState ready to receive probe
// calls against host.
func New(host hostapi.HostQueries, cfg rtconfig.Config) (*TracerState, error) {
	sinks, err := sink.OpenSet(cfg.OutputDirpath, sink.Config{
		Truncate:         cfg.Truncate,
		Binary:           cfg.Binary,
		CompressionLevel: cfg.CompressionLevel,
	})
	if err != nil {
		return nil, err
	}
	for name, header := range headerByTable {
		s := sinks.Table(name)
		if s == nil {
			continue
		}
		if err := s.WriteHeader(header()); err != nil {
			return nil, err
		}
	}

	clock := ids.NewClock()
	thunks := shadow.NewThunkRegistry(clock)
	return &TracerState{
		clock:     clock,
		envs:      shadow.NewEnvRegistry(clock),
		thunks:    thunks,
		calls:     shadow.NewCallRegistry(clock, thunks),
		funcs:     funcsummary.NewRegistry(clock),
		stack:     ctxstack.New(),
		timer:     exectimer.New(hostapi.RealClock{}),
		objects:   teardown.NewObjectCounter(),
		lifecycle: teardown.NewLifecycleSummary(),
		sinks:     sinks,
		diag:      diagx.NewBag(),
		host:      host,
		cfg:       cfg,
	}, nil
}

// Diagnostics exposes the accumulated diagnostic bag, e.g. for a CLI
// subcommand to dump after the run completes.
func (ts *TracerState) Diagnostics() *diagx.Bag { return ts.diag }

// probe brackets body with pause/resume exactly as §4.6 requires:
// pause first, optionally tick the logical clock, run body, then
// resume last. tick is true for enter_probe-shaped events and false
// for exit_probe-shaped ones.
func (ts *TracerState) probe(tick bool, body func()) {
	ts.timer.Pause(ts.stack)
	if tick {
		ts.clock.Tick()
	}
	body()
	ts.timer.Resume()
}

func (ts *TracerState) assignScope(v *shadow.DenotedValue) {
	ctxstack.AssignScope(ts.stack, v)
}

func (ts *TracerState) promiseEnvOf(h hostapi.ThunkHandle) hostapi.EnvHandle {
	env, _ := ts.host.PromiseEnv(h)
	return env
}

// ensureEnvCounted observes env's host SEXP type in the object_count
// table the first time handle is referenced, mirroring the host's own
// lazy environment allocation: the shadow registry only materializes
// an Environment on first touch, so that touch is the only place this
// tracer ever observes the environment's creation.
func (ts *TracerState) ensureEnvCounted(env hostapi.EnvHandle) {
	if _, existed := ts.envs.Peek(env); !existed {
		ts.objects.Observe(ts.host.TypeOf(env).ExpressionType)
	}
}

// flushDestroyedThunk writes the promises/escaped_arguments rows and
// records the lifecycle summary for a thunk torn down outside of
// final Cleanup (mid-run destruction or garbage collection).
func (ts *TracerState) flushDestroyedThunk(destroyed shadow.DestroyedThunk) {
	teardown.EmitDestroyedThunk(ts.sinks, ts.lifecycle, destroyed)
}

// flushDestroyedCall writes the arguments row for each argument
// detached from call and folds the call into its function's
// call_summary signature.
func (ts *TracerState) flushDestroyedCall(call *shadow.Call) {
	destroyedArgs := ts.calls.DestroyCall(call)
	if s := ts.sinks.Table("arguments"); s != nil {
		for _, da := range destroyedArgs {
			s.WriteRow(teardown.BuildArgumentRow(call, da.Argument, da.Value))
		}
	}
	if fn, ok := call.Function.(*funcsummary.Function); ok {
		fn.AddSummary(call)
	}
}

// Cleanup delegates to teardown.Cleanup with every component this
// state owns. It does not block later probe calls; the sinks are
// closed once it returns.
func (ts *TracerState) Cleanup() error {
	return teardown.Cleanup(ts.stack, ts.thunks, ts.funcs, ts.objects, ts.lifecycle, ts.sinks, ts.diag, ts.cfg, ts.cfg.OutputDirpath)
}
