package host

import (
	"context"

	"go.uber.org/zap"

	"github.com/leegramling/modhost/engine"
	"github.com/leegramling/modhost/loader"
)

// Demonstration parameters, matching the classic exercise.
const (
	demoInput         = "Hello Dynamic Library"
	demoCapacity      = 256
	demoCallbackValue = 7
)

// Doubling is the host-defined callback handed to the module: it doubles
// its argument.
func Doubling(v int32) int32 { return v * 2 }

// StepError records a non-fatal failure of one step of the sequence.
type StepError struct {
	Step string
	Err  error
}

// Report is the outcome of one full drive of a module.
type Report struct {
	ModuleID       string
	Version        string
	InitStatus     int32
	Processed      string
	ProcessedCount int32
	CallbackResult int32
	CounterBefore  int32
	CounterAfter   int32
	Failures       []StepError
}

// OK reports whether every step of the sequence succeeded.
func (r *Report) OK() bool { return len(r.Failures) == 0 }

func (r *Report) fail(logger *zap.Logger, step string, err error) {
	logger.Warn("step failed", zap.String("step", step), zap.Error(err))
	r.Failures = append(r.Failures, StepError{Step: step, Err: err})
}

// Run resolves the module at path, binds its full export surface, and
// drives every operation once: initialize, process, callback, counter.
//
// Resolution and binding failures are fatal and return an error; the loader
// has already released the module in that case. Failures of individual
// operations are recorded in the Report and do not stop later independent
// steps. Release is unconditional and happens before Run returns.
func Run(ctx context.Context, eng *engine.Engine, path string, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	b, err := loader.Bind(ctx, eng, path, loader.DefaultSurface(), logger)
	if err != nil {
		return nil, err
	}
	r := &Report{ModuleID: b.Module().ID()}
	defer func() {
		if err := b.Release(ctx); err != nil {
			logger.Warn("release failed", zap.Error(err))
		}
	}()

	if v, err := b.Version(ctx); err != nil {
		r.fail(logger, "version", err)
	} else {
		r.Version = v
		logger.Info("module version", zap.String("version", v))
	}

	if status, err := b.Initialize(ctx); err != nil {
		r.fail(logger, "initialize", err)
	} else {
		r.InitStatus = status
		logger.Info("initialized", zap.Int32("status", status))
	}

	if out, n, err := b.ProcessData(ctx, demoInput, demoCapacity); err != nil {
		r.fail(logger, "process", err)
	} else {
		r.Processed = out
		r.ProcessedCount = n
		logger.Info("processed", zap.String("output", out), zap.Int32("count", n))
	}

	if result, err := b.ExecuteCallback(ctx, Doubling, demoCallbackValue); err != nil {
		r.fail(logger, "callback", err)
	} else {
		r.CallbackResult = result
		logger.Info("callback executed", zap.Int32("result", result))
	}

	if err := driveCounter(ctx, b, r, logger); err != nil {
		r.fail(logger, "counter", err)
	}

	return r, nil
}

// driveCounter demonstrates the shared-state contract: read, increment
// through the module, read again through the same resolved handle.
func driveCounter(ctx context.Context, b *loader.Bindings, r *Report, logger *zap.Logger) error {
	before, err := b.Counter.Get()
	if err != nil {
		return err
	}
	if err := b.IncrementCounter(ctx); err != nil {
		return err
	}
	after, err := b.Counter.Get()
	if err != nil {
		return err
	}

	r.CounterBefore = before
	r.CounterAfter = after
	logger.Info("counter", zap.Int32("before", before), zap.Int32("after", after))
	return nil
}
