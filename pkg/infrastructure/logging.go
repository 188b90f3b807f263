// Package infrastructure provides reusable infrastructure components for Go applications.
package infrastructure

import (
	"fmt"

	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// FxLoggerAdapter routes Fx's own event log into zap with structured fields.
type FxLoggerAdapter struct {
	logger *zap.Logger
}

// NewFxLoggerAdapter creates an fxevent.Logger backed by logger.
func NewFxLoggerAdapter(logger *zap.Logger) fxevent.Logger {
	return &FxLoggerAdapter{logger: logger.Named("fx")}
}

// LogEvent implements fxevent.Logger.
func (p *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		p.logger.Debug("hook starting", zap.String("caller", e.CallerName), zap.String("callee", e.FunctionName))
	case *fxevent.OnStartExecuted:
		p.hook("start", e.CallerName, e.FunctionName, e.Runtime.String(), e.Err)
	case *fxevent.OnStopExecuting:
		p.logger.Debug("hook stopping", zap.String("caller", e.CallerName), zap.String("callee", e.FunctionName))
	case *fxevent.OnStopExecuted:
		p.hook("stop", e.CallerName, e.FunctionName, e.Runtime.String(), e.Err)
	case *fxevent.Supplied:
		p.withError(e.Err, "supplied", zap.String("type", e.TypeName), zap.String("module", e.ModuleName))
	case *fxevent.Provided:
		p.withError(e.Err, "provided",
			zap.Strings("types", e.OutputTypeNames),
			zap.String("constructor", e.ConstructorName),
			zap.String("module", e.ModuleName))
	case *fxevent.Decorated:
		p.withError(e.Err, "decorated",
			zap.Strings("types", e.OutputTypeNames),
			zap.String("decorator", e.DecoratorName))
	case *fxevent.Invoking:
		p.logger.Debug("invoking", zap.String("function", e.FunctionName), zap.String("module", e.ModuleName))
	case *fxevent.Invoked:
		p.withError(e.Err, "invoked", zap.String("function", e.FunctionName), zap.String("module", e.ModuleName))
	case *fxevent.Stopping:
		p.logger.Info("received signal", zap.String("signal", e.Signal.String()))
	case *fxevent.Stopped:
		p.lifecycle("stopped", e.Err)
	case *fxevent.RollingBack:
		p.logger.Error("start failed, rolling back", zap.Error(e.StartErr))
	case *fxevent.RolledBack:
		p.lifecycle("rolled back", e.Err)
	case *fxevent.Started:
		p.lifecycle("started", e.Err)
	case *fxevent.LoggerInitialized:
		p.withError(e.Err, "custom logger initialized", zap.String("constructor", e.ConstructorName))
	default:
		p.logger.Debug("unhandled fx event", zap.String("type", fmt.Sprintf("%T", event)))
	}
}

func (p *FxLoggerAdapter) hook(phase, caller, callee, runtime string, err error) {
	fields := []zap.Field{
		zap.String("phase", phase),
		zap.String("caller", caller),
		zap.String("callee", callee),
	}
	if err != nil {
		p.logger.Error("hook failed", append(fields, zap.Error(err))...)
		return
	}
	p.logger.Debug("hook executed", append(fields, zap.String("runtime", runtime))...)
}

// withError logs msg at debug, or at error with the error attached.
func (p *FxLoggerAdapter) withError(err error, msg string, fields ...zap.Field) {
	if err != nil {
		p.logger.Error(msg+" failed", append(fields, zap.Error(err))...)
		return
	}
	p.logger.Debug(msg, fields...)
}

func (p *FxLoggerAdapter) lifecycle(msg string, err error) {
	if err != nil {
		p.logger.Error(msg+" with error", zap.Error(err))
		return
	}
	p.logger.Info(msg)
}
