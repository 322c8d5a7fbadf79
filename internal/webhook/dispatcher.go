package webhook

import (
	"context"

	"go.uber.org/zap"
)

// Dispatcher routes verified webhook envelopes to the reconciler.
type Dispatcher struct {
	reconciler *Reconciler
	logger     *zap.Logger
}

// NewDispatcher returns a Dispatcher over the given reconciler.
func NewDispatcher(reconciler *Reconciler, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		reconciler: reconciler,
		logger:     logger,
	}
}

// Dispatch maps the event name to a handler. Unknown events are not errors.
func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope) error {
	switch env.Event {
	case EventChargeSuccess:
		return d.reconciler.HandleSuccess(ctx, env.Data)
	case EventChargeFailed:
		return d.reconciler.HandleFailure(ctx, env.Data)
	default:
		d.logger.Info("ignoring unhandled webhook event", zap.String("event", env.Event))
		return nil
	}
}
