package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
	"github.com/dondada876/ASEAGI-sub001/internal/infrastructure/resilience"
)

func classifyNATSError(err error) resilience.Outcome {
	switch {
	case err == nil:
		return resilience.Discard
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Discard
	case resilience.IsCircuitOpen(err):
		return resilience.Retry
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected):
		return resilience.Retry
	default:
		return resilience.Fail
	}
}

func wrapTemporaryIfNeeded(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err) == resilience.Retry {
		return domain.WrapError(domain.ErrTemporary, "nats publish", err)
	}
	return err
}
