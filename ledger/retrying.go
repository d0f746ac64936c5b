package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/swarmnet/arbiter/dispatch"
	"github.com/swarmnet/arbiter/logging"
	"github.com/swarmnet/arbiter/signing"
	"github.com/swarmnet/arbiter/trust"
)

const MaxBackoff = time.Second * 30

// retrying decorates a Client with capped exponential backoff on
// Publish. Permanent rejections are not retried.
type retrying struct {
	backoffBase       time.Duration
	backoffMultiplier float64
	maxRetries        uint
	client            Client
}

func NewRetrying(client Client, maxRetries uint, backoffBase time.Duration, backoffMultiplier float64) Client {
	return &retrying{
		maxRetries:        maxRetries,
		client:            client,
		backoffBase:       backoffBase,
		backoffMultiplier: backoffMultiplier,
	}
}

func (r *retrying) Participants(ctx context.Context) ([]dispatch.Participant, error) {
	return r.client.Participants(ctx)
}

func (r *retrying) Publish(ctx context.Context, snapshot signing.Signed[trust.Snapshot]) error {
	logger := logging.FromContext(ctx)
	timer := time.NewTimer(0)
	<-timer.C
	delay := r.backoffBase

	for retry := uint(0); retry < r.maxRetries; retry++ {
		err := r.client.Publish(ctx, snapshot)
		if err == nil {
			return nil
		} else if errors.Is(err, ErrPublishRejected) {
			return err
		}
		timer.Reset(delay)
		logger.Sugar().Infof("Retrying for %d time, waiting %v", retry+1, delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			logger.Debug("Retry interrupted", zap.Error(ctx.Err()))
			return fmt.Errorf("%w: %v", ErrPublishFailed, ctx.Err())
		}
		delay = time.Duration(float64(delay) * r.backoffMultiplier)
		if delay > MaxBackoff {
			delay = MaxBackoff
		}
	}
	return ErrPublishFailed
}
