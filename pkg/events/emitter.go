// Package events emits lead lifecycle events
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/codeGROOVE-dev/retry"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Publisher writes serialized events to the broker
type Publisher interface {
	Publish(ctx context.Context, env *kafka.Envelope) error
}

// EmitterConfig controls publish retries
type EmitterConfig struct {
	Attempts  uint
	Delay     time.Duration
	MaxJitter time.Duration
}

// DefaultEmitterConfig returns default retry settings
func DefaultEmitterConfig() EmitterConfig {
	return EmitterConfig{
		Attempts:  3,
		Delay:     200 * time.Millisecond,
		MaxJitter: 100 * time.Millisecond,
	}
}

// Emitter handles event emission for clover
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
	config    EmitterConfig
	now       func() time.Time
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger, config EmitterConfig) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// EmitLeadsMerged publishes lead.merged for a committed merge, retrying transient failures
func (e *Emitter) EmitLeadsMerged(ctx context.Context, tenantID string, result *models.MergeResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitLeadsMerged")
	defer span.End()

	event := NewLeadMergedEvent(tenantID, result, e.now())
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	env := &kafka.Envelope{
		Key:           event.PrimaryLeadID,
		EventType:     string(event.EventType),
		TenantID:      tenantID,
		SchemaVersion: SchemaVersion,
		Payload:       payload,
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"event_id":        event.EventID,
		"primary_lead_id": event.PrimaryLeadID,
	})

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(max(1, e.config.Attempts)),
		retry.Delay(e.config.Delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).WithField("attempt", n+1).Debug("Retrying lead.merged publish")
		}),
	}
	// random jitter of zero is rejected by the backoff
	if e.config.MaxJitter > 0 {
		opts = append(opts, retry.MaxJitter(e.config.MaxJitter))
	}

	err = retry.Do(func() error {
		return e.publisher.Publish(ctx, env)
	}, opts...)
	if err != nil {
		log.WithError(err).Error("Failed to emit lead.merged event")
		return err
	}
	return nil
}

func isRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
