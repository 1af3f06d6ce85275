// Package consumer is the Consumer Runtime: binds to one
// durable queue, receives deliveries one at a time (prefetch=1, set by
// internal/queue), dispatches each to a Handler, and translates the
// Handler's result into an AMQP disposition — ack, reject-no-requeue, or
// nack-requeue.
package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eluceo/jacobine/internal/logger"
	"github.com/eluceo/jacobine/internal/metrics"
	"github.com/eluceo/jacobine/internal/pipelineerr"
	"github.com/eluceo/jacobine/internal/queue"
)

// Handler processes one message body. It is responsible for the full
// load-check-work-update-publish sequence for its stage, publishing any
// follow-on message itself before returning — the runtime only acks
// after Handle returns nil, so a crash between Handle's publish and the
// runtime's ack simply results in redelivery of an already-idempotent
// message, since every handler in this repository is idempotent.
type Handler interface {
	Handle(ctx context.Context, body []byte) error
}

// Runtime binds one Handler to one queue.
type Runtime struct {
	client     *queue.Client
	queueName  string
	consumerID string
	handler    Handler
	log        logger.Logger
}

// New builds a Runtime with a consumer id generated from queueName.
func New(client *queue.Client, queueName string, handler Handler, log logger.Logger) *Runtime {
	return &Runtime{
		client:     client,
		queueName:  queueName,
		consumerID: generateConsumerID(queueName),
		handler:    handler,
		log:        log,
	}
}

func generateConsumerID(queueName string) string {
	const shortLen = 8
	return fmt.Sprintf("%s-%s", queueName, uuid.New().String()[:shortLen])
}

// Run consumes from the bound queue until ctx is cancelled or a
// TransportError surfaces from a Handler — at which point Run returns
// the error so the caller can exit the process and let an external
// supervisor restart it.
func (r *Runtime) Run(ctx context.Context) error {
	deliveries, err := r.client.Consume(ctx, r.queueName, r.consumerID)
	if err != nil {
		return err
	}

	r.log.Info("consumer started", logger.String("queue", r.queueName), logger.String("consumer_id", r.consumerID))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := r.process(ctx, d); err != nil {
				return err
			}
		}
	}
}

func (r *Runtime) process(ctx context.Context, d queue.Delivery) error {
	timer := prometheus.NewTimer(metrics.StageDuration.WithLabelValues(r.queueName))
	err := r.handler.Handle(ctx, d.Body)
	timer.ObserveDuration()

	switch disposition(err) {
	case dispositionAck:
		metrics.MessagesProcessed.WithLabelValues(r.queueName, metrics.OutcomeAck).Inc()
		if ackErr := d.Ack(); ackErr != nil {
			r.log.Error("ack failed", logger.Error(ackErr))
		}
		return nil

	case dispositionRejectNoRequeue:
		metrics.MessagesProcessed.WithLabelValues(r.queueName, metrics.OutcomeReject).Inc()
		metrics.DeadLettered.WithLabelValues(r.queueName).Inc()
		r.log.Critical("rejecting poison message without requeue", logger.Error(err), logger.String("queue", r.queueName))
		if rejectErr := d.RejectNoRequeue(); rejectErr != nil {
			r.log.Error("reject failed", logger.Error(rejectErr))
		}
		return nil

	case dispositionNackRequeue:
		metrics.MessagesProcessed.WithLabelValues(r.queueName, metrics.OutcomeNack).Inc()
		r.log.Warn("requeueing message after transient failure", logger.Error(err), logger.String("queue", r.queueName))
		if nackErr := d.NackRequeue(); nackErr != nil {
			r.log.Error("nack failed", logger.Error(nackErr))
		}
		return nil

	default: // dispositionTransportFailure
		r.log.Error("transport failure, requeueing and exiting", logger.Error(err))
		_ = d.NackRequeue()
		return err
	}
}

type dispositionKind int

const (
	dispositionAck dispositionKind = iota
	dispositionRejectNoRequeue
	dispositionNackRequeue
	dispositionTransportFailure
)

// disposition classifies a Handler error into the AMQP action its type
// calls for: UsageError/DatabaseError/NotFoundError/ProcessError/
// FetchError are all poison (reject-no-requeue, routed to the
// dead-letter queue if bound) — none of them succeed on a bare retry, so
// redelivering only loops forever; TransportError means the broker
// connection itself is gone, so processing stops. Anything outside the
// taxonomy falls back to nack-requeue, since an unrecognized error is
// assumed transient rather than risking a silent drop.
func disposition(err error) dispositionKind {
	if err == nil {
		return dispositionAck
	}

	var usageErr *pipelineerr.UsageError
	var dbErr *pipelineerr.DatabaseError
	var notFoundErr *pipelineerr.NotFoundError
	var processErr *pipelineerr.ProcessError
	var fetchErr *pipelineerr.FetchError
	var transportErr *pipelineerr.TransportError

	switch {
	case errors.As(err, &usageErr), errors.As(err, &dbErr), errors.As(err, &notFoundErr),
		errors.As(err, &processErr), errors.As(err, &fetchErr):
		return dispositionRejectNoRequeue
	case errors.As(err, &transportErr):
		return dispositionTransportFailure
	default:
		return dispositionNackRequeue
	}
}
