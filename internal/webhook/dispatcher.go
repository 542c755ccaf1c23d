package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	queueSize = 1000

	// maxResponseBodySize limits how much of a failing response we log (1KB)
	maxResponseBodySize = 1024

	defaultTimeout       = 10 * time.Second
	defaultMaxRetries    = 3
	defaultRetryInterval = 500 * time.Millisecond
)

// Endpoint is one subscriber to rule change events.
type Endpoint struct {
	URL        string
	Secret     string
	MaxRetries int
	Timeout    time.Duration
}

// Dispatcher queues rule change events and delivers them to every configured
// endpoint with retries. Delivery is best effort: a dead subscriber never
// blocks or fails the rule write that triggered the event.
type Dispatcher struct {
	endpoints     []Endpoint
	client        *http.Client
	queue         chan Event
	done          chan struct{}
	closed        int32
	retryInterval time.Duration
	logger        zerolog.Logger
}

// NewDispatcher creates a dispatcher for the given endpoints.
func NewDispatcher(endpoints []Endpoint) *Dispatcher {
	return &Dispatcher{
		endpoints: endpoints,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		queue:         make(chan Event, queueSize),
		done:          make(chan struct{}),
		retryInterval: defaultRetryInterval,
		logger:        log.With().Str("component", "webhook").Logger(),
	}
}

// Start begins processing events from the queue
func (d *Dispatcher) Start() {
	go d.worker()
}

// Close shuts down the dispatcher after delivering queued events. Safe to
// call more than once.
func (d *Dispatcher) Close() error {
	if !atomic.CompareAndSwapInt32(&d.closed, 0, 1) {
		return nil
	}
	close(d.queue)
	<-d.done
	return nil
}

// Dispatch queues an event for delivery. Non-blocking; when the queue is
// full the event is dropped with a warning.
func (d *Dispatcher) Dispatch(event Event) {
	select {
	case d.queue <- event:
	default:
		d.logger.Warn().
			Str("event", event.Type).
			Str("rule_id", event.Resource.ID).
			Msg("queue full, dropping event")
	}
}

func (d *Dispatcher) worker() {
	defer close(d.done)

	for event := range d.queue {
		for _, ep := range d.endpoints {
			d.deliver(context.Background(), ep, event)
		}
	}
}

// deliver posts one event to one endpoint, retrying transient failures with
// exponential backoff. Every delivery carries an HMAC signature of the exact
// payload bytes so subscribers can authenticate the sender.
func (d *Dispatcher) deliver(ctx context.Context, ep Endpoint, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error().Str("event", event.Type).Err(err).Msg("failed to marshal payload")
		return
	}

	signature := ComputeHMAC(payload, ep.Secret)
	deliveryID := uuid.NewString()

	timeout := ep.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	maxRetries := ep.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	attempt := 0
	operation := func() error {
		attempt++

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, ep.URL, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Decisions-Signature", signature)
		req.Header.Set("X-Decisions-Event", event.Type)
		req.Header.Set("X-Decisions-Delivery", deliveryID)

		resp, err := d.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
			return fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.retryInterval
	policy := backoff.WithMaxRetries(bo, uint64(maxRetries))

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		d.logger.Error().
			Str("url", ep.URL).
			Str("event", event.Type).
			Str("delivery_id", deliveryID).
			Int("attempts", attempt).
			Err(err).
			Msg("delivery failed permanently")
		return
	}

	d.logger.Debug().
		Str("url", ep.URL).
		Str("event", event.Type).
		Str("delivery_id", deliveryID).
		Int("attempts", attempt).
		Msg("delivered")
}
