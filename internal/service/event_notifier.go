package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"stream-ledger/internal/core/domain"
	"stream-ledger/internal/core/ports"
	"stream-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

// SignatureHeader carries the HMAC of the request body.
const SignatureHeader = "X-Stream-Signature"

// WebhookPayload is the JSON body posted for each event.
type WebhookPayload struct {
	EventType domain.EventType `json:"event_type"`
	Data      domain.Event     `json:"data"`
	SentAt    int64            `json:"sent_at"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookOptions configures delivery.
type WebhookOptions struct {
	URL         string
	Secret      string
	MaxAttempts int
	RetryBase   time.Duration // doubled after each failed attempt
	QueueSize   int           // pending batches; Notify drops when full
}

// WebhookNotifier implements ports.EventNotifier by posting signed events
// to a single endpoint. Delivery is asynchronous and best effort. One worker
// posts batches in the order Notify received them, so observers see every
// stream's events in order.
type WebhookNotifier struct {
	opts       WebhookOptions
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	log        zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan []domain.Event

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebhookNotifier creates a WebhookNotifier and starts its delivery worker
// when a URL is configured. Call Close to stop it.
func NewWebhookNotifier(opts WebhookOptions, sigSvc ports.SignatureService, httpClient HTTPClient, log zerolog.Logger) *WebhookNotifier {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 15 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &WebhookNotifier{
		opts:       opts,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		log:        log,
		queue:      make(chan []domain.Event, opts.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	if opts.URL == "" {
		close(n.done)
		return n
	}
	go n.run()
	return n
}

// Notify queues events for delivery and returns immediately.
func (n *WebhookNotifier) Notify(_ context.Context, events []domain.Event) {
	if n.opts.URL == "" || len(events) == 0 {
		return
	}
	batch := append([]domain.Event(nil), events...)

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.log.Warn().Int("events", len(batch)).Msg("webhook: notifier closed, dropping events")
		return
	}
	select {
	case n.queue <- batch:
	default:
		n.log.Error().
			Int("events", len(batch)).
			Uint64("stream_id", uint64(batch[0].StreamID)).
			Msg("webhook: queue full, dropping events")
	}
}

// Close stops accepting events and waits for the worker to drain the queue.
// If ctx ends first, pending retries and requests are abandoned.
func (n *WebhookNotifier) Close(ctx context.Context) error {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.queue)
		n.mu.Unlock()
	})

	select {
	case <-n.done:
		n.cancel()
		return nil
	case <-ctx.Done():
		n.cancel()
		<-n.done
		return ctx.Err()
	}
}

func (n *WebhookNotifier) run() {
	defer close(n.done)
	for batch := range n.queue {
		for _, e := range batch {
			n.deliver(e)
		}
	}
}

// deliver posts one event, retrying with exponential backoff until the
// attempts run out or the notifier is shut down.
func (n *WebhookNotifier) deliver(e domain.Event) {
	if n.ctx.Err() != nil {
		return
	}
	body, err := json.Marshal(WebhookPayload{EventType: e.Type, Data: e, SentAt: time.Now().Unix()})
	if err != nil {
		n.log.Error().Err(err).Str("event_id", e.ID.String()).Msg("webhook: failed to marshal payload")
		return
	}
	signature := n.sigSvc.Sign(n.opts.Secret, string(body))

	log := logger.ForStream(n.log, uint64(e.StreamID)).With().
		Str("event_id", e.ID.String()).
		Str("event_type", string(e.Type)).
		Logger()

	backoff := n.opts.RetryBase
	for attempt := 1; attempt <= n.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(backoff)
			select {
			case <-n.ctx.Done():
				timer.Stop()
				log.Warn().Int("attempt", attempt).Msg("webhook: shutting down, delivery abandoned")
				return
			case <-timer.C:
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(n.ctx, http.MethodPost, n.opts.URL, bytes.NewReader(body))
		if err != nil {
			log.Error().Err(err).Msg("webhook: failed to create request")
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(SignatureHeader, signature)

		resp, err := n.httpClient.Do(req)
		if err != nil {
			if n.ctx.Err() != nil {
				log.Warn().Int("attempt", attempt).Msg("webhook: shutting down, delivery abandoned")
				return
			}
			log.Warn().Err(err).Int("attempt", attempt).Msg("webhook: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			log.Debug().Int("attempt", attempt).Int("status", resp.StatusCode).Msg("webhook: delivered")
			return
		}
		log.Warn().Int("attempt", attempt).Int("status", resp.StatusCode).Msg("webhook: non-2xx response")
	}

	log.Error().Int("attempts", n.opts.MaxAttempts).Msg("webhook: all delivery attempts exhausted")
}
