// Package push fans reminder notifications out to every registered browser
// subscription and prunes subscriptions the push services report as gone.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pathakanu/waterit/internal/model"
	"go.uber.org/zap"
)

// ErrNotConfigured is reported when no delivery capability (VAPID keys) is set up.
var ErrNotConfigured = errors.New("push delivery not configured: VAPID keys not set")

// Outcome classifies a single delivery attempt.
type Outcome int

const (
	// Delivered means the push service accepted the message.
	Delivered Outcome = iota
	// Gone means the subscription no longer exists on the receiving end.
	Gone
	// Failed covers timeouts, network errors and unexpected responses.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Gone:
		return "gone"
	default:
		return "failed"
	}
}

// Sender delivers an encrypted payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub model.PushSubscription, payload []byte) (Outcome, error)
}

// Registry is the subscription store the dispatcher reads and prunes.
type Registry interface {
	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Message is the JSON payload the service worker renders.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Result summarises one DeliverToAll call. Err is set when nothing could be
// attempted at all (not configured, registry unreadable).
type Result struct {
	Attempted int   `json:"attempted"`
	Delivered int   `json:"sent"`
	Pruned    int   `json:"pruned"`
	Failed    int   `json:"failed"`
	Err       error `json:"-"`
}

// OK reports whether delivery was attempted.
func (r Result) OK() bool { return r.Err == nil }

// Dispatcher sends a message to every subscription in the registry.
type Dispatcher struct {
	registry Registry
	sender   Sender
	timeout  time.Duration
	log      *zap.Logger
}

// NewDispatcher returns a Dispatcher. A nil sender leaves the dispatcher
// unconfigured: every call reports ErrNotConfigured without side effects.
func NewDispatcher(registry Registry, sender Sender, timeout time.Duration, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		sender:   sender,
		timeout:  timeout,
		log:      log.Named("push"),
	}
}

// Configured reports whether a delivery capability is present.
func (d *Dispatcher) Configured() bool {
	return d.sender != nil
}

// DeliverToAll sends msg to every subscription. A broken subscriber never
// fails the batch: gone subscriptions are deleted one by one, other failures
// are skipped.
func (d *Dispatcher) DeliverToAll(ctx context.Context, msg Message) Result {
	if d.sender == nil {
		return Result{Err: ErrNotConfigured}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return Result{Err: fmt.Errorf("encode payload: %w", err)}
	}

	subs, err := d.registry.ListSubscriptions(ctx)
	if err != nil {
		return Result{Err: fmt.Errorf("list subscriptions: %w", err)}
	}

	var res Result
	for _, sub := range subs {
		res.Attempted++
		switch outcome, err := d.send(ctx, sub, payload); outcome {
		case Delivered:
			res.Delivered++
		case Gone:
			if err := d.registry.DeleteSubscription(ctx, sub.Endpoint); err != nil {
				d.log.Warn("prune subscription failed", zap.String("endpoint", shortEndpoint(sub.Endpoint)), zap.Error(err))
				continue
			}
			res.Pruned++
			d.log.Info("pruned expired subscription", zap.String("endpoint", shortEndpoint(sub.Endpoint)))
		default:
			res.Failed++
			d.log.Warn("push delivery failed", zap.String("endpoint", shortEndpoint(sub.Endpoint)), zap.Error(err))
		}
	}
	return res
}

func (d *Dispatcher) send(ctx context.Context, sub model.PushSubscription, payload []byte) (Outcome, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	outcome, err := d.sender.Send(ctx, sub, payload)
	if outcome == Delivered && err != nil {
		outcome = Failed
	}
	return outcome, err
}

func shortEndpoint(endpoint string) string {
	if len(endpoint) > 50 {
		return endpoint[:50]
	}
	return endpoint
}
