package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rental-push-go/internal/metrics"
	"rental-push-go/internal/models"
	"rental-push-go/internal/vapid"
)

// ErrMissingFields is returned when a notification lacks user_id, titre or message.
var ErrMissingFields = errors.New("missing required fields")

// SubscriptionStore is the part of the subscription store the dispatcher uses.
type SubscriptionStore interface {
	GetPushSubscriptionsByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	DeletePushSubscriptions(ctx context.Context, endpoints []string) error
}

// Result is the aggregate returned to the caller.
type Result struct {
	Sent    int `json:"sent"`
	Expired int `json:"expired"`
}

// Outcome is the result of one delivery attempt.
type Outcome struct {
	Endpoint string
	Status   int
	Err      error
}

// Classify maps an outcome to sent, expired or dropped.
func (o Outcome) Classify() string {
	switch {
	case o.Err != nil:
		return metrics.OutcomeDropped
	case o.Status < http.StatusMultipleChoices:
		return metrics.OutcomeSent
	case o.Status == http.StatusNotFound, o.Status == http.StatusGone:
		return metrics.OutcomeExpired
	default:
		return metrics.OutcomeDropped
	}
}

// Dispatcher fans a notification out to every subscription of a user.
type Dispatcher struct {
	store      SubscriptionStore
	client     *Client
	keys       vapid.KeyPair
	logger     *zap.Logger
	timeout    time.Duration
	defaultURL string
	now        func() time.Time

	keyOnce sync.Once
	signer  *vapid.Signer
	keyErr  error
}

type Option func(*Dispatcher)

// WithTimeout bounds each delivery attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithDefaultURL sets the url sent when a notification has none.
func WithDefaultURL(url string) Option {
	return func(d *Dispatcher) {
		d.defaultURL = url
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func NewDispatcher(store SubscriptionStore, client *Client, keys vapid.KeyPair, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		store:      store,
		client:     client,
		keys:       keys,
		logger:     logger,
		timeout:    DefaultTimeout,
		defaultURL: "/",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// loadSigner imports the VAPID private key on first use.
func (d *Dispatcher) loadSigner() (*vapid.Signer, error) {
	d.keyOnce.Do(func() {
		d.signer, d.keyErr = vapid.ImportPrivateKey(d.keys.PrivateKey)
	})
	return d.signer, d.keyErr
}

// Dispatch delivers n to every subscription of n.UserID. Individual delivery
// failures never fail the call; they are only left out of the counts.
// Endpoints the push service reports as gone are deleted afterwards.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) (Result, error) {
	if err := n.Validate(); err != nil {
		metrics.Dispatches.WithLabelValues("invalid").Inc()
		return Result{}, err
	}
	log := d.logger.With(
		zap.String("dispatch_id", uuid.NewString()),
		zap.String("user_id", n.UserID),
	)

	subs, err := d.store.GetPushSubscriptionsByUser(ctx, n.UserID)
	if err != nil {
		metrics.Dispatches.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		metrics.Dispatches.WithLabelValues("ok").Inc()
		log.Debug("no push subscriptions")
		return Result{}, nil
	}

	signer, err := d.loadSigner()
	if err != nil {
		metrics.Dispatches.WithLabelValues("error").Inc()
		log.Error("VAPID key unusable", zap.Error(err))
		return Result{}, err
	}

	body, err := EncodePayload(n, d.defaultURL)
	if err != nil {
		metrics.Dispatches.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	var (
		res     Result
		expired []string
	)
	for _, o := range d.deliverAll(ctx, signer, subs, body) {
		outcome := o.Classify()
		metrics.Deliveries.WithLabelValues(outcome).Inc()
		switch outcome {
		case metrics.OutcomeSent:
			res.Sent++
		case metrics.OutcomeExpired:
			expired = append(expired, o.Endpoint)
		default:
			origin, _ := vapid.Audience(o.Endpoint)
			log.Warn("push delivery dropped",
				zap.String("origin", origin),
				zap.Int("status", o.Status),
				zap.Error(o.Err),
			)
		}
	}
	res.Expired = len(expired)

	if len(expired) > 0 {
		// cleanup outlives a cancelled request
		if err := d.store.DeletePushSubscriptions(context.WithoutCancel(ctx), expired); err != nil {
			metrics.CleanupFailures.Inc()
			log.Error("failed to delete expired subscriptions",
				zap.Int("count", len(expired)),
				zap.Error(err),
			)
		}
	}

	metrics.Dispatches.WithLabelValues("ok").Inc()
	log.Info("push dispatch completed",
		zap.Int("subscriptions", len(subs)),
		zap.Int("sent", res.Sent),
		zap.Int("expired", res.Expired),
	)
	return res, nil
}

// deliverAll runs one delivery per subscription and waits for all of them.
func (d *Dispatcher) deliverAll(ctx context.Context, signer *vapid.Signer, subs []models.PushSubscription, body []byte) []Outcome {
	outcomes := make([]Outcome, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = d.deliver(ctx, signer, sub.Endpoint, body)
		}()
	}
	wg.Wait()
	return outcomes
}

func (d *Dispatcher) deliver(ctx context.Context, signer *vapid.Signer, endpoint string, body []byte) (o Outcome) {
	o.Endpoint = endpoint
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.Status, o.Err = 0, fmt.Errorf("push delivery panicked: %v", r)
		}
		metrics.DeliveryDuration.Observe(time.Since(start).Seconds())
	}()

	token, err := signer.Token(endpoint, d.keys.Subject, d.now())
	if err != nil {
		o.Err = err
		return o
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	o.Status, o.Err = d.client.Send(ctx, endpoint, token, body)
	return o
}
