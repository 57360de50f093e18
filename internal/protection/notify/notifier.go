package notify

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/studikumbang/relay-coordination/internal/eventing"
	"github.com/studikumbang/relay-coordination/internal/protection/application/events"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Notifier forwards breaker trips and diagnostics to a channel. Repeated
// diagnostics for the same device and code are suppressed within the dedupe
// window; breaker trips are always sent.
type Notifier struct {
	channel   Channel
	templates *Templates
	logger    *log.Logger
	clock     Clock

	mu     sync.Mutex
	window time.Duration
	sent   map[string]time.Time
}

// Option configures the notifier.
type Option func(*Notifier)

// WithDedupeWindow suppresses repeated diagnostics within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.window = window
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// NewNotifier constructs a notifier.
func NewNotifier(channel Channel, templates *Templates, logger *log.Logger, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("protection notifier: nil channel")
	}
	if templates == nil {
		defaults, err := NewTemplates("", "")
		if err != nil {
			return nil, err
		}
		templates = defaults
	}
	if logger == nil {
		logger = log.Default()
	}
	n := &Notifier{
		channel:   channel,
		templates: templates,
		logger:    logger,
		clock:     systemClock{},
		window:    time.Minute,
		sent:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Subscribe registers the notifier on the event bus.
func (n *Notifier) Subscribe(bus eventing.EventBus) {
	if n == nil || bus == nil {
		return
	}
	bus.Subscribe(eventing.EventTypeOf[events.BreakerOpened](), n.handleBreakerOpened)
	bus.Subscribe(eventing.EventTypeOf[events.DiagnosticRaised](), n.handleDiagnosticRaised)
}

func (n *Notifier) handleBreakerOpened(ctx context.Context, event any) error {
	opened, ok := event.(events.BreakerOpened)
	if !ok {
		return nil
	}
	content, err := n.templates.render(n.templates.breaker, opened)
	if err != nil {
		return err
	}
	if err := n.channel.Send(ctx, content); err != nil {
		n.logger.Printf("notify breaker opened: %v", err)
		return err
	}
	return nil
}

func (n *Notifier) handleDiagnosticRaised(ctx context.Context, event any) error {
	raised, ok := event.(events.DiagnosticRaised)
	if !ok {
		return nil
	}
	if !n.shouldSend(string(raised.Code) + "|" + raised.Device) {
		return nil
	}
	content, err := n.templates.render(n.templates.diagnostic, raised)
	if err != nil {
		return err
	}
	if err := n.channel.Send(ctx, content); err != nil {
		n.logger.Printf("notify diagnostic: %v", err)
		return err
	}
	return nil
}

func (n *Notifier) shouldSend(key string) bool {
	now := n.clock.Now().UTC()
	n.mu.Lock()
	defer n.mu.Unlock()
	if at, ok := n.sent[key]; ok && now.Sub(at) < n.window {
		return false
	}
	n.sent[key] = now
	return true
}
