package broadcast

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"project-workspace-api/internal/metrics"
)

// Publisher forwards changes to an external transport.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Subscriber receives matching changes on C until it is closed. A subscriber
// that falls behind by more than its buffer is closed by the bus.
type Subscriber struct {
	C <-chan Change

	ch    chan Change
	subs  []Subscription
	allow func(Change) bool
	once  sync.Once
}

func (s *Subscriber) wants(c Change) bool {
	if s.allow != nil && !s.allow(c) {
		return false
	}
	for _, sub := range s.subs {
		if sub.Matches(c) {
			return true
		}
	}
	return false
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Bus is the in-process change broadcaster.
type Bus struct {
	mu         sync.RWMutex
	subs       map[*Subscriber]struct{}
	publishers []Publisher
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewBus(m *metrics.Metrics, logger *zap.Logger, publishers ...Publisher) *Bus {
	return &Bus{
		subs:       make(map[*Subscriber]struct{}),
		publishers: publishers,
		metrics:    m,
		logger:     logger,
	}
}

// Subscribe registers a subscriber for subs. allow, when non-nil, is a final
// per-change gate such as a read-permission check.
func (b *Bus) Subscribe(subs []Subscription, buffer int, allow func(Change) bool) *Subscriber {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Change, buffer)
	s := &Subscriber{C: ch, ch: ch, subs: subs, allow: allow}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
	s.close()
}

// Publish delivers c to local subscribers and forwards it to every external
// publisher. External failures are logged and never returned.
func (b *Bus) Publish(ctx context.Context, c Change) {
	b.metrics.RecordChangeEvent(c.Table, string(c.Op))

	var slow []*Subscriber
	b.mu.RLock()
	for s := range b.subs {
		if !s.wants(c) {
			continue
		}
		select {
		case s.ch <- c:
		default:
			slow = append(slow, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range slow {
		b.logger.Warn("Change subscriber fell behind, closing", zap.String("table", c.Table))
		b.Unsubscribe(s)
	}

	for _, p := range b.publishers {
		if err := p.Publish(ctx, c); err != nil {
			b.logger.Error("Failed to forward change event",
				zap.String("table", c.Table),
				zap.String("row_id", c.RowID.String()),
				zap.Error(err),
			)
		}
	}
}

// Close closes every subscriber.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*Subscriber]struct{})
	b.mu.Unlock()
	for s := range subs {
		s.close()
	}
}
