package infrastructure

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"stockcast/internal/modules/stream/domain"
)

const (
	DefaultPingInterval = 15 * time.Second
	DefaultIdleTimeout  = 60 * time.Second
)

var ErrTransportClosed = errors.New("transport closed")

// Transport is one subscriber's write side. Implementations must serialize
// their own writes; WriteFrame is called from the dispatcher and from the
// liveness watcher concurrently.
type Transport interface {
	WriteFrame(domain.Frame) error
	Close() error
}

// Subscription is one live client bound to a seller. It is owned by the
// Registry that created it and is never shared across processes.
type Subscription struct {
	id        int64
	sellerID  string
	transport Transport

	mu           sync.Mutex
	lastActivity time.Time

	done      chan struct{}
	closeOnce sync.Once
}

func (s *Subscription) ID() int64       { return s.id }
func (s *Subscription) SellerID() string { return s.sellerID }

// Done is closed exactly once, when the subscription is retired.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Send writes one frame. A successful write counts as liveness evidence.
func (s *Subscription) Send(frame domain.Frame) error {
	if err := s.transport.WriteFrame(frame); err != nil {
		return err
	}
	s.touch(time.Now())
	return nil
}

func (s *Subscription) touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
}

func (s *Subscription) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity)
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.transport.Close()
	})
}

// Registry is the in-process table of open subscriptions, keyed by seller.
// The streaming endpoints add entries; the dispatcher and each subscription's
// liveness watcher remove them. Nothing else mutates it.
type Registry struct {
	mu       sync.RWMutex
	bySeller map[string]map[int64]*Subscription
	nextID   int64

	pingInterval time.Duration
	idleTimeout  time.Duration
	now          func() time.Time
}

func NewRegistry(pingInterval, idleTimeout time.Duration) *Registry {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Registry{
		bySeller:     make(map[string]map[int64]*Subscription),
		pingInterval: pingInterval,
		idleTimeout:  idleTimeout,
		now:          time.Now,
	}
}

// Register adds a subscription for sellerID over the given transport and
// starts its liveness watcher.
func (r *Registry) Register(sellerID string, transport Transport) *Subscription {
	r.mu.Lock()
	r.nextID++
	sub := &Subscription{
		id:           r.nextID,
		sellerID:     sellerID,
		transport:    transport,
		lastActivity: r.now(),
		done:         make(chan struct{}),
	}
	if r.bySeller[sellerID] == nil {
		r.bySeller[sellerID] = make(map[int64]*Subscription)
	}
	r.bySeller[sellerID][sub.id] = sub
	r.mu.Unlock()

	go r.watch(sub)

	slog.Info("subscriber registered",
		slog.Int64("subscriptionId", sub.id),
		slog.String("sellerId", sellerID))
	return sub
}

// Unregister removes the subscription, stops its watcher and closes its
// transport. Safe to call more than once and from any goroutine.
func (r *Registry) Unregister(sub *Subscription) {
	if sub == nil {
		return
	}

	r.mu.Lock()
	removed := false
	if subs, ok := r.bySeller[sub.sellerID]; ok {
		if _, present := subs[sub.id]; present {
			delete(subs, sub.id)
			removed = true
			if len(subs) == 0 {
				delete(r.bySeller, sub.sellerID)
			}
		}
	}
	r.mu.Unlock()

	sub.close()

	if removed {
		slog.Info("subscriber unregistered",
			slog.Int64("subscriptionId", sub.id),
			slog.String("sellerId", sub.sellerID))
	}
}

// BySeller snapshots the subscriptions currently registered for sellerID.
func (r *Registry) BySeller(sellerID string) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := make([]*Subscription, 0, len(r.bySeller[sellerID]))
	for _, sub := range r.bySeller[sellerID] {
		subs = append(subs, sub)
	}
	return subs
}

// Len reports the total number of registered subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, subs := range r.bySeller {
		total += len(subs)
	}
	return total
}

// watch pings the subscriber on a fixed interval and retires the
// subscription once no write has succeeded within the idle timeout. The
// watcher exits when the subscription is retired through any path, so a
// closed stream never leaks a ticker.
func (r *Registry) watch(sub *Subscription) {
	ticker := time.NewTicker(r.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.done:
			return
		case <-ticker.C:
			now := r.now()
			if sub.idleSince(now) > r.idleTimeout {
				slog.Info("subscriber timed out",
					slog.Int64("subscriptionId", sub.id),
					slog.String("sellerId", sub.sellerID))
				r.Unregister(sub)
				return
			}
			if err := sub.Send(domain.PingFrame(now)); err != nil {
				slog.Warn("subscriber ping failed",
					slog.Int64("subscriptionId", sub.id),
					slog.String("sellerId", sub.sellerID),
					slog.Any("error", err))
				r.Unregister(sub)
				return
			}
		}
	}
}
