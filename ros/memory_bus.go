package ros

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/turtlelab/localize/logging"
)

type subscription struct {
	id      uint64
	handler Handler
}

// memoryBus delivers messages synchronously within the process.
type memoryBus struct {
	logger logging.Logger

	mu          sync.RWMutex
	nextID      uint64
	subscribers map[string][]subscription
	publishers  map[string]struct{}
	services    map[string]ServiceHandler
	closed      bool
}

// NewMemoryBus returns a Bus that delivers every message to the subscribers of its topic on
// the publisher's goroutine.
func NewMemoryBus(logger logging.Logger) Bus {
	return &memoryBus{
		logger:      logger,
		subscribers: map[string][]subscription{},
		publishers:  map[string]struct{}{},
		services:    map[string]ServiceHandler{},
	}
}

func (b *memoryBus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subscribers[topic] = append(b.subscribers[topic], subscription{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subscribers[topic]
			for i, s := range subs {
				if s.id == id {
					b.subscribers[topic] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}
}

func (b *memoryBus) Publisher(topic string) Publisher {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishers[topic] = struct{}{}
	return &memoryPublisher{bus: b, topic: topic}
}

func (b *memoryBus) RegisterService(name string, h ServiceHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.services[name] = h
}

func (b *memoryBus) HasService(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.services[name]
	return ok
}

func (b *memoryBus) Call(ctx context.Context, name string, req interface{}) (interface{}, error) {
	b.mu.RLock()
	h, ok := b.services[name]
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil, errors.New("bus closed")
	}
	if !ok {
		return nil, errors.Wrap(ErrServiceUnavailable, name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := h(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s", name)
	}
	return resp, nil
}

func (b *memoryBus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := map[string]struct{}{}
	for topic, subs := range b.subscribers {
		if len(subs) > 0 {
			seen[topic] = struct{}{}
		}
	}
	for topic := range b.publishers {
		seen[topic] = struct{}{}
	}
	topics := make([]string, 0, len(seen))
	for topic := range seen {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subscribers = map[string][]subscription{}
	b.services = map[string]ServiceHandler{}
	return nil
}

func (b *memoryBus) deliver(topic string, msg interface{}) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.New("bus closed")
	}
	subs := make([]subscription, len(b.subscribers[topic]))
	copy(subs, b.subscribers[topic])
	b.mu.RUnlock()

	for _, s := range subs {
		handler := s.handler
		// A panicking subscriber must not take the publisher down with it.
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Errorw("subscriber panicked", "topic", topic, "panic", r)
				}
			}()
			handler(msg)
		}()
	}
	return nil
}

type memoryPublisher struct {
	bus   *memoryBus
	topic string
}

func (p *memoryPublisher) Topic() string {
	return p.topic
}

func (p *memoryPublisher) Publish(ctx context.Context, msg interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.bus.deliver(p.topic, msg)
}

func (p *memoryPublisher) NumSubscribers() int {
	p.bus.mu.RLock()
	defer p.bus.mu.RUnlock()
	return len(p.bus.subscribers[p.topic])
}
