package ros

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

var (
	// ErrNoMessage is returned when a topic produced nothing within the allowed time.
	ErrNoMessage = errors.New("no message received")
	// ErrServiceUnavailable is returned when a service has no provider.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrNoSubscribers is returned when a published topic has no listener within the allowed time.
	ErrNoSubscribers = errors.New("no subscribers")
)

const waitPollInterval = 10 * time.Millisecond

// Handler receives messages published on a topic. Handlers run on the publisher's goroutine
// and must not block.
type Handler func(msg interface{})

// ServiceHandler answers one request/response call.
type ServiceHandler func(ctx context.Context, req interface{}) (interface{}, error)

// Publisher sends messages on a single topic.
type Publisher interface {
	Topic() string
	Publish(ctx context.Context, msg interface{}) error
	NumSubscribers() int
}

// Bus is a publish/subscribe message bus with request/response services.
type Bus interface {
	// Subscribe registers h for messages on topic. The returned function removes it.
	Subscribe(topic string, h Handler) func()
	// Publisher returns a publisher on topic.
	Publisher(topic string) Publisher
	// RegisterService installs the provider of a service, replacing any previous one.
	RegisterService(name string, h ServiceHandler)
	// Call invokes a service and waits for its response.
	Call(ctx context.Context, name string, req interface{}) (interface{}, error)
	// HasService reports whether a provider is installed for name.
	HasService(name string) bool
	// Topics returns every topic with a subscriber or publisher.
	Topics() []string
	Close() error
}

// Subscribe registers fn for messages of type T on topic. Messages of any other type are ignored.
func Subscribe[T any](bus Bus, topic string, fn func(T)) func() {
	return bus.Subscribe(topic, func(msg interface{}) {
		switch m := msg.(type) {
		case T:
			fn(m)
		case *T:
			if m != nil {
				fn(*m)
			}
		}
	})
}

// WaitForMessage blocks until a message of type T arrives on topic or timeout elapses.
func WaitForMessage[T any](ctx context.Context, bus Bus, topic string, timeout time.Duration) (T, error) {
	received := make(chan T, 1)
	unsubscribe := Subscribe(bus, topic, func(msg T) {
		select {
		case received <- msg:
		default:
		}
	})
	defer unsubscribe()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case msg := <-received:
		return msg, nil
	case <-timer.C:
		return zero, errors.Wrapf(ErrNoMessage, "%s after %s", topic, timeout)
	case <-ctx.Done():
		return zero, errors.Wrapf(ErrNoMessage, "%s: %v", topic, ctx.Err())
	}
}

// WaitForSubscribers blocks until the publisher has at least one subscriber or timeout elapses.
func WaitForSubscribers(ctx context.Context, pub Publisher, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for pub.NumSubscribers() == 0 {
		if !time.Now().Before(deadline) {
			return errors.Wrapf(ErrNoSubscribers, "%s after %s", pub.Topic(), timeout)
		}
		if !goutils.SelectContextOrWait(ctx, waitPollInterval) {
			return errors.Wrapf(ErrNoSubscribers, "%s: %v", pub.Topic(), ctx.Err())
		}
	}
	return nil
}

// WaitForService blocks until a provider of name is installed or timeout elapses.
func WaitForService(ctx context.Context, bus Bus, name string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for !bus.HasService(name) {
		if !time.Now().Before(deadline) {
			return errors.Wrapf(ErrServiceUnavailable, "%s after %s", name, timeout)
		}
		if !goutils.SelectContextOrWait(ctx, waitPollInterval) {
			return errors.Wrapf(ErrServiceUnavailable, "%s: %v", name, ctx.Err())
		}
	}
	return nil
}
