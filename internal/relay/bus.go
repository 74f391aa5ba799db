package relay

import (
	"errors"
	"sync"

	"github.com/astrolink/consult-rtc/internal/domain"
)

var (
	ErrClosed     = errors.New("relay: connection closed")
	ErrBufferFull = errors.New("relay: send buffer full")
)

// Bus is the only surface the controllers need from the realtime layer. It is
// satisfied by the websocket Client and by server-side Endpoints, so the same
// controller code runs against a remote relay or an in-process one.
type Bus interface {
	// Publish sends one event towards the relay. Fire-and-forget: delivery to
	// the addressed party is best effort.
	Publish(domain.Event) error
	// Events yields inbound events. The channel closes when the bus does.
	Events() <-chan domain.Event
	// Ready closes once the relay has acknowledged the attachment. Joins must
	// be gated on this, not on the dial returning.
	Ready() <-chan struct{}
	Close() error
}

const endpointBuffer = 16

// Endpoint is one attached participant as seen by the relay service. Inbound
// routing calls Enqueue; the participant's reader drains Events. A full
// buffer drops the event rather than blocking the router.
type Endpoint struct {
	id     string
	route  func(from string, ev domain.Event) error
	detach func(id string)

	mu     sync.Mutex
	closed bool
	events chan domain.Event

	ready     chan struct{}
	readyOnce sync.Once
	closeOnce sync.Once
}

func NewEndpoint(id string, route func(from string, ev domain.Event) error, detach func(id string)) *Endpoint {
	return &Endpoint{
		id:     id,
		route:  route,
		detach: detach,
		events: make(chan domain.Event, endpointBuffer),
		ready:  make(chan struct{}),
	}
}

func (e *Endpoint) ID() string { return e.id }

func (e *Endpoint) Publish(ev domain.Event) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return e.route(e.id, ev)
}

// Enqueue delivers an inbound event to this endpoint. Reports false when the
// endpoint is closed or its buffer is full.
func (e *Endpoint) Enqueue(ev domain.Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	select {
	case e.events <- ev:
		return true
	default:
		return false
	}
}

func (e *Endpoint) Events() <-chan domain.Event { return e.events }

func (e *Endpoint) Ready() <-chan struct{} { return e.ready }

// MarkReady is called by the relay service once the endpoint is registered.
func (e *Endpoint) MarkReady() {
	e.readyOnce.Do(func() { close(e.ready) })
}

func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.events)
		e.mu.Unlock()
		if e.detach != nil {
			e.detach(e.id)
		}
	})
	return nil
}
