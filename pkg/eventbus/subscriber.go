package eventbus

import (
	"context"
	"sync"
)

// Subscriber stages handler registrations and merges them into a registry in
// one step. Staging is local; nothing is visible to deliveries until Apply or
// ApplyTo.
//
//	eventbus.NewSubscriber().
//	    ListenWith(UserCreated{}, welcomeMailer).
//	    ListenFunc(UserDeleted{}, cleanup).
//	    ApplyTo(reg)
type Subscriber struct {
	mu      sync.Mutex
	order   []string
	entries map[string][]Handler
}

// NewSubscriber creates an empty Subscriber.
func NewSubscriber() *Subscriber {
	return &Subscriber{entries: make(map[string][]Handler)}
}

// ListenName stages h for the event name.
func (s *Subscriber) ListenName(name string, h Handler) *Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; !ok {
		s.order = append(s.order, name)
	}
	s.entries[name] = append(s.entries[name], h)
	return s
}

// ListenNameFunc stages fn for the event name.
func (s *Subscriber) ListenNameFunc(name string, fn func(ctx context.Context, env Envelope) error) *Subscriber {
	return s.ListenName(name, HandlerFunc(fn))
}

// ListenWith stages h for the event type of event. Only the type of event
// matters; its value is not kept.
func (s *Subscriber) ListenWith(event any, h Handler) *Subscriber {
	return s.ListenName(EventName(event), h)
}

// ListenFunc stages fn for the event type of event.
func (s *Subscriber) ListenFunc(event any, fn func(ctx context.Context, env Envelope) error) *Subscriber {
	return s.ListenName(EventName(event), HandlerFunc(fn))
}

// Subscribe moves everything staged in other into s, after s's own entries.
func (s *Subscriber) Subscribe(other *Subscriber) *Subscriber {
	if other == nil || other == s {
		return s
	}
	names, entries := other.take()
	for _, name := range names {
		for _, h := range entries[name] {
			s.ListenName(name, h)
		}
	}
	return s
}

// Len returns the number of staged handlers.
func (s *Subscriber) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, hs := range s.entries {
		n += len(hs)
	}
	return n
}

// take empties s and returns what was staged.
func (s *Subscriber) take() ([]string, map[string][]Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, entries := s.order, s.entries
	s.order = nil
	s.entries = make(map[string][]Handler)
	return names, entries
}

// ApplyTo merges the staged handlers into reg. The staging area is emptied,
// so applying again adds nothing.
func (s *Subscriber) ApplyTo(reg *Registry) {
	names, entries := s.take()
	for _, name := range names {
		reg.Register(name, entries[name]...)
	}
}

// Apply merges into DefaultRegistry and makes sure the process dispatcher is
// running, so events dispatched through Default reach these handlers.
func (s *Subscriber) Apply() {
	s.ApplyTo(DefaultRegistry)
	Default()
}

// handlerPtr constrains H to be *HT and a Handler, letting Listen construct
// handlers from their type alone.
type handlerPtr[HT any] interface {
	*HT
	Handler
}

// Listen stages a new zero-valued HT for event type E.
//
//	eventbus.Listen[UserCreated, WelcomeMailer](sub)
func Listen[E any, HT any, H handlerPtr[HT]](s *Subscriber) *Subscriber {
	return s.ListenName(NameOf[E](), H(new(HT)))
}

// ListenNamed stages a new zero-valued HT for an explicit event name.
func ListenNamed[HT any, H handlerPtr[HT]](s *Subscriber, name string) *Subscriber {
	return s.ListenName(name, H(new(HT)))
}
