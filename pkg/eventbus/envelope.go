package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Envelope is the unit of delivery: an event payload serialized at dispatch
// time plus the metadata handlers and the registry need.
//
// Envelopes are values and immutable once built. Every handler of a dispatch
// sees the same envelope.
type Envelope struct {
	id        string
	createdAt int64
	payload   string
	eventName string
}

// wireEnvelope is the JSON form of an Envelope.
type wireEnvelope struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
	Payload   string `json:"payload"`
	EventName string `json:"event_name"`
}

// NewEnvelope wraps an already encoded payload under eventName. It assigns a
// fresh id and the current time.
func NewEnvelope(payload, eventName string) Envelope {
	return newEnvelopeAt(clock.New(), payload, eventName)
}

func newEnvelopeAt(clk clock.Clock, payload, eventName string) Envelope {
	return Envelope{
		id:        newEnvelopeID(),
		createdAt: clk.Now().Unix(),
		payload:   payload,
		eventName: eventName,
	}
}

// newEnvelopeID returns a lowercase, time-ordered UUIDv7 string.
func newEnvelopeID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ID returns the envelope's unique id.
func (e Envelope) ID() string { return e.id }

// EventName returns the routing key.
func (e Envelope) EventName() string { return e.eventName }

// Payload returns the encoded event.
func (e Envelope) Payload() string { return e.payload }

// PayloadBytes returns a copy of the encoded event as bytes.
func (e Envelope) PayloadBytes() []byte { return []byte(e.payload) }

// Timestamp returns the creation time in Unix seconds.
func (e Envelope) Timestamp() int64 { return e.createdAt }

// CreatedAt returns the creation time in UTC, at one-second resolution.
func (e Envelope) CreatedAt() time.Time { return time.Unix(e.createdAt, 0).UTC() }

// IsZero reports whether e is the zero Envelope.
func (e Envelope) IsZero() bool { return e == Envelope{} }

// Encode returns the wire form of e.
func (e Envelope) Encode() (string, error) {
	b, err := e.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}
	return string(b), nil
}

// MarshalJSON implements json.Marshaler using the wire form.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEnvelope{
		ID:        e.id,
		CreatedAt: e.createdAt,
		Payload:   e.payload,
		EventName: e.eventName,
	})
}

// UnmarshalJSON implements json.Unmarshaler with the same checks as ParseEnvelope.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	parsed, err := ParseEnvelope(string(data))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseEnvelope decodes the wire form produced by Encode. Input missing an id
// or an event name is rejected with ErrMalformedEnvelope.
func ParseEnvelope(data string) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if w.ID == "" || w.EventName == "" {
		return Envelope{}, fmt.Errorf("%w: missing id or event_name", ErrMalformedEnvelope)
	}
	return Envelope{
		id:        w.ID,
		createdAt: w.CreatedAt,
		payload:   w.Payload,
		eventName: w.EventName,
	}, nil
}

// Decode decodes the envelope payload as T using the JSON codec.
// It reports false when the payload is malformed or does not have T's shape.
func Decode[T any](env Envelope) (T, bool) {
	return DecodeWith[T](env, JSONCodec{})
}

// DecodeWith is Decode with an explicit codec.
func DecodeWith[T any](env Envelope, codec Codec) (T, bool) {
	var v T
	if err := codec.Decode(env.payload, &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// EncodeEvent builds an envelope for event and returns its wire form, ready
// for Dispatcher.DispatchEncoded.
func EncodeEvent(event any) (string, error) {
	payload, err := JSONCodec{}.Encode(event)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return NewEnvelope(payload, EventName(event)).Encode()
}
