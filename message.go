package xcqrs

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
)

// Kind discriminates the three message variants structurally.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindCommand
	KindQuery
	KindEvent
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindQuery:
		return "query"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Fields is the explicit field table bound to a message at construction.
type Fields map[string]any

// Reserved metadata keys. Application fields may not use them.
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldRaisedOn    = "raisedon"
	FieldConstructed = "constructed"
)

var reservedFields = map[string]struct{}{
	FieldID:          {},
	FieldName:        {},
	FieldRaisedOn:    {},
	FieldConstructed: {},
}

// Message is the immutable value object traveling the bus. The only way to
// obtain one is through the package constructors, which seal the field table
// before returning.
type Message interface {
	// ID is a unique message identifier assigned at construction.
	ID() string
	// Name is the short logical type name.
	Name() string
	// Kind reports the variant (command, query or event).
	Kind() Kind
	// RaisedAt is the construction timestamp, microsecond resolution.
	RaisedAt() time.Time
	// Field returns a bound field or ErrUndefinedField.
	Field(key string) (any, error)
	// Fields returns a copy of the field table.
	Fields() Fields
	// Set always fails with ErrImmutable once construction has returned.
	Set(key string, value any) error
	// Equal compares by value. Commands and queries ignore RaisedAt;
	// events compare it at microsecond granularity.
	Equal(other Message) bool

	env() *envelope
}

// SelfNaming lets a source struct supply its logical name explicitly,
// honored by SelfNamingExtractor.
type SelfNaming interface {
	MessageName() string
}

// envelope is the sealed core shared by all variants.
type envelope struct {
	id          string
	name        string
	kind        Kind
	raisedAt    time.Time
	fields      Fields
	source      any
	constructed bool
}

func newEnvelope(kind Kind, name string, fields Fields, source any) envelope {
	bound := make(Fields, len(fields))
	for k, v := range fields {
		if _, bad := reservedFields[k]; bad {
			panic(fmt.Errorf("%w: %q", ErrReservedField, k))
		}
		bound[k] = v
	}
	// Truncating drops the monotonic reading so equality is purely wall-clock.
	return envelope{
		id:          uuid.NewString(),
		name:        name,
		kind:        kind,
		raisedAt:    xclock.Default().Now().Truncate(time.Microsecond),
		fields:      bound,
		source:      source,
		constructed: true,
	}
}

func (e *envelope) ID() string          { return e.id }
func (e *envelope) Name() string        { return e.name }
func (e *envelope) Kind() Kind          { return e.kind }
func (e *envelope) RaisedAt() time.Time { return e.raisedAt }

func (e *envelope) Field(key string) (any, error) {
	if v, ok := e.fields[key]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("field %q on %s %q: %w", key, e.kind, e.name, ErrUndefinedField)
}

func (e *envelope) Fields() Fields {
	out := make(Fields, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out
}

func (e *envelope) Set(key string, _ any) error {
	return fmt.Errorf("set %q on %s %q: %w", key, e.kind, e.name, ErrImmutable)
}

func (e *envelope) Equal(other Message) bool {
	if other == nil {
		return false
	}
	o := other.env()
	if o == nil || e.kind != o.kind || e.name != o.name {
		return false
	}
	if e.kind == KindEvent && !e.raisedAt.Equal(o.raisedAt) {
		return false
	}
	return reflect.DeepEqual(e.fields, o.fields)
}

func (e *envelope) env() *envelope { return e }

// Command requests a state change. It produces no return value and may raise
// domain events while being handled.
type Command struct{ envelope }

// Query requests data. It produces exactly one result and raises no events.
type Query struct{ envelope }

// DomainEvent records a fact that occurred. Published to listeners, never
// dispatched or replied to.
type DomainEvent struct{ envelope }

// NewCommand builds a sealed command from an explicit field table.
// Reserved field names panic with ErrReservedField.
func NewCommand(name string, fields Fields) *Command {
	return &Command{newEnvelope(KindCommand, name, fields, nil)}
}

// NewQuery builds a sealed query from an explicit field table.
func NewQuery(name string, fields Fields) *Query {
	return &Query{newEnvelope(KindQuery, name, fields, nil)}
}

// NewEvent builds a sealed domain event from an explicit field table.
func NewEvent(name string, fields Fields) *DomainEvent {
	return &DomainEvent{newEnvelope(KindEvent, name, fields, nil)}
}

// CommandFrom builds a command from a plain struct: the logical name is the
// struct's type name and every exported field is bound into the field table
// (json tag names win when present). The struct is retained for Payload and
// validation middleware.
func CommandFrom(v any) *Command {
	name, fields := harvest(v)
	return &Command{newEnvelope(KindCommand, name, fields, v)}
}

// QueryFrom builds a query from a plain struct. See CommandFrom.
func QueryFrom(v any) *Query {
	name, fields := harvest(v)
	return &Query{newEnvelope(KindQuery, name, fields, v)}
}

// EventFrom builds a domain event from a plain struct. See CommandFrom.
func EventFrom(v any) *DomainEvent {
	name, fields := harvest(v)
	return &DomainEvent{newEnvelope(KindEvent, name, fields, v)}
}

func harvest(v any) (string, Fields) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		panic(fmt.Errorf("xcqrs: message source must be a struct, got %T", v))
	}
	rt := rv.Type()
	fields := make(Fields, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		key := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			if base, _, _ := strings.Cut(tag, ","); base != "" && base != "-" {
				key = base
			}
		}
		fields[key] = rv.Field(i).Interface()
	}
	return rt.Name(), fields
}

// Payload recovers the typed source struct of a reflectively built message.
// Returns false for messages built from an explicit field table.
func Payload[T any](msg Message) (T, bool) {
	var zero T
	if msg == nil {
		return zero, false
	}
	src := msg.env().source
	if src == nil {
		return zero, false
	}
	if t, ok := src.(T); ok {
		return t, true
	}
	if p, ok := src.(*T); ok && p != nil {
		return *p, true
	}
	return zero, false
}

// FieldAs returns a field coerced to T.
func FieldAs[T any](msg Message, key string) (T, error) {
	var zero T
	if msg == nil {
		return zero, ErrNilMessage
	}
	v, err := msg.Field(key)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("xcqrs: field %q holds %T, not %T", key, v, zero)
	}
	return t, nil
}
