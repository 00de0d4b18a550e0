package xcqrs

import "errors"

var (
	// ErrImmutable is returned for any attempt to set a message field after
	// the constructing call has returned.
	ErrImmutable = errors.New("xcqrs: message is sealed after construction")

	// ErrReservedField guards the reserved metadata keys (id, name, raisedon,
	// constructed) against application fields.
	ErrReservedField = errors.New("xcqrs: field name is reserved")

	// ErrUndefinedField is returned when reading a field that was never bound
	// during construction.
	ErrUndefinedField = errors.New("xcqrs: field was never set")

	// ErrHandlerNotFound is returned when the locator cannot map a logical
	// name to a handler. The message is neither executed nor queued.
	ErrHandlerNotFound = errors.New("xcqrs: no handler for message")

	// ErrMethodNotFound is returned when the located handler lacks the method
	// the inflector selected.
	ErrMethodNotFound = errors.New("xcqrs: handler method not found")

	// ErrContractViolation covers structural misuse: a query raising events,
	// a command handler returning a value, or dispatching a domain event.
	ErrContractViolation = errors.New("xcqrs: message contract violation")

	ErrNilMessage = errors.New("xcqrs: message is nil")
	ErrBusClosed  = errors.New("xcqrs: bus is closed")

	ErrObserverPoolShutdownTimeout = errors.New("xcqrs: observer pool shutdown timed out")
)
