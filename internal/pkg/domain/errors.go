package domain

import "errors"

// Sentinel errors shared across the domain layer. Handlers map these to
// HTTP status codes; nothing below the presentation layer should know
// about status codes.
var (
	// ErrNotFound is returned by a lookup that found nothing.
	ErrNotFound = errors.New("not found")

	// ErrIDConflict is returned by insert when the id already exists.
	ErrIDConflict = errors.New("id conflict")

	// ErrGatewayExists is returned when an explicit-id gateway creation
	// collides with an existing record.
	ErrGatewayExists = errors.New("gateway_exists")

	// ErrUnknownDatabase is returned when a gateway-creation request
	// refers to a database id with no registered descriptor.
	ErrUnknownDatabase = errors.New("unknown_database")

	// ErrRegistryInconsistent marks the "second miss is a bug" case in
	// resolve-or-create's insert-race retry.
	ErrRegistryInconsistent = errors.New("registry_inconsistent")

	// ErrInvalidTransition is returned by advance() when new_state does
	// not strictly follow the current state.
	ErrInvalidTransition = errors.New("invalid_transition")
)
