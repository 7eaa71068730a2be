package invalidation

import "errors"

var (
	// ErrInvalidRule is returned when a rule lacks an ID, an event type, or
	// any effect.
	ErrInvalidRule = errors.New("invalidation: invalid rule")

	// ErrDuplicateRule is returned when a rule ID is already registered.
	ErrDuplicateRule = errors.New("invalidation: duplicate rule id")

	// ErrRuleNotFound is returned when a rule ID is not registered.
	ErrRuleNotFound = errors.New("invalidation: rule not found")

	// ErrKeyGenerator wraps failures of a rule's key generator.
	ErrKeyGenerator = errors.New("invalidation: key generator failed")

	// ErrMissingField is returned by TemplateKeys when event data lacks a
	// placeholder field.
	ErrMissingField = errors.New("invalidation: missing template field")

	// ErrNilInvalidator is returned by NewEngine when no cache is given.
	ErrNilInvalidator = errors.New("invalidation: invalidator is nil")
)
