package secret

import "errors"

var (
	// ErrMissingEnv indicates ${VAR} referenced an unset variable.
	ErrMissingEnv = errors.New("secret: missing required environment variables")

	// ErrUnknownProvider indicates a reference named an unregistered provider.
	ErrUnknownProvider = errors.New("secret: provider not registered")

	// ErrEmptySecret indicates a strict resolver received an empty value.
	ErrEmptySecret = errors.New("secret: provider returned empty value")

	// ErrNotFound indicates the provider has no secret for the reference.
	ErrNotFound = errors.New("secret: not found")

	// ErrInvalidRegistration indicates a blank name or nil factory.
	ErrInvalidRegistration = errors.New("secret: invalid provider registration")

	// ErrDuplicateProvider indicates a factory name is already taken.
	ErrDuplicateProvider = errors.New("secret: provider already registered")
)
