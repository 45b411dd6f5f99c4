// Package faststock defines errors shared across the service's packages.
package faststock

import "errors"

// Common errors
var (
	// ErrEmptySnapshot is returned when a computation needs at least one
	// option record and the snapshot has none
	ErrEmptySnapshot = errors.New("snapshot has no option records")

	// ErrNoCallOpenInterest is returned when a put-call ratio is requested
	// but total call open interest is zero while put open interest is not
	ErrNoCallOpenInterest = errors.New("no call open interest; ratio undefined")

	// ErrInvalidArgument is returned for malformed parameters such as a
	// non-positive top-N
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownSide is returned when an option side is neither CALL nor PUT
	ErrUnknownSide = errors.New("unknown option side")

	// ErrNoData is returned when no cached or stored data exists for a request
	ErrNoData = errors.New("no data available")

	// ErrSymbolNotFound is returned when an upstream provider has no data
	// for the requested symbol
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrExpiryNotFound is returned when the requested expiry is not in the
	// upstream expiry list
	ErrExpiryNotFound = errors.New("expiry not found")

	// ErrJobNotFound is returned when looking up an unknown fetch job
	ErrJobNotFound = errors.New("job not found")

	// ErrUnauthorized is returned when a protected endpoint is called
	// without a valid token
	ErrUnauthorized = errors.New("unauthorized")
)
