package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrUnauthorized = fmt.Errorf("not authenticated")
	ErrTokenExpired = fmt.Errorf("access token expired")

	// Lookup errors
	ErrNotFound = fmt.Errorf("not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	// Conversion errors, client input problems
	ErrInvalidGeometry = fmt.Errorf("pixel column range is not a perfect square")
	ErrMalformedRow    = fmt.Errorf("malformed row")
	ErrUnknownLabel    = fmt.Errorf("unknown label")
	ErrPixelParse      = fmt.Errorf("invalid pixel value")

	// Storage errors, server side
	ErrStorage = fmt.Errorf("storage failure")
)
