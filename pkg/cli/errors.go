package cli

import "errors"

// Common CLI errors
var (
	ErrInvalidOption = errors.New("invalid engine option, expected key=value")
	ErrMissingURL    = errors.New("url is required")
)
