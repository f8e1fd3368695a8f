package analysis

import "errors"

// Error taxonomy. Infra layers wrap these with %w; the HTTP boundary is the
// only place they are translated into status codes.
var (
	ErrConfig           = errors.New("configuration error")
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrDecode           = errors.New("image decode failed")
	ErrInference        = errors.New("inference failed")
	ErrValidation       = errors.New("validation failed")
	ErrConstraint       = errors.New("constraint violation")
	ErrNotFound         = errors.New("not found")
)
