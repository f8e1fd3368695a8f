package ai

import "errors"

// ErrQuotaExceeded indicates the review provider returned a quota/limit error
// (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrDisabled indicates no review provider is configured.
var ErrDisabled = errors.New("ai review not configured")
