package ai

import "context"

// Reviewer port: second-opinion verdict for a flagged image. The result is a
// JSON document meant for display only; it is never persisted.
type Reviewer interface {
	Review(ctx context.Context, fileName string, imageData []byte) (string, error)
}
