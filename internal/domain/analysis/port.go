package analysis

import (
	"context"

	"github.com/printsafeai/printsafe-api/internal/domain/clients"
	"github.com/printsafeai/printsafe-api/internal/domain/employees"
)

// Decoder port: raw upload bytes to the classifier's input tensor.
type Decoder interface {
	Decode(data []byte) ([]float32, error)
}

// Classifier port: one preprocessed tensor in, one raw sigmoid score out.
type Classifier interface {
	Classify(ctx context.Context, input []float32) (float64, error)
}

// Store port (interface for persistence). SaveAnalysisBatch is atomic: the
// client row and every analysis row commit together or not at all.
type Store interface {
	Ping(ctx context.Context) error
	ListEmployees(ctx context.Context) ([]employees.Employee, error)
	CreateClient(ctx context.Context, c *clients.Client) (int64, error)
	SaveAnalysisBatch(ctx context.Context, c *clients.Client, employeeID int64, entries []BatchEntry) (int64, []Record, error)
}

// ImageStore port (interface for saved image copies). Save returns the path
// that goes into ruta_imagen; Remove takes that same path back.
type ImageStore interface {
	Save(ctx context.Context, fileName string, data []byte) (string, error)
	Remove(ctx context.Context, path string) error
}
