package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	domain "github.com/printsafeai/printsafe-api/internal/domain/analysis"
)

// Metadata describes the model artifact. It ships next to the .onnx file so
// the service can sanity-check the trained input contract at startup.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// Classifier wraps the pre-trained binary model. It is created once at process
// start and shared for the lifetime of the process. The underlying session
// reuses pre-allocated tensors, so Classify serializes calls with a mutex.
type Classifier struct {
	mu       sync.Mutex
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	output   *ort.Tensor[float32]
	Metadata Metadata
}

// NewClassifier loads the ONNX artifact and its metadata. libraryPath may be
// empty when the onnxruntime shared library is on the default search path.
func NewClassifier(modelPath, metadataPath, libraryPath string) (*Classifier, error) {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("%w: initialize ONNX environment: %v", domain.ErrInference, err)
	}

	metaFile, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read model metadata: %v", domain.ErrInference, err)
	}
	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return nil, fmt.Errorf("%w: parse model metadata: %v", domain.ErrInference, err)
	}
	if metadata.ImageSize != 0 && metadata.ImageSize != ImageSize {
		return nil, fmt.Errorf("%w: model expects %dx%d input, decoder produces %dx%d",
			domain.ErrInference, metadata.ImageSize, metadata.ImageSize, ImageSize, ImageSize)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("%w: create input tensor: %v", domain.ErrInference, err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("%w: create output tensor: %v", domain.ErrInference, err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("%w: create ONNX session: %v", domain.ErrInference, err)
	}

	return &Classifier{
		session:  session,
		input:    inputTensor,
		output:   outputTensor,
		Metadata: metadata,
	}, nil
}

// Classify runs one tensor through the model and returns the raw sigmoid
// output in [0,1]. One call processes exactly one image.
func (c *Classifier) Classify(ctx context.Context, input []float32) (float64, error) {
	if c == nil || c.session == nil {
		return 0, fmt.Errorf("%w: model not loaded", domain.ErrInference)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	buf := c.input.GetData()
	if len(input) != len(buf) {
		return 0, fmt.Errorf("%w: input has %d values, model expects %d",
			domain.ErrInference, len(input), len(buf))
	}
	copy(buf, input)

	if err := c.session.Run(); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInference, err)
	}

	out := c.output.GetData()
	if len(out) == 0 {
		return 0, fmt.Errorf("%w: model produced no output", domain.ErrInference)
	}
	return float64(out[0]), nil
}

// Close releases the session and tensors.
func (c *Classifier) Close() {
	if c.input != nil {
		c.input.Destroy()
	}
	if c.output != nil {
		c.output.Destroy()
	}
	if c.session != nil {
		c.session.Destroy()
	}
	ort.DestroyEnvironment()
}
