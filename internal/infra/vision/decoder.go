package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"

	domain "github.com/printsafeai/printsafe-api/internal/domain/analysis"
)

// ImageSize is the square input resolution the classifier was trained on.
// Changing it without retraining invalidates the model.
const ImageSize = 224

const channels = 3

// TensorLen is the flattened length of one input tensor (batch of 1, NHWC).
const TensorLen = 1 * ImageSize * ImageSize * channels

// ImageDecoder converts uploaded bytes into the model's input tensor.
type ImageDecoder struct{}

// Decode parses JPEG/PNG bytes, resizes to ImageSize x ImageSize and scales
// channel intensities to [0,1]. Output layout is NHWC with a leading batch
// dimension of 1, matching the trained input exactly.
func (ImageDecoder) Decode(data []byte) ([]float32, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}

	resized := resize.Resize(ImageSize, ImageSize, img, resize.Lanczos3)
	bounds := resized.Bounds()

	out := make([]float32, TensorLen)
	i := 0
	for y := 0; y < ImageSize; y++ {
		for x := 0; x < ImageSize; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// RGBA returns 16-bit channels
			out[i] = float32(r) / 65535.0
			out[i+1] = float32(g) / 65535.0
			out[i+2] = float32(b) / 65535.0
			i += channels
		}
	}
	return out, nil
}
