package vision

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	mockDescription = "A beautiful landscape with mountains and a lake"
)

var mockTags = []string{"landscape", "mountains", "lake", "nature", "outdoors"}

// ErrNotImage is returned when the upload cannot be decoded.
var ErrNotImage = errors.New("upload is not a decodable image")

// Result is the analysis returned to clients.
type Result struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Analyzer validates uploads and returns a canned description.
// There is no vision model behind it yet.
type Analyzer struct{}

// NewAnalyzer returns the mock analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze decodes data to make sure it is an image, then returns the fixed result.
func (a *Analyzer) Analyze(_ context.Context, data []byte) (Result, error) {
	img, format, err := decodeImage(data)
	if err != nil {
		return Result{}, errors.Wrap(ErrNotImage, err.Error())
	}

	bounds := img.Bounds()
	log.Debug().
		Str("component", "vision").
		Str("format", format).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Msg("image decoded")

	tags := make([]string, len(mockTags))
	copy(tags, mockTags)
	return Result{Description: mockDescription, Tags: tags}, nil
}

func decodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("empty upload")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, format, nil
	}
	// image.Decode can miss files with odd headers; try the common codecs directly.
	if img, jerr := jpeg.Decode(bytes.NewReader(data)); jerr == nil {
		return img, "jpeg", nil
	}
	if img, perr := png.Decode(bytes.NewReader(data)); perr == nil {
		return img, "png", nil
	}
	return nil, "", err
}
