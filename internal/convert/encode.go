package convert

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/bmp"
	"gonum.org/v1/gonum/mat"

	"github.com/desertthunder/imgset/internal/shared"
)

// Encoded is one row's pixel grid in both persisted forms.
type Encoded struct {
	Side int
	// Gray holds the raw intensities, row-major.
	Gray *image.Gray
	// Normalized holds intensity/255 at the same positions.
	Normalized *mat.Dense
}

// Encode parses side*side pixel tokens and reshapes them row-major into a square grid.
//
// Tokens must be base-10 integers in [0,255], surrounding spaces allowed.
// Anything else wraps [shared.ErrPixelParse].
func Encode(pixels []string, side int) (*Encoded, error) {
	if side <= 0 || len(pixels) != side*side {
		return nil, fmt.Errorf("%w: %d pixels for side %d", shared.ErrInvalidGeometry, len(pixels), side)
	}

	gray := image.NewGray(image.Rect(0, 0, side, side))
	normalized := make([]float64, len(pixels))

	for i, tok := range pixels {
		v, err := strconv.ParseUint(strings.TrimSpace(tok), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: pixel %d: %q", shared.ErrPixelParse, i, tok)
		}
		gray.Pix[(i/side)*gray.Stride+i%side] = uint8(v)
		normalized[i] = float64(v) / 255.0
	}

	return &Encoded{Side: side, Gray: gray, Normalized: mat.NewDense(side, side, normalized)}, nil
}

// Bitmap encodes the grid as an 8-bit grayscale BMP.
func (e *Encoded) Bitmap() ([]byte, error) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, e.Gray); err != nil {
		return nil, fmt.Errorf("failed to encode bitmap: %w", err)
	}
	return buf.Bytes(), nil
}

// Array returns the gonum binary encoding of the normalized matrix.
func (e *Encoded) Array() ([]byte, error) {
	data, err := e.Normalized.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode array: %w", err)
	}
	return data, nil
}

// DecodeBitmap reads a BMP produced by [Encoded.Bitmap] back into a grayscale grid.
func DecodeBitmap(data []byte) (*image.Gray, error) {
	img, err := bmp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode bitmap: %w", err)
	}

	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}

	// 8-bit BMPs decode as paletted images
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray, nil
}

// DecodeArray reads the output of [Encoded.Array] back into a matrix.
func DecodeArray(data []byte) (*mat.Dense, error) {
	var m mat.Dense
	if err := m.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("failed to decode array: %w", err)
	}
	return &m, nil
}
