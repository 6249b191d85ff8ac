package convert

import (
	"errors"
	"math"
	"testing"

	"github.com/desertthunder/imgset/internal/shared"
)

func TestValidate(t *testing.T) {
	t.Run("PerfectSquares", func(t *testing.T) {
		for k := 1; k <= 64; k++ {
			for _, start := range []int{0, 1, 7} {
				end := start + k*k - 1
				side, err := Validate(start, end)
				if err != nil {
					t.Fatalf("Validate(%d, %d): unexpected error: %v", start, end, err)
				}
				if side != k {
					t.Errorf("Validate(%d, %d) = %d, want %d", start, end, side, k)
				}
			}
		}
	})

	t.Run("NonSquares", func(t *testing.T) {
		for width := 2; width <= 1000; width++ {
			if s := isqrt(width); s*s == width {
				continue
			}
			if _, err := Validate(0, width-1); !errors.Is(err, shared.ErrInvalidGeometry) {
				t.Fatalf("Validate(0, %d): expected ErrInvalidGeometry, got %v", width-1, err)
			}
		}
	})

	t.Run("FourteenColumns", func(t *testing.T) {
		if _, err := Validate(1, 14); !errors.Is(err, shared.ErrInvalidGeometry) {
			t.Errorf("expected ErrInvalidGeometry, got %v", err)
		}
	})

	t.Run("InvalidRange", func(t *testing.T) {
		cases := []struct{ start, end int }{{-1, 3}, {5, 4}}
		for _, tc := range cases {
			if _, err := Validate(tc.start, tc.end); !errors.Is(err, shared.ErrInvalidGeometry) {
				t.Errorf("Validate(%d, %d): expected ErrInvalidGeometry, got %v", tc.start, tc.end, err)
			}
		}
	})

	t.Run("LargeWidth", func(t *testing.T) {
		k := 94906265
		side, err := Validate(0, k*k-1)
		if err != nil || side != k {
			t.Errorf("expected side %d, got %d (%v)", k, side, err)
		}
		if _, err := Validate(0, k*k); err == nil {
			t.Error("expected k*k+1 columns to fail")
		}
	})
}

func TestDecode(t *testing.T) {
	row := []string{"cat", "0", "34", "154", "29"}

	t.Run("LabelFirst", func(t *testing.T) {
		label, pixels, err := Decode(row, 0, 1, 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if label != "cat" {
			t.Errorf("expected label cat, got %q", label)
		}
		if len(pixels) != 4 || pixels[0] != "0" || pixels[3] != "29" {
			t.Errorf("unexpected pixels %v", pixels)
		}
	})

	t.Run("LabelAfterPixels", func(t *testing.T) {
		r := []string{"1", "2", "3", "4", " Dog "}
		label, pixels, err := Decode(r, 4, 0, 4)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if label != " Dog " {
			t.Errorf("label must be returned verbatim, got %q", label)
		}
		if len(pixels) != 4 {
			t.Errorf("expected 4 pixels, got %d", len(pixels))
		}
	})

	t.Run("ShortRow", func(t *testing.T) {
		if _, _, err := Decode(row[:4], 0, 1, 5); !errors.Is(err, shared.ErrMalformedRow) {
			t.Errorf("expected ErrMalformedRow, got %v", err)
		}
	})

	t.Run("LabelColumnMissing", func(t *testing.T) {
		if _, _, err := Decode(row, 7, 1, 5); !errors.Is(err, shared.ErrMalformedRow) {
			t.Errorf("expected ErrMalformedRow, got %v", err)
		}
	})
}

func TestEncode(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		encoded, err := Encode([]string{"0", "255", "0", "255"}, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := [][]float64{{0, 1}, {0, 1}}
		for i := range 2 {
			for j := range 2 {
				if got := encoded.Normalized.At(i, j); got != want[i][j] {
					t.Errorf("Normalized[%d][%d] = %v, want %v", i, j, got, want[i][j])
				}
			}
		}

		data, err := encoded.Bitmap()
		if err != nil {
			t.Fatalf("failed to encode bitmap: %v", err)
		}
		gray, err := DecodeBitmap(data)
		if err != nil {
			t.Fatalf("failed to decode bitmap: %v", err)
		}
		if b := gray.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
			t.Fatalf("expected 2x2 bitmap, got %v", b)
		}

		pixels := []uint8{}
		for y := range 2 {
			for x := range 2 {
				pixels = append(pixels, gray.GrayAt(x, y).Y)
			}
		}
		for i, v := range []uint8{0, 255, 0, 255} {
			if pixels[i] != v {
				t.Errorf("pixel %d = %d, want %d", i, pixels[i], v)
			}
		}
	})

	t.Run("ArrayRoundTrip", func(t *testing.T) {
		encoded, err := Encode([]string{"0", "34", "154", "29"}, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := encoded.Array()
		if err != nil {
			t.Fatalf("failed to encode array: %v", err)
		}
		m, err := DecodeArray(data)
		if err != nil {
			t.Fatalf("failed to decode array: %v", err)
		}

		r, c := m.Dims()
		if r != 2 || c != 2 {
			t.Fatalf("expected 2x2 array, got %dx%d", r, c)
		}
		want := []float64{0.0 / 255, 34.0 / 255, 154.0 / 255, 29.0 / 255}
		for i, v := range want {
			if got := m.At(i/2, i%2); math.Abs(got-v) > 1e-12 {
				t.Errorf("array[%d] = %v, want %v", i, got, v)
			}
		}
	})

	t.Run("RowMajor", func(t *testing.T) {
		tokens := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"}
		encoded, err := Encode(tokens, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := encoded.Gray.GrayAt(0, 1).Y; got != 4 {
			t.Errorf("expected first pixel of second row to be 4, got %d", got)
		}
		if got := encoded.Gray.GrayAt(2, 0).Y; got != 3 {
			t.Errorf("expected last pixel of first row to be 3, got %d", got)
		}
	})

	t.Run("PixelParseErrors", func(t *testing.T) {
		for _, tok := range []string{"abc", "", "1.5", "-1", "256", "0x10"} {
			if _, err := Encode([]string{"0", tok, "0", "0"}, 2); !errors.Is(err, shared.ErrPixelParse) {
				t.Errorf("token %q: expected ErrPixelParse, got %v", tok, err)
			}
		}
	})

	t.Run("SurroundingSpaces", func(t *testing.T) {
		encoded, err := Encode([]string{" 7", "8 ", "9", "10"}, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := encoded.Gray.GrayAt(0, 0).Y; got != 7 {
			t.Errorf("expected 7, got %d", got)
		}
	})

	t.Run("WrongCount", func(t *testing.T) {
		if _, err := Encode([]string{"0", "0", "0"}, 2); !errors.Is(err, shared.ErrInvalidGeometry) {
			t.Errorf("expected ErrInvalidGeometry, got %v", err)
		}
	})
}
