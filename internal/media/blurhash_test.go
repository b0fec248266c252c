package media

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
)

func filled(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestBlurhash(t *testing.T) {
	tests := []struct {
		name   string
		img    image.Image
		cx, cy int
		want   string
		dc     string
	}{
		{"black", filled(8, 6, color.Black), 4, 3, "L00000" + strings.Repeat("fQ", 11), "0000"},
		{"red", filled(8, 6, color.RGBA{R: 255, A: 255}), 4, 3, "", "TI:j"},
		{"single component", filled(3, 3, color.Black), 1, 1, "000000", "0000"},
		{"large image sampled", filled(500, 300, color.Black), 4, 3, "L00000" + strings.Repeat("fQ", 11), "0000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Blurhash(tt.img, tt.cx, tt.cy)
			require.NoError(t, err)
			assert.Len(t, got, 6+2*(tt.cx*tt.cy-1))
			assert.Equal(t, tt.dc, got[2:6])
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			}
		})
	}

	red, err := Blurhash(filled(8, 6, color.RGBA{R: 255, A: 255}), 4, 3)
	require.NoError(t, err)
	blue, err := Blurhash(filled(8, 6, color.RGBA{B: 255, A: 255}), 4, 3)
	require.NoError(t, err)
	assert.NotEqual(t, red, blue)
}

func TestBlurhashRejectsBadInput(t *testing.T) {
	_, err := Blurhash(filled(2, 2, color.Black), 0, 3)
	assert.Equal(t, errors.CategoryValidation, errors.GetCategory(err))
	_, err = Blurhash(filled(2, 2, color.Black), 4, 10)
	assert.Equal(t, errors.CategoryValidation, errors.GetCategory(err))
	_, err = Blurhash(image.NewRGBA(image.Rect(0, 0, 0, 0)), 4, 3)
	assert.Equal(t, errors.CategoryValidation, errors.GetCategory(err))
}
