package media

import (
	"image"
	"math"
	"strings"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
)

const (
	blurhashX = 4
	blurhashY = 3
	// blurhashSamples bounds the sampling grid per axis; placeholders need no more detail.
	blurhashSamples = 64
)

const base83Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz#$%*+,-.:;=?@[]^_{|}~"

// Blurhash encodes img as a blurhash placeholder with cx by cy components.
func Blurhash(img image.Image, cx, cy int) (string, error) {
	if cx < 1 || cx > 9 || cy < 1 || cy > 9 {
		return "", errors.ValidationError("blurhash components out of range").
			WithContext("x", cx).
			WithContext("y", cy).
			Build()
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return "", errors.ValidationError("empty image").Build()
	}

	xs, ys := samples(w), samples(h)
	linear := make([][3]float64, 0, len(xs)*len(ys))
	for _, y := range ys {
		for _, x := range xs {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			linear = append(linear, [3]float64{toLinear(r >> 8), toLinear(g >> 8), toLinear(bl >> 8)})
		}
	}

	factors := make([][3]float64, 0, cx*cy)
	for j := range cy {
		for i := range cx {
			norm := 2.0
			if i == 0 && j == 0 {
				norm = 1
			}
			var f [3]float64
			k := 0
			for _, y := range ys {
				by := math.Cos(math.Pi * float64(j) * float64(y) / float64(h))
				for _, x := range xs {
					basis := by * math.Cos(math.Pi*float64(i)*float64(x)/float64(w))
					for c := range f {
						f[c] += basis * linear[k][c]
					}
					k++
				}
			}
			scale := norm / float64(len(linear))
			for c := range f {
				f[c] *= scale
			}
			factors = append(factors, f)
		}
	}

	var sb strings.Builder
	encode83(&sb, (cx-1)+(cy-1)*9, 1)

	maxValue := 1.0
	if ac := factors[1:]; len(ac) > 0 {
		var actual float64
		for _, f := range ac {
			for _, v := range f {
				actual = math.Max(actual, math.Abs(v))
			}
		}
		quantised := max(0, min(82, int(math.Floor(actual*166-0.5))))
		maxValue = float64(quantised+1) / 166
		encode83(&sb, quantised, 1)
	} else {
		encode83(&sb, 0, 1)
	}

	dc := factors[0]
	encode83(&sb, toSRGB(dc[0])<<16|toSRGB(dc[1])<<8|toSRGB(dc[2]), 4)
	for _, f := range factors[1:] {
		q := func(v float64) int {
			return max(0, min(18, int(math.Floor(signPow(v/maxValue, 0.5)*9+9.5))))
		}
		encode83(&sb, q(f[0])*19*19+q(f[1])*19+q(f[2]), 2)
	}
	return sb.String(), nil
}

func samples(n int) []int {
	step := max(1, n/blurhashSamples)
	out := make([]int, 0, n/step+1)
	for i := 0; i < n; i += step {
		out = append(out, i)
	}
	return out
}

func encode83(sb *strings.Builder, value, length int) {
	for i := 1; i <= length; i++ {
		digit := (value / int(math.Pow(83, float64(length-i)))) % 83
		sb.WriteByte(base83Chars[digit])
	}
}

func toLinear(v uint32) float64 {
	f := float64(v) / 255
	if f <= 0.04045 {
		return f / 12.92
	}
	return math.Pow((f+0.055)/1.055, 2.4)
}

func toSRGB(v float64) int {
	v = math.Max(0, math.Min(1, v))
	if v <= 0.0031308 {
		return int(v*12.92*255 + 0.5)
	}
	return int((1.055*math.Pow(v, 1/2.4)-0.055)*255 + 0.5)
}

func signPow(v, exp float64) float64 {
	return math.Copysign(math.Pow(math.Abs(v), exp), v)
}
