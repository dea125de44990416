package render

import (
	"image/color"
	"math"
)

// Color is an alias for color.RGBA for convenience.
type Color = color.RGBA

// Colors for convenience
var (
	ColorBlack = color.RGBA{0, 0, 0, 255}
	ColorWhite = color.RGBA{255, 255, 255, 255}
	ColorGray  = color.RGBA{128, 128, 128, 255}
)

// RGB creates a color from RGB values.
func RGB(r, g, b uint8) color.RGBA {
	return color.RGBA{r, g, b, 255}
}

// ColorSpace tells the renderer how to interpret texel values.
type ColorSpace int

const (
	// NoColorSpace texels are treated as linear values and encoded to sRGB
	// on output.
	NoColorSpace ColorSpace = iota
	// SRGBColorSpace texels are already sRGB encoded.
	SRGBColorSpace
)

func (c ColorSpace) String() string {
	switch c {
	case SRGBColorSpace:
		return "srgb"
	default:
		return "none"
	}
}

const encodeSteps = 4096

var (
	srgbToLinear [256]float64
	linearToSRGB [encodeSteps + 1]uint8
)

func init() {
	for i := range srgbToLinear {
		c := float64(i) / 255
		if c <= 0.04045 {
			srgbToLinear[i] = c / 12.92
		} else {
			srgbToLinear[i] = math.Pow((c+0.055)/1.055, 2.4)
		}
	}
	for i := range linearToSRGB {
		l := float64(i) / encodeSteps
		var c float64
		if l <= 0.0031308 {
			c = l * 12.92
		} else {
			c = 1.055*math.Pow(l, 1/2.4) - 0.055
		}
		linearToSRGB[i] = uint8(math.Round(c * 255))
	}
}

// DecodeSRGB converts an sRGB-encoded channel to linear [0,1].
func DecodeSRGB(v uint8) float64 {
	return srgbToLinear[v]
}

// EncodeSRGB converts a linear [0,1] channel to an sRGB-encoded byte.
func EncodeSRGB(l float64) uint8 {
	if l <= 0 {
		return 0
	}
	if l >= 1 {
		return 255
	}
	return linearToSRGB[int(l*encodeSteps+0.5)]
}

// linear holds a color in linear light.
type linear struct {
	R, G, B, A float64
}

// toLinear decodes a texel according to its color space.
func toLinear(c Color, cs ColorSpace) linear {
	if cs == SRGBColorSpace {
		return linear{srgbToLinear[c.R], srgbToLinear[c.G], srgbToLinear[c.B], float64(c.A) / 255}
	}
	return linear{float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255, float64(c.A) / 255}
}

// encode converts linear light to an sRGB output color.
func (l linear) encode() Color {
	return Color{EncodeSRGB(l.R), EncodeSRGB(l.G), EncodeSRGB(l.B), uint8(clamp01(l.A)*255 + 0.5)}
}

func (l linear) mul(o linear) linear {
	return linear{l.R * o.R, l.G * o.G, l.B * o.B, l.A * o.A}
}

// lerpColor linearly interpolates between two colors.
func lerpColor(a, b Color, t float64) Color {
	return Color{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t + 0.5),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t + 0.5),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t + 0.5),
		A: uint8(float64(a.A) + (float64(b.A)-float64(a.A))*t + 0.5),
	}
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
