package render

import (
	"errors"
	"image"
	"math"
	"sync"

	"github.com/taigrr/texcube/pkg/math3d"
	xdraw "golang.org/x/image/draw"
)

// Wrapping determines how texture coordinates outside [0,1] are handled.
type Wrapping int

const (
	ClampToEdgeWrapping    Wrapping = iota // Clamp to edge
	RepeatWrapping                         // Tile the texture
	MirroredRepeatWrapping                 // Tile, mirroring every other copy
)

// Filter selects how texels are combined when sampling.
type Filter int

const (
	NearestFilter Filter = iota
	LinearFilter
	NearestMipmapNearestFilter
	NearestMipmapLinearFilter
	LinearMipmapNearestFilter
	LinearMipmapLinearFilter
)

// ErrNoImage is reported by Err for a texture that finished without image data.
var ErrNoImage = errors.New("texture has no image")

// mipLevel is one immutable level of a mip chain.
type mipLevel struct {
	w, h int
	pix  []Color
}

// Texture is a handle to image data that may arrive after the handle is
// created. The transform and sampling fields are read on every render and may
// be changed at any time from the render goroutine.
type Texture struct {
	Name string

	Rotation float64     // radians, around Center
	Center   math3d.Vec2 // pivot for Rotation, in UV space
	Repeat   math3d.Vec2
	Offset   math3d.Vec2
	WrapS    Wrapping
	WrapT    Wrapping

	GenerateMipmaps bool
	MinFilter       Filter
	MagFilter       Filter
	ColorSpace      ColorSpace
	FlipY           bool

	mu      sync.RWMutex
	levels  []mipLevel
	version int
	err     error

	ready    chan struct{}
	complete sync.Once
}

// NewTexture returns an empty, pending texture with default sampling settings.
func NewTexture() *Texture {
	return &Texture{
		Repeat:          math3d.One2(),
		WrapS:           ClampToEdgeWrapping,
		WrapT:           ClampToEdgeWrapping,
		GenerateMipmaps: true,
		MinFilter:       LinearMipmapLinearFilter,
		MagFilter:       LinearFilter,
		ColorSpace:      NoColorSpace,
		FlipY:           true,
		ready:           make(chan struct{}),
	}
}

// TextureFromImage creates a texture that is already populated.
func TextureFromImage(img image.Image) *Texture {
	t := NewTexture()
	t.SetImage(img)
	return t
}

// SetImage populates the texture in place and marks it ready. A texture only
// completes once; later calls still replace the image data.
func (t *Texture) SetImage(img image.Image) {
	levels := buildMipChain(img)

	t.mu.Lock()
	t.levels = levels
	t.err = nil
	t.version++
	t.mu.Unlock()

	t.complete.Do(func() { close(t.ready) })
}

// Fail marks the texture as permanently empty.
func (t *Texture) Fail(err error) {
	if err == nil {
		err = ErrNoImage
	}
	t.mu.Lock()
	if t.levels == nil {
		t.err = err
	}
	t.mu.Unlock()

	t.complete.Do(func() { close(t.ready) })
}

// Ready is closed once the texture has finished loading, successfully or not.
func (t *Texture) Ready() <-chan struct{} {
	return t.ready
}

// Err reports why loading failed. It is nil while pending and after success.
func (t *Texture) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// HasImage reports whether image data is present.
func (t *Texture) HasImage() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.levels) > 0
}

// Size returns the dimensions of the base level, or zero when empty.
func (t *Texture) Size() (width, height int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.levels) == 0 {
		return 0, 0
	}
	return t.levels[0].w, t.levels[0].h
}

// MipLevels returns the number of levels in the mip chain.
func (t *Texture) MipLevels() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.levels)
}

// Version increments each time image data is replaced.
func (t *Texture) Version() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// UVMatrix builds the UV transform from Offset, Repeat, Rotation and Center.
// It is recomputed from the current fields on every call.
func (t *Texture) UVMatrix() math3d.Mat3 {
	return math3d.UVTransform(t.Offset.X, t.Offset.Y, t.Repeat.X, t.Repeat.Y, t.Rotation, t.Center.X, t.Center.Y)
}

// sampler captures everything needed to sample a texture for one draw call,
// so the texture lock is held only while taking the snapshot.
type sampler struct {
	levels     []mipLevel
	uv         math3d.Mat3
	wrapS      Wrapping
	wrapT      Wrapping
	minFilter  Filter
	magFilter  Filter
	mipmaps    bool
	flipY      bool
	colorSpace ColorSpace
}

// sampler returns a snapshot of t, or false when there is no image yet.
func (t *Texture) sampler() (sampler, bool) {
	t.mu.RLock()
	levels := t.levels
	t.mu.RUnlock()
	if len(levels) == 0 {
		return sampler{}, false
	}

	return sampler{
		levels:     levels,
		uv:         t.UVMatrix(),
		wrapS:      t.WrapS,
		wrapT:      t.WrapT,
		minFilter:  t.MinFilter,
		magFilter:  t.MagFilter,
		mipmaps:    t.GenerateMipmaps && len(levels) > 1,
		flipY:      t.FlipY,
		colorSpace: t.ColorSpace,
	}, true
}

// Sample reads the texture at already-transformed coordinates. lod is the
// log2 of the texel-to-pixel ratio; values <= 0 magnify.
func (s *sampler) Sample(u, v, lod float64) Color {
	if s.flipY {
		v = 1 - v
	}
	u = wrapCoord(u, s.wrapS)
	v = wrapCoord(v, s.wrapT)

	if lod <= 0 {
		return s.sampleLevel(0, u, v, s.magFilter == LinearFilter)
	}

	switch s.minFilter {
	case NearestFilter:
		return s.sampleLevel(0, u, v, false)
	case LinearFilter:
		return s.sampleLevel(0, u, v, true)
	}

	bilinear := s.minFilter == LinearMipmapNearestFilter || s.minFilter == LinearMipmapLinearFilter
	if !s.mipmaps {
		return s.sampleLevel(0, u, v, bilinear)
	}

	maxLevel := float64(len(s.levels) - 1)
	lod = math.Min(lod, maxLevel)

	if s.minFilter == NearestMipmapNearestFilter || s.minFilter == LinearMipmapNearestFilter {
		return s.sampleLevel(int(math.Round(lod)), u, v, bilinear)
	}

	lo := int(math.Floor(lod))
	hi := min(lo+1, len(s.levels)-1)
	a := s.sampleLevel(lo, u, v, bilinear)
	if hi == lo {
		return a
	}
	b := s.sampleLevel(hi, u, v, bilinear)
	return lerpColor(a, b, lod-float64(lo))
}

// baseSize returns the dimensions of level 0.
func (s *sampler) baseSize() (float64, float64) {
	return float64(s.levels[0].w), float64(s.levels[0].h)
}

func (s *sampler) sampleLevel(level int, u, v float64, bilinear bool) Color {
	l := &s.levels[level]
	if !bilinear {
		x := min(int(u*float64(l.w)), l.w-1)
		y := min(int(v*float64(l.h)), l.h-1)
		return l.pix[y*l.w+x]
	}

	fx := u*float64(l.w) - 0.5
	fy := v*float64(l.h) - 0.5

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	x1 := wrapPixel(x0+1, l.w, s.wrapS)
	y1 := wrapPixel(y0+1, l.h, s.wrapT)
	x0 = wrapPixel(x0, l.w, s.wrapS)
	y0 = wrapPixel(y0, l.h, s.wrapT)

	top := lerpColor(l.pix[y0*l.w+x0], l.pix[y0*l.w+x1], tx)
	bot := lerpColor(l.pix[y1*l.w+x0], l.pix[y1*l.w+x1], tx)
	return lerpColor(top, bot, ty)
}

// wrapCoord applies the wrap mode to a coordinate, returning a value in [0,1].
func wrapCoord(coord float64, mode Wrapping) float64 {
	switch mode {
	case RepeatWrapping:
		return coord - math.Floor(coord)
	case MirroredRepeatWrapping:
		f := coord - 2*math.Floor(coord/2) // [0,2)
		if f > 1 {
			f = 2 - f
		}
		return f
	default:
		return clamp01(coord)
	}
}

// wrapPixel wraps a texel index for bilinear neighbours.
func wrapPixel(x, size int, mode Wrapping) int {
	switch mode {
	case RepeatWrapping:
		x %= size
		if x < 0 {
			x += size
		}
	case MirroredRepeatWrapping:
		period := 2 * size
		x %= period
		if x < 0 {
			x += period
		}
		if x >= size {
			x = period - 1 - x
		}
	default:
		if x < 0 {
			x = 0
		} else if x >= size {
			x = size - 1
		}
	}
	return x
}

// buildMipChain converts img to RGBA and downsamples it until 1x1.
func buildMipChain(img image.Image) []mipLevel {
	b := img.Bounds()
	if b.Empty() {
		return nil
	}

	base := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(base, base.Bounds(), img, b.Min, xdraw.Src)

	levels := []mipLevel{rgbaLevel(base)}
	prev := base
	for prev.Bounds().Dx() > 1 || prev.Bounds().Dy() > 1 {
		w := max(1, prev.Bounds().Dx()/2)
		h := max(1, prev.Bounds().Dy()/2)
		next := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.BiLinear.Scale(next, next.Bounds(), prev, prev.Bounds(), xdraw.Src, nil)
		levels = append(levels, rgbaLevel(next))
		prev = next
	}
	return levels
}

func rgbaLevel(img *image.RGBA) mipLevel {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	pix := make([]Color, w*h)
	for y := range h {
		row := img.Pix[y*img.Stride:]
		for x := range w {
			i := x * 4
			pix[y*w+x] = Color{R: row[i], G: row[i+1], B: row[i+2], A: row[i+3]}
		}
	}
	return mipLevel{w: w, h: h, pix: pix}
}

// NewCheckerImage creates a procedural checkerboard image.
func NewCheckerImage(width, height, checkSize int, c1, c2 Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			if (x/checkSize+y/checkSize)%2 == 0 {
				img.SetRGBA(x, y, c1)
			} else {
				img.SetRGBA(x, y, c2)
			}
		}
	}
	return img
}
