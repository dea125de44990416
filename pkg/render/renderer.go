package render

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Info describes the last rendered frame.
type Info struct {
	Frames       int
	Triangles    int
	MeshesDrawn  int
	MeshesCulled int
	Width        int // logical pixels
	Height       int
	BufferWidth  int // rasterized pixels, Width * PixelRatio
	BufferHeight int
	PixelRatio   float64
}

// Renderer rasterizes a scene at Size * PixelRatio and presents the result,
// scaled back to Size, on a Surface.
type Renderer struct {
	surface  Surface
	overlays []Overlay

	width, height int
	pixelRatio    float64

	fb     *Framebuffer
	raster *Rasterizer
	hi     *image.RGBA // full resolution copy of fb, when scaling
	out    *image.RGBA // logical resolution output

	info Info
	err  error
}

// NewRenderer creates a renderer presenting to surface. surface may be nil,
// in which case frames are only rasterized.
func NewRenderer(surface Surface) *Renderer {
	r := &Renderer{
		surface:    surface,
		pixelRatio: 1,
	}
	r.fb = NewFramebuffer(0, 0)
	r.raster = NewRasterizer(r.fb)
	r.out = image.NewRGBA(image.Rect(0, 0, 0, 0))
	return r
}

// SetSize sets the logical output size. Setting the current size again does
// not reallocate.
func (r *Renderer) SetSize(width, height int) {
	width, height = max(width, 0), max(height, 0)
	if width == r.width && height == r.height {
		return
	}
	r.width, r.height = width, height
	r.allocate()
}

// SetPixelRatio sets the supersampling factor. Non-positive values mean 1.
func (r *Renderer) SetPixelRatio(ratio float64) {
	if ratio <= 0 || math.IsNaN(ratio) {
		ratio = 1
	}
	if ratio == r.pixelRatio {
		return
	}
	r.pixelRatio = ratio
	r.allocate()
}

// PixelRatio returns the current supersampling factor.
func (r *Renderer) PixelRatio() float64 {
	return r.pixelRatio
}

// Size returns the logical output size.
func (r *Renderer) Size() (width, height int) {
	return r.width, r.height
}

// Framebuffer returns the full resolution buffer of the last frame.
func (r *Renderer) Framebuffer() *Framebuffer {
	return r.fb
}

// Image returns the logical resolution image of the last frame. It is reused
// by the next Render.
func (r *Renderer) Image() *image.RGBA {
	return r.out
}

// Info returns statistics for the last rendered frame.
func (r *Renderer) Info() Info {
	return r.info
}

// Err returns the last error reported by the surface, if any.
func (r *Renderer) Err() error {
	return r.err
}

// AddOverlay registers an overlay drawn after every presented frame.
func (r *Renderer) AddOverlay(o Overlay) {
	r.overlays = append(r.overlays, o)
}

func (r *Renderer) allocate() {
	bw := int(math.Floor(float64(r.width) * r.pixelRatio))
	bh := int(math.Floor(float64(r.height) * r.pixelRatio))

	r.fb = NewFramebuffer(bw, bh)
	r.raster.SetFramebuffer(r.fb)
	r.out = image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	r.hi = nil
	if bw != r.width || bh != r.height {
		r.hi = image.NewRGBA(image.Rect(0, 0, bw, bh))
	}
}

// Render draws scene as seen by camera and presents it. Surface failures are
// kept for Err rather than returned.
func (r *Renderer) Render(scene *Scene, camera *PerspectiveCamera) {
	if scene == nil || camera == nil {
		return
	}

	r.fb.Clear(scene.Background)
	r.raster.ClearDepth()
	r.raster.Begin(camera)
	for _, m := range scene.Meshes() {
		r.raster.DrawMesh(m)
	}

	if r.hi != nil {
		r.fb.CopyTo(r.hi)
		xdraw.BiLinear.Scale(r.out, r.out.Bounds(), r.hi, r.hi.Bounds(), xdraw.Src, nil)
	} else {
		r.fb.CopyTo(r.out)
	}

	stats := r.raster.Stats
	r.info = Info{
		Frames:       r.info.Frames + 1,
		Triangles:    stats.Triangles,
		MeshesDrawn:  stats.MeshesDrawn,
		MeshesCulled: stats.MeshesCulled,
		Width:        r.width,
		Height:       r.height,
		BufferWidth:  r.fb.Width,
		BufferHeight: r.fb.Height,
		PixelRatio:   r.pixelRatio,
	}

	if r.surface == nil {
		return
	}
	cols, rows := present(r.surface, r.out)
	for _, o := range r.overlays {
		o.Draw(r.surface, cols, rows)
	}
	r.err = r.surface.Display()
}
