// Package render is a small software renderer: a scene of unlit textured
// meshes drawn through a perspective camera into a framebuffer, then presented
// as half-block terminal cells.
package render

import (
	"math"

	"github.com/taigrr/texcube/pkg/math3d"
)

// Stats counts the work done since the last Begin.
type Stats struct {
	MeshesTested int // Meshes tested against the frustum
	MeshesCulled int // Meshes culled (not rendered)
	MeshesDrawn  int // Meshes that passed culling
	Triangles    int // Front-facing triangles rasterized
}

// Rasterizer draws meshes into a framebuffer with a depth buffer.
type Rasterizer struct {
	fb      *Framebuffer
	zbuffer []float64

	viewProj math3d.Mat4
	frustum  Frustum

	Stats                  Stats
	DisableBackfaceCulling bool // If true, render both sides of triangles
}

// NewRasterizer creates a rasterizer drawing into fb.
func NewRasterizer(fb *Framebuffer) *Rasterizer {
	r := &Rasterizer{fb: fb, viewProj: math3d.Identity()}
	r.Resize()
	return r
}

// Resize resizes the depth buffer to match the framebuffer.
func (r *Rasterizer) Resize() {
	if r.fb == nil {
		r.zbuffer = nil
		return
	}
	r.zbuffer = make([]float64, r.fb.Width*r.fb.Height)
}

// SetFramebuffer switches the output target and resizes the depth buffer.
func (r *Rasterizer) SetFramebuffer(fb *Framebuffer) {
	r.fb = fb
	r.Resize()
}

// ClearDepth clears the Z-buffer (call before each frame).
func (r *Rasterizer) ClearDepth() {
	n := len(r.zbuffer)
	if n == 0 {
		return
	}
	r.zbuffer[0] = math.MaxFloat64
	for i := 1; i < n; i *= 2 {
		copy(r.zbuffer[i:], r.zbuffer[:i])
	}
}

// Begin captures the camera matrices and frustum for the following draws and
// resets Stats.
func (r *Rasterizer) Begin(camera *PerspectiveCamera) {
	r.viewProj = camera.ViewProjectionMatrix()
	r.frustum = NewFrustumFromMatrix(r.viewProj)
	r.Stats = Stats{}
}

// IsVisible tests if a world-space AABB intersects the current frustum.
func (r *Rasterizer) IsVisible(worldBounds AABB) bool {
	return r.frustum.IntersectAABB(worldBounds)
}

func (r *Rasterizer) getDepth(x, y int) float64 {
	if x < 0 || x >= r.fb.Width || y < 0 || y >= r.fb.Height {
		return math.MaxFloat64
	}
	return r.zbuffer[y*r.fb.Width+x]
}

func (r *Rasterizer) setDepth(x, y int, z float64) {
	if x < 0 || x >= r.fb.Width || y < 0 || y >= r.fb.Height {
		return
	}
	r.zbuffer[y*r.fb.Width+x] = z
}

// clipVertex is a vertex after the model-view-projection transform.
type clipVertex struct {
	pos math3d.Vec4
	uv  math3d.Vec2
}

func lerpClip(a, b clipVertex, t float64) clipVertex {
	return clipVertex{
		pos: a.pos.Lerp(b.pos, t),
		uv:  a.uv.Add(b.uv.Sub(a.uv).Scale(t)),
	}
}

// shader holds per-draw material state.
type shader struct {
	base       linear
	tex        sampler
	textured   bool
	texW, texH float64
	cull       bool
}

func (s *shader) shade(u, v, lod float64) Color {
	col := s.base
	if s.textured {
		col = col.mul(toLinear(s.tex.Sample(u, v, lod), s.tex.colorSpace))
	}
	out := col.encode()
	out.A = 255
	return out
}

// DrawMesh renders one mesh. Meshes whose geometry provides bounds are
// frustum culled first. The material's texture is snapshotted once per call,
// so a texture populated by another goroutine shows from the next draw on.
func (r *Rasterizer) DrawMesh(m *Mesh) {
	if r.fb == nil || m == nil || !m.Visible || m.Geometry == nil {
		return
	}

	transform := m.Matrix()
	if bounded, ok := m.Geometry.(BoundedGeometry); ok {
		r.Stats.MeshesTested++
		lo, hi := bounded.GetBounds()
		if !r.IsVisible(AABB{Min: lo, Max: hi}.Transform(transform)) {
			r.Stats.MeshesCulled++
			return
		}
	}
	r.Stats.MeshesDrawn++

	mat := m.Material
	if mat == nil {
		mat = &BasicMaterial{Color: ColorWhite}
	}
	mvp := r.viewProj.Mul(transform)

	if mat.Wireframe {
		r.drawWireframe(m.Geometry, mvp, mat.Color)
		return
	}

	sh := shader{
		base: toLinear(mat.Color, SRGBColorSpace),
		cull: !mat.DoubleSided && !r.DisableBackfaceCulling,
	}
	if mat.Map != nil {
		sh.tex, sh.textured = mat.Map.sampler()
		if sh.textured {
			sh.texW, sh.texH = sh.tex.baseSize()
		}
	}

	geom := m.Geometry
	for i := range geom.TriangleCount() {
		face := geom.GetFace(i)
		var tri [3]clipVertex
		for k := range 3 {
			p, _, uv := geom.GetVertex(face[k])
			tri[k].pos = mvp.MulVec4(math3d.Point(p))
			if sh.textured {
				// Affine, so it commutes with interpolation.
				uv = sh.tex.uv.MulVec2(uv)
			}
			tri[k].uv = uv
		}
		r.drawClipped(tri, &sh)
	}
}

// drawClipped clips a triangle against the near plane (z >= -w) and
// rasterizes what remains.
func (r *Rasterizer) drawClipped(tri [3]clipVertex, sh *shader) {
	var d [3]float64
	inside := 0
	for i, v := range tri {
		d[i] = v.pos.NearDistance()
		if d[i] >= 0 {
			inside++
		}
	}

	switch inside {
	case 0:
		return
	case 3:
		r.rasterize(tri, sh)
		return
	}

	var poly [4]clipVertex
	n := 0
	for i := range 3 {
		j := (i + 1) % 3
		if d[i] >= 0 {
			poly[n] = tri[i]
			n++
		}
		if (d[i] >= 0) != (d[j] >= 0) {
			poly[n] = lerpClip(tri[i], tri[j], d[i]/(d[i]-d[j]))
			n++
		}
	}
	for k := 1; k+1 < n; k++ {
		r.rasterize([3]clipVertex{poly[0], poly[k], poly[k+1]}, sh)
	}
}

func (r *Rasterizer) rasterize(tri [3]clipVertex, sh *shader) {
	width, height := r.fb.Width, r.fb.Height

	var sx, sy, sz, invW [3]float64
	for i, v := range tri {
		if v.pos.W <= 0 {
			return
		}
		invW[i] = 1 / v.pos.W
		sx[i] = (v.pos.X*invW[i] + 1) * 0.5 * float64(width)
		sy[i] = (1 - v.pos.Y*invW[i]) * 0.5 * float64(height) // Y flipped
		sz[i] = v.pos.Z * invW[i]
	}

	area := (sx[1]-sx[0])*(sy[2]-sy[0]) - (sy[1]-sy[0])*(sx[2]-sx[0])
	if area == 0 {
		return
	}
	if area < 0 && sh.cull {
		return // Back-facing
	}

	minX := max(0, int(math.Floor(min3(sx[0], sx[1], sx[2]))))
	maxX := min(width-1, int(math.Ceil(max3(sx[0], sx[1], sx[2]))))
	minY := max(0, int(math.Floor(min3(sy[0], sy[1], sy[2]))))
	maxY := min(height-1, int(math.Ceil(max3(sy[0], sy[1], sy[2]))))
	if minX > maxX || minY > maxY {
		return
	}
	r.Stats.Triangles++

	// Barycentric weights are affine in screen space: b_i = ea_i*x + eb_i*y + ec_i.
	var ea, eb, ec [3]float64
	invArea := 1 / area
	for i := range 3 {
		j, k := (i+1)%3, (i+2)%3
		ea[i] = -(sy[k] - sy[j]) * invArea
		eb[i] = (sx[k] - sx[j]) * invArea
		ec[i] = ((sy[k]-sy[j])*sx[j] - (sx[k]-sx[j])*sy[j]) * invArea
	}

	// Screen-space gradients of the perspective-correct numerators and
	// denominator, used for the mip level.
	var qx, qy, ux, uy, vx, vy float64
	for i := range 3 {
		qx += ea[i] * invW[i]
		qy += eb[i] * invW[i]
		ux += ea[i] * invW[i] * tri[i].uv.X
		uy += eb[i] * invW[i] * tri[i].uv.X
		vx += ea[i] * invW[i] * tri[i].uv.Y
		vy += eb[i] * invW[i] * tri[i].uv.Y
	}

	for y := minY; y <= maxY; y++ {
		py := float64(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float64(x) + 0.5

			b0 := ea[0]*px + eb[0]*py + ec[0]
			b1 := ea[1]*px + eb[1]*py + ec[1]
			b2 := ea[2]*px + eb[2]*py + ec[2]
			if b0 < 0 || b1 < 0 || b2 < 0 {
				continue
			}

			z := b0*sz[0] + b1*sz[1] + b2*sz[2]
			if z > 1 || z >= r.getDepth(x, y) {
				continue
			}

			w0, w1, w2 := b0*invW[0], b1*invW[1], b2*invW[2]
			q := w0 + w1 + w2
			if q <= 0 {
				continue
			}
			u := (w0*tri[0].uv.X + w1*tri[1].uv.X + w2*tri[2].uv.X) / q
			v := (w0*tri[0].uv.Y + w1*tri[1].uv.Y + w2*tri[2].uv.Y) / q

			lod := math.Inf(-1)
			if sh.textured {
				dudx, dudy := (ux-u*qx)/q*sh.texW, (uy-u*qy)/q*sh.texW
				dvdx, dvdy := (vx-v*qx)/q*sh.texH, (vy-v*qy)/q*sh.texH
				rho2 := math.Max(dudx*dudx+dvdx*dvdx, dudy*dudy+dvdy*dvdy)
				lod = 0.5 * math.Log2(rho2)
			}

			r.setDepth(x, y, z)
			r.fb.SetPixel(x, y, sh.shade(u, v, lod))
		}
	}
}

// drawWireframe draws every triangle edge without depth testing.
func (r *Rasterizer) drawWireframe(g Geometry, mvp math3d.Mat4, c Color) {
	for i := range g.TriangleCount() {
		face := g.GetFace(i)
		var clip [3]math3d.Vec4
		for k := range 3 {
			p, _, _ := g.GetVertex(face[k])
			clip[k] = mvp.MulVec4(math3d.Point(p))
		}
		for k := range 3 {
			r.drawLine(clip[k], clip[(k+1)%3], c)
		}
	}
}

// drawLine projects a clip-space segment and draws the visible part.
func (r *Rasterizer) drawLine(a, b math3d.Vec4, c Color) {
	da, db := a.NearDistance(), b.NearDistance()
	switch {
	case da < 0 && db < 0:
		return
	case da < 0:
		a = a.Lerp(b, da/(da-db))
	case db < 0:
		b = b.Lerp(a, db/(db-da))
	}
	if a.W <= 0 || b.W <= 0 {
		return
	}

	w, h := float64(r.fb.Width), float64(r.fb.Height)
	x0 := (a.X/a.W + 1) * 0.5 * w
	y0 := (1 - a.Y/a.W) * 0.5 * h
	x1 := (b.X/b.W + 1) * 0.5 * w
	y1 := (1 - b.Y/b.W) * 0.5 * h

	x0, y0, x1, y1, ok := clipSegment(x0, y0, x1, y1, 0, 0, w-1, h-1)
	if !ok {
		return
	}
	r.fb.DrawLine(int(x0), int(y0), int(x1), int(y1), c)
}

// clipSegment clips a 2D segment to a rectangle (Liang-Barsky).
func clipSegment(x0, y0, x1, y1, xmin, ymin, xmax, ymax float64) (float64, float64, float64, float64, bool) {
	t0, t1 := 0.0, 1.0
	dx, dy := x1-x0, y1-y0
	edges := [4][2]float64{
		{-dx, x0 - xmin},
		{dx, xmax - x0},
		{-dy, y0 - ymin},
		{dy, ymax - y0},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return 0, 0, 0, 0, false
			}
			t0 = math.Max(t0, t)
		} else {
			if t < t0 {
				return 0, 0, 0, 0, false
			}
			t1 = math.Min(t1, t)
		}
	}
	return x0 + t0*dx, y0 + t0*dy, x0 + t1*dx, y0 + t1*dy, true
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}
