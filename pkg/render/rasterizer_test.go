package render

import (
	"math"
	"testing"

	"github.com/taigrr/texcube/pkg/math3d"
)

type mockVertex struct {
	pos math3d.Vec3
	uv  math3d.Vec2
}

// mockMesh implements Geometry for testing.
type mockMesh struct {
	vertices []mockVertex
	faces    [][3]int
}

func (m *mockMesh) VertexCount() int     { return len(m.vertices) }
func (m *mockMesh) TriangleCount() int   { return len(m.faces) }
func (m *mockMesh) GetFace(i int) [3]int { return m.faces[i] }
func (m *mockMesh) GetVertex(i int) (pos, normal math3d.Vec3, uv math3d.Vec2) {
	v := m.vertices[i]
	return v.pos, math3d.V3(0, 0, 1), v.uv
}

// boundedMesh adds bounds so the rasterizer frustum culls it.
type boundedMesh struct {
	mockMesh
	min, max math3d.Vec3
}

func (m *boundedMesh) GetBounds() (min, max math3d.Vec3) { return m.min, m.max }

// quadMesh is a 2x2 quad in the z=0 plane facing +Z with UVs covering [0,1].
func quadMesh() *mockMesh {
	return &mockMesh{
		vertices: []mockVertex{
			{math3d.V3(-1, 1, 0), math3d.V2(0, 1)},  // top left
			{math3d.V3(1, 1, 0), math3d.V2(1, 1)},   // top right
			{math3d.V3(1, -1, 0), math3d.V2(1, 0)},  // bottom right
			{math3d.V3(-1, -1, 0), math3d.V2(0, 0)}, // bottom left
		},
		// CW winding for front-facing (engine convention due to Y-flip)
		faces: [][3]int{{0, 1, 2}, {0, 2, 3}},
	}
}

// createTestRasterizer creates a rasterizer looking at the origin from z=10.
func createTestRasterizer(width, height int) (*Rasterizer, *Framebuffer) {
	fb := NewFramebuffer(width, height)
	fb.Clear(ColorBlack)
	camera := NewPerspectiveCamera(60, float64(width)/float64(height), 0.1, 100)
	camera.SetPosition(math3d.V3(0, 0, 10))
	camera.LookAt(math3d.Zero3())

	r := NewRasterizer(fb)
	r.ClearDepth()
	r.Begin(camera)
	return r, fb
}

func countLit(fb *Framebuffer) int {
	n := 0
	for _, c := range fb.Pixels {
		if c.R > 0 || c.G > 0 || c.B > 0 {
			n++
		}
	}
	return n
}

func colorNear(a, b Color, tol int) bool {
	return absInt(int(a.R)-int(b.R)) <= tol &&
		absInt(int(a.G)-int(b.G)) <= tol &&
		absInt(int(a.B)-int(b.B)) <= tol
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func TestDrawMeshSolid(t *testing.T) {
	r, fb := createTestRasterizer(100, 100)

	r.DrawMesh(NewMesh(quadMesh(), &BasicMaterial{Color: ColorWhite}))

	if got := fb.GetPixel(50, 50); got != ColorWhite {
		t.Errorf("center pixel = %v, want white", got)
	}
	if got := fb.GetPixel(0, 0); got != ColorBlack {
		t.Errorf("corner pixel = %v, want background", got)
	}
	if r.Stats.Triangles != 2 {
		t.Errorf("Stats.Triangles = %d, want 2", r.Stats.Triangles)
	}
}

func TestDrawMeshBackfaceCulling(t *testing.T) {
	back := quadMesh()
	for i, f := range back.faces {
		back.faces[i] = [3]int{f[0], f[2], f[1]}
	}

	t.Run("culled", func(t *testing.T) {
		r, fb := createTestRasterizer(60, 60)
		r.DrawMesh(NewMesh(back, &BasicMaterial{Color: ColorWhite}))
		if n := countLit(fb); n != 0 {
			t.Errorf("back-facing quad lit %d pixels, want 0", n)
		}
	})

	t.Run("double sided", func(t *testing.T) {
		r, fb := createTestRasterizer(60, 60)
		r.DrawMesh(NewMesh(back, &BasicMaterial{Color: ColorWhite, DoubleSided: true}))
		if countLit(fb) == 0 {
			t.Error("double sided quad should be drawn")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		r, fb := createTestRasterizer(60, 60)
		r.DisableBackfaceCulling = true
		r.DrawMesh(NewMesh(back, &BasicMaterial{Color: ColorWhite}))
		if countLit(fb) == 0 {
			t.Error("quad should be drawn with culling disabled")
		}
	})
}

func TestDrawMeshDepthTest(t *testing.T) {
	near := NewMesh(quadMesh(), &BasicMaterial{Color: RGB(255, 0, 0)})
	near.Position = math3d.V3(0, 0, 1)
	far := NewMesh(quadMesh(), &BasicMaterial{Color: RGB(0, 0, 255)})

	for _, order := range [][]*Mesh{{near, far}, {far, near}} {
		r, fb := createTestRasterizer(100, 100)
		for _, m := range order {
			r.DrawMesh(m)
		}
		if got := fb.GetPixel(50, 50); !colorNear(got, RGB(255, 0, 0), 1) {
			t.Errorf("center pixel = %v, want the nearer red quad", got)
		}
	}
}

func TestDrawMeshTextured(t *testing.T) {
	tex := TextureFromImage(quadImage())
	tex.ColorSpace = SRGBColorSpace
	tex.MagFilter = NearestFilter

	r, fb := createTestRasterizer(100, 100)
	r.DrawMesh(NewMesh(quadMesh(), NewBasicMaterial(tex)))

	// The quad spans roughly pixels 42..58.
	tests := []struct {
		name string
		x, y int
		want Color
	}{
		{"top left", 45, 45, RGB(255, 0, 0)},
		{"top right", 55, 45, RGB(0, 255, 0)},
		{"bottom left", 45, 55, RGB(0, 0, 255)},
		{"bottom right", 55, 55, RGB(255, 255, 255)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := fb.GetPixel(tc.x, tc.y); !colorNear(got, tc.want, 1) {
				t.Errorf("pixel(%d,%d) = %v, want %v", tc.x, tc.y, got, tc.want)
			}
		})
	}
}

func TestDrawMeshRotatedTexture(t *testing.T) {
	tex := TextureFromImage(quadImage())
	tex.ColorSpace = SRGBColorSpace
	tex.MagFilter = NearestFilter
	tex.Rotation = math.Pi / 2
	tex.Center = math3d.V2(0.5, 0.5)

	mesh := NewMesh(quadMesh(), NewBasicMaterial(tex))
	for frame := range 2 {
		r, fb := createTestRasterizer(100, 100)
		r.DrawMesh(mesh)
		// A quarter turn moves the top-right texel into the top-left corner.
		if got := fb.GetPixel(45, 45); !colorNear(got, RGB(0, 255, 0), 1) {
			t.Errorf("frame %d: top left pixel = %v, want green", frame, got)
		}
	}
}

func TestDrawMeshColorSpace(t *testing.T) {
	gray := RGB(128, 128, 128)
	img := NewCheckerImage(4, 4, 4, gray, gray)

	t.Run("srgb passes through", func(t *testing.T) {
		tex := TextureFromImage(img)
		tex.ColorSpace = SRGBColorSpace
		r, fb := createTestRasterizer(100, 100)
		r.DrawMesh(NewMesh(quadMesh(), NewBasicMaterial(tex)))
		if got := fb.GetPixel(50, 50); !colorNear(got, gray, 1) {
			t.Errorf("pixel = %v, want %v", got, gray)
		}
	})

	t.Run("no color space washes out", func(t *testing.T) {
		tex := TextureFromImage(img)
		r, fb := createTestRasterizer(100, 100)
		r.DrawMesh(NewMesh(quadMesh(), NewBasicMaterial(tex)))
		want := EncodeSRGB(128.0 / 255)
		if got := fb.GetPixel(50, 50); !colorNear(got, RGB(want, want, want), 1) || got.R <= 128 {
			t.Errorf("pixel = %v, want encoded gray %d", got, want)
		}
	})
}

func TestDrawMeshEmptyTexture(t *testing.T) {
	red := RGB(255, 0, 0)

	t.Run("pending", func(t *testing.T) {
		mat := &BasicMaterial{Color: red, Map: NewTexture()}
		r, fb := createTestRasterizer(100, 100)
		r.DrawMesh(NewMesh(quadMesh(), mat))
		if got := fb.GetPixel(50, 50); got != red {
			t.Errorf("pixel = %v, want material color", got)
		}
	})

	t.Run("failed", func(t *testing.T) {
		tex := NewTexture()
		tex.Fail(nil)
		r, fb := createTestRasterizer(100, 100)
		r.DrawMesh(NewMesh(quadMesh(), &BasicMaterial{Color: red, Map: tex}))
		if got := fb.GetPixel(50, 50); got != red {
			t.Errorf("pixel = %v, want material color", got)
		}
	})
}

func TestDrawMeshFrustumCulling(t *testing.T) {
	mesh := &boundedMesh{
		mockMesh: *quadMesh(),
		min:      math3d.V3(-1, -1, 0),
		max:      math3d.V3(1, 1, 0),
	}

	r, fb := createTestRasterizer(100, 100)
	visible := NewMesh(mesh, &BasicMaterial{Color: ColorWhite})
	hidden := NewMesh(mesh, &BasicMaterial{Color: ColorWhite})
	hidden.Position = math3d.V3(0, 0, 20) // behind the camera

	r.DrawMesh(visible)
	r.DrawMesh(hidden)

	if r.Stats.MeshesTested != 2 || r.Stats.MeshesCulled != 1 || r.Stats.MeshesDrawn != 1 {
		t.Errorf("Stats = %+v, want 2 tested, 1 culled, 1 drawn", r.Stats)
	}
	if countLit(fb) == 0 {
		t.Error("visible mesh should be drawn")
	}
}

func TestDrawMeshInvisible(t *testing.T) {
	r, fb := createTestRasterizer(50, 50)
	m := NewMesh(quadMesh(), &BasicMaterial{Color: ColorWhite})
	m.Visible = false
	r.DrawMesh(m)
	r.DrawMesh(nil)
	if countLit(fb) != 0 {
		t.Error("invisible mesh should not be drawn")
	}
}

func TestDrawMeshWireframe(t *testing.T) {
	r, fb := createTestRasterizer(100, 100)
	r.DrawMesh(NewMesh(quadMesh(), &BasicMaterial{Color: ColorWhite, Wireframe: true}))

	if countLit(fb) == 0 {
		t.Fatal("wireframe should draw edges")
	}
	// A point inside the first triangle, away from every edge.
	if got := fb.GetPixel(54, 46); got != ColorBlack {
		t.Errorf("interior pixel = %v, want background", got)
	}
}

func TestDrawMeshNearPlaneClipping(t *testing.T) {
	// A floor that extends behind the camera.
	floor := &mockMesh{
		vertices: []mockVertex{
			{math3d.V3(-5, -1, -10), math3d.V2(0, 1)},
			{math3d.V3(5, -1, -10), math3d.V2(1, 1)},
			{math3d.V3(5, -1, 30), math3d.V2(1, 0)},
			{math3d.V3(-5, -1, 30), math3d.V2(0, 0)},
		},
		faces: [][3]int{{0, 1, 2}, {0, 2, 3}},
	}

	r, fb := createTestRasterizer(80, 60)
	r.DisableBackfaceCulling = true
	r.DrawMesh(NewMesh(floor, &BasicMaterial{Color: ColorWhite}))

	if countLit(fb) == 0 {
		t.Error("clipped floor should still be drawn")
	}
	// The floor is below the horizon, so the top row stays empty.
	for x := range fb.Width {
		if fb.GetPixel(x, 0) != ColorBlack {
			t.Fatalf("pixel (%d,0) drawn above the horizon", x)
		}
	}
}

func TestClipSegment(t *testing.T) {
	tests := []struct {
		name               string
		x0, y0, x1, y1     float64
		ok                 bool
		wx0, wy0, wx1, wy1 float64
	}{
		{"inside", 1, 1, 5, 5, true, 1, 1, 5, 5},
		{"crosses left", -5, 5, 5, 5, true, 0, 5, 5, 5},
		{"outside", -5, -5, -1, -1, false, 0, 0, 0, 0},
		{"spans", -10, 5, 20, 5, true, 0, 5, 9, 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			x0, y0, x1, y1, ok := clipSegment(tc.x0, tc.y0, tc.x1, tc.y1, 0, 0, 9, 9)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if !ok {
				return
			}
			got := [4]float64{x0, y0, x1, y1}
			want := [4]float64{tc.wx0, tc.wy0, tc.wx1, tc.wy1}
			for i := range got {
				if math.Abs(got[i]-want[i]) > 1e-9 {
					t.Fatalf("got %v, want %v", got, want)
				}
			}
		})
	}
}

func TestRasterizerClearDepth(t *testing.T) {
	r, _ := createTestRasterizer(10, 10)

	r.setDepth(5, 5, 1.0)
	if r.getDepth(5, 5) != 1.0 {
		t.Error("setDepth/getDepth failed")
	}

	r.ClearDepth()
	if r.getDepth(5, 5) != math.MaxFloat64 {
		t.Error("ClearDepth should reset to MaxFloat64")
	}

	// Out of bounds should return MaxFloat64 and not panic
	if r.getDepth(-1, 0) != math.MaxFloat64 || r.getDepth(100, 0) != math.MaxFloat64 {
		t.Error("Out of bounds getDepth should return MaxFloat64")
	}
	r.setDepth(-1, 0, 1.0)
	r.setDepth(100, 0, 1.0)
}

func BenchmarkDrawMeshTextured(b *testing.B) {
	tex := TextureFromImage(NewCheckerImage(256, 256, 16, ColorWhite, ColorGray))
	mesh := NewMesh(quadMesh(), NewBasicMaterial(tex))
	mesh.Scale = math3d.V3(4, 4, 1)
	r, _ := createTestRasterizer(200, 200)

	for b.Loop() {
		r.ClearDepth()
		r.DrawMesh(mesh)
	}
}
