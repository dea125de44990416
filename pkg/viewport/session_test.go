package viewport

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"math"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/taigrr/texcube/pkg/controls"
	"github.com/taigrr/texcube/pkg/math3d"
	"github.com/taigrr/texcube/pkg/models"
	"github.com/taigrr/texcube/pkg/render"
)

type mockHost struct {
	size    Size
	dpr     float64
	resized chan Size
	input   chan controls.Input
}

func newMockHost(w, h int, dpr float64) *mockHost {
	return &mockHost{
		size:    Size{w, h},
		dpr:     dpr,
		resized: make(chan Size),
		input:   make(chan controls.Input),
	}
}

func (h *mockHost) Size() Size { return h.size }
func (h *mockHost) DevicePixelRatio() float64 { return h.dpr }
func (h *mockHost) Resized() <-chan Size { return h.resized }
func (h *mockHost) Input() <-chan controls.Input { return h.input }

// mockRenderer records every call.
type mockRenderer struct {
	sizes   []Size
	ratios  []float64
	renders int
	cameras []*render.PerspectiveCamera
	notify  chan struct{}
}

func (r *mockRenderer) SetSize(w, h int) {
	r.sizes = append(r.sizes, Size{w, h})
}

func (r *mockRenderer) SetPixelRatio(ratio float64) {
	r.ratios = append(r.ratios, ratio)
}

func (r *mockRenderer) Render(scene *render.Scene, camera *render.PerspectiveCamera) {
	r.renders++
	r.cameras = append(r.cameras, camera)
	if r.notify != nil {
		r.notify <- struct{}{}
	}
}

// countingLoop counts frame requests.
type countingLoop struct {
	*FrameLoop
	requests int
	cancels  []FrameID
}

func newCountingLoop() *countingLoop {
	return &countingLoop{FrameLoop: NewFrameLoopWithTicks(nil)}
}

func (l *countingLoop) RequestFrame(fn func()) FrameID {
	l.requests++
	return l.FrameLoop.RequestFrame(fn)
}

func (l *countingLoop) CancelFrame(id FrameID) {
	l.cancels = append(l.cancels, id)
	l.FrameLoop.CancelFrame(id)
}

// mockControls records updates and input.
type mockControls struct {
	updates int
	inputs  []controls.Input
}

func (c *mockControls) Update() { c.updates++ }

func (c *mockControls) HandleInput(in controls.Input) bool {
	c.inputs = append(c.inputs, in)
	return in.Action == controls.ActionRotate
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(host *mockHost, r Renderer, loop Loop, opts ...Option) *Session {
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(host, r, render.NewScene(), loop, opts...)
}

func TestInitialize(t *testing.T) {
	host := newMockHost(160, 90, 1)
	r := &mockRenderer{}
	s := newTestSession(host, r, newCountingLoop())

	if s.State() != StateUninitialized {
		t.Fatalf("State() = %v, want uninitialized", s.State())
	}
	if err := s.Initialize(host.Size()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if s.State() != StateRunning {
		t.Errorf("State() = %v, want running", s.State())
	}

	cam := s.Camera()
	if cam.FOV != 75 || cam.Near != 0.1 || cam.Far != 100 {
		t.Errorf("camera = fov %v near %v far %v, want 75/0.1/100", cam.FOV, cam.Near, cam.Far)
	}
	if !cam.Position.ApproxEqual(math3d.V3(1, 1, 1), 1e-9) {
		t.Errorf("camera position = %v, want (1,1,1)", cam.Position)
	}
	if cam.Aspect != 160.0/90.0 {
		t.Errorf("Aspect = %v, want %v", cam.Aspect, 160.0/90.0)
	}
	if len(r.sizes) != 1 || r.sizes[0] != (Size{160, 90}) {
		t.Errorf("renderer sizes = %v, want [160x90]", r.sizes)
	}
	if s.Controls() == nil {
		t.Error("default controls should be attached")
	}

	if err := s.Initialize(host.Size()); !errors.Is(err, ErrInitialized) {
		t.Errorf("second Initialize = %v, want ErrInitialized", err)
	}
}

func TestInitializeInvalidSize(t *testing.T) {
	tests := []Size{{0, 10}, {10, 0}, {-4, 3}, {0, 0}}

	for _, size := range tests {
		t.Run(size.String(), func(t *testing.T) {
			s := newTestSession(newMockHost(1, 1, 1), &mockRenderer{}, newCountingLoop())
			if err := s.Initialize(size); !errors.Is(err, ErrInvalidSize) {
				t.Errorf("Initialize(%v) = %v, want ErrInvalidSize", size, err)
			}
			if s.State() != StateUninitialized {
				t.Error("failed Initialize should not start the session")
			}
		})
	}
}

func TestOnResizeAspectMatchesViewport(t *testing.T) {
	sizes := []Size{{1, 1}, {160, 90}, {80, 48}, {1, 1000}, {1000, 1}, {333, 77}, {1920, 1080}}

	s := newTestSession(newMockHost(10, 10, 1), &mockRenderer{}, newCountingLoop())
	if err := s.Initialize(Size{10, 10}); err != nil {
		t.Fatal(err)
	}

	for _, size := range sizes {
		t.Run(size.String(), func(t *testing.T) {
			s.OnResize(size)
			want := float64(size.Width) / float64(size.Height)
			if got := s.Camera().Aspect; got != want {
				t.Errorf("Aspect = %v, want %v", got, want)
			}
			if s.Size() != size {
				t.Errorf("Size() = %v, want %v", s.Size(), size)
			}
			proj := math3d.Perspective(math3d.Radians(75), want, 0.1, 100)
			if !s.Camera().ProjectionMatrix().ApproxEqual(proj, 1e-12) {
				t.Error("projection matrix not rebuilt after resize")
			}
		})
	}
}

func TestOnResizeIdempotent(t *testing.T) {
	r := render.NewRenderer(nil)
	s := newTestSession(newMockHost(10, 10, 1.5), r, newCountingLoop())
	if err := s.Initialize(Size{10, 10}); err != nil {
		t.Fatal(err)
	}

	s.OnResize(Size{120, 40})
	fb := r.Framebuffer()
	proj := s.Camera().ProjectionMatrix()
	ratio := s.PixelRatio()

	s.OnResize(Size{120, 40})
	if r.Framebuffer() != fb {
		t.Error("repeated resize reallocated the framebuffer")
	}
	if s.Camera().ProjectionMatrix() != proj {
		t.Error("repeated resize changed the projection")
	}
	if s.PixelRatio() != ratio {
		t.Errorf("PixelRatio() = %v, want %v", s.PixelRatio(), ratio)
	}
	if w, h := r.Size(); w != 120 || h != 40 {
		t.Errorf("renderer size = %dx%d, want 120x40", w, h)
	}
}

func TestOnResizeIgnoresInvalidSize(t *testing.T) {
	s := newTestSession(newMockHost(10, 10, 1), &mockRenderer{}, newCountingLoop())
	if err := s.Initialize(Size{40, 20}); err != nil {
		t.Fatal(err)
	}
	s.OnResize(Size{0, 20})
	if s.Size() != (Size{40, 20}) || s.Camera().Aspect != 2 {
		t.Errorf("invalid resize applied: size %v aspect %v", s.Size(), s.Camera().Aspect)
	}
}

func TestOnResizeBeforeInitialize(t *testing.T) {
	r := &mockRenderer{}
	s := newTestSession(newMockHost(10, 10, 1), r, newCountingLoop())
	s.OnResize(Size{30, 10})
	if s.Size() != (Size{30, 10}) {
		t.Errorf("Size() = %v, want 30x10", s.Size())
	}
	if len(r.sizes) != 0 {
		t.Error("renderer should not be touched before Initialize")
	}
}

func TestPixelRatioCapped(t *testing.T) {
	tests := []struct {
		host float64
		want float64
	}{
		{1, 1},
		{1.5, 1.5},
		{2, 2},
		{3, 2},
		{0, 1},
		{-2, 1},
	}

	for _, tc := range tests {
		host := newMockHost(10, 10, tc.host)
		r := &mockRenderer{}
		s := newTestSession(host, r, newCountingLoop())
		if err := s.Initialize(Size{10, 10}); err != nil {
			t.Fatal(err)
		}
		s.OnResize(Size{20, 10})

		if s.PixelRatio() != tc.want {
			t.Errorf("host %v: PixelRatio() = %v, want %v", tc.host, s.PixelRatio(), tc.want)
		}
		for _, got := range r.ratios {
			if got != tc.want {
				t.Errorf("host %v: renderer got ratio %v, want %v", tc.host, got, tc.want)
			}
		}
		if len(r.ratios) != 2 {
			t.Errorf("host %v: ratio applied %d times, want on init and resize", tc.host, len(r.ratios))
		}
	}
}

func TestTickRequestsOneFrame(t *testing.T) {
	loop := newCountingLoop()
	ctl := &mockControls{}
	r := &mockRenderer{}
	s := newTestSession(newMockHost(10, 10, 1), r, loop,
		WithControls(func(*render.PerspectiveCamera) Controls { return ctl }))
	if err := s.Initialize(Size{10, 10}); err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 5; i++ {
		s.Tick()
		if loop.requests != i {
			t.Fatalf("after %d ticks: %d frame requests, want %d", i, loop.requests, i)
		}
	}
	if ctl.updates != 5 || r.renders != 5 || s.Frames() != 5 {
		t.Errorf("updates %d renders %d frames %d, want 5 each", ctl.updates, r.renders, s.Frames())
	}
	for _, cam := range r.cameras {
		if cam != s.Camera() {
			t.Error("Render should receive the session camera")
		}
	}

	// Dispatching the requested frame ticks again and requests one more.
	loop.Dispatch()
	if loop.requests != 6 || r.renders != 6 {
		t.Errorf("after dispatch: requests %d renders %d, want 6", loop.requests, r.renders)
	}
}

func TestTickBeforeInitialize(t *testing.T) {
	var logs bytes.Buffer
	loop := newCountingLoop()
	r := &mockRenderer{}
	s := New(newMockHost(10, 10, 1), r, render.NewScene(), loop,
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	s.Tick()
	if loop.requests != 0 || r.renders != 0 || s.Frames() != 0 {
		t.Error("Tick before Initialize should do nothing")
	}
	if !strings.Contains(logs.String(), "tick before initialize") {
		t.Errorf("missing warning, got %q", logs.String())
	}
}

func TestTickWithFailedTexture(t *testing.T) {
	tex := render.NewTexture()
	tex.Fail(errors.New("404"))

	scene := render.NewScene()
	scene.Add(render.NewMesh(models.NewBox(1, 1, 1), render.NewBasicMaterial(tex)))

	r := render.NewRenderer(nil)
	s := New(newMockHost(40, 40, 1), r, scene, newCountingLoop(), WithLogger(quietLogger()))
	if err := s.Initialize(Size{40, 40}); err != nil {
		t.Fatal(err)
	}

	for range 3 {
		s.Tick()
	}
	info := r.Info()
	if info.Frames != 3 || info.MeshesDrawn != 1 || info.Triangles == 0 {
		t.Errorf("Info() = %+v, want 3 frames with the cube drawn", info)
	}
}

// quadTexture is a 2x2 texture: red, green on top; blue, white below.
func quadTexture() *render.Texture {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, render.RGB(255, 0, 0))
	img.SetRGBA(1, 0, render.RGB(0, 255, 0))
	img.SetRGBA(0, 1, render.RGB(0, 0, 255))
	img.SetRGBA(1, 1, render.RGB(255, 255, 255))
	tex := render.TextureFromImage(img)
	tex.MagFilter = render.NearestFilter
	tex.MinFilter = render.NearestFilter
	return tex
}

func renderFrames(t *testing.T, tex *render.Texture, frames int) [][]byte {
	t.Helper()
	scene := render.NewScene()
	scene.Add(render.NewMesh(models.NewBox(1, 1, 1), render.NewBasicMaterial(tex)))

	r := render.NewRenderer(nil)
	s := New(newMockHost(48, 48, 1), r, scene, newCountingLoop(),
		WithLogger(quietLogger()),
		WithControls(nil))
	if err := s.Initialize(Size{48, 48}); err != nil {
		t.Fatal(err)
	}

	var out [][]byte
	for range frames {
		s.Tick()
		out = append(out, bytes.Clone(r.Image().Pix))
	}
	return out
}

func TestTextureRotationBeforeFirstFrame(t *testing.T) {
	plain := renderFrames(t, quadTexture(), 1)

	tex := quadTexture()
	tex.Rotation = math.Pi / 2
	tex.Center = math3d.V2(0.5, 0.5)
	rotated := renderFrames(t, tex, 2)

	if bytes.Equal(plain[0], rotated[0]) {
		t.Error("rotation set before the first frame is not visible in it")
	}
	if !bytes.Equal(rotated[0], rotated[1]) {
		t.Error("rotated texture changed between frames")
	}
}

func TestRun(t *testing.T) {
	host := newMockHost(40, 20, 1)
	r := &mockRenderer{notify: make(chan struct{}, 1)}
	ticks := make(chan time.Time)
	loop := &countingLoop{FrameLoop: NewFrameLoopWithTicks(ticks)}
	ctl := &mockControls{}

	var unhandled []controls.Input
	s := newTestSession(host, r, loop,
		WithControls(func(*render.PerspectiveCamera) Controls { return ctl }),
		WithInputHandler(func(in controls.Input) { unhandled = append(unhandled, in) }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	waitRender := func() {
		t.Helper()
		select {
		case <-r.notify:
		case <-time.After(5 * time.Second):
			t.Fatal("no frame rendered")
		}
	}

	waitRender()
	ticks <- time.Now()
	waitRender()

	host.resized <- Size{80, 20}
	host.input <- controls.Rotate(1, 0)
	host.input <- controls.Input{Action: controls.ActionToggleHUD}
	ticks <- time.Now()
	waitRender()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if s.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", s.Frames())
	}
	if s.Camera().Aspect != 4 {
		t.Errorf("Aspect = %v, want 4 after resize", s.Camera().Aspect)
	}
	if len(ctl.inputs) != 2 {
		t.Errorf("controls saw %d inputs, want 2", len(ctl.inputs))
	}
	if len(unhandled) != 1 || unhandled[0].Action != controls.ActionToggleHUD {
		t.Errorf("unhandled = %v, want the HUD toggle only", unhandled)
	}
	if loop.Pending() {
		t.Error("pending frame should be cancelled on stop")
	}
	if len(loop.cancels) != 1 {
		t.Errorf("CancelFrame called %d times, want 1", len(loop.cancels))
	}
}

func TestRunInvalidHostSize(t *testing.T) {
	s := newTestSession(newMockHost(0, 0, 1), &mockRenderer{}, newCountingLoop())
	if err := s.Run(context.Background()); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Run = %v, want ErrInvalidSize", err)
	}
}

func BenchmarkTick(b *testing.B) {
	scene := render.NewScene()
	scene.Add(render.NewMesh(models.NewBox(1, 1, 1), render.NewBasicMaterial(render.TextureFromImage(
		render.NewCheckerImage(64, 64, 8, render.ColorWhite, render.ColorGray)))))
	s := New(newMockHost(120, 80, 1), render.NewRenderer(nil), scene, newCountingLoop(),
		WithLogger(quietLogger()))
	if err := s.Initialize(Size{120, 80}); err != nil {
		b.Fatal(err)
	}

	for b.Loop() {
		s.Tick()
	}
}
