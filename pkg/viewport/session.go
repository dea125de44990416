// Package viewport ties a host surface to a camera, a renderer and orbit
// controls, and drives the per-frame update and render cycle.
package viewport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/taigrr/texcube/pkg/controls"
	"github.com/taigrr/texcube/pkg/math3d"
	"github.com/taigrr/texcube/pkg/render"
)

// MaxPixelRatio caps the host's device pixel ratio.
const MaxPixelRatio = 2

var (
	// ErrInvalidSize is returned when the host reports a non-positive size.
	ErrInvalidSize = errors.New("invalid viewport size")
	// ErrInitialized is returned by a second Initialize.
	ErrInitialized = errors.New("viewport already initialized")
)

// Size is a viewport size in logical pixels.
type Size struct {
	Width, Height int
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Aspect returns Width / Height.
func (s Size) Aspect() float64 {
	return float64(s.Width) / float64(s.Height)
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Host is the platform a session draws into.
type Host interface {
	Size() Size
	DevicePixelRatio() float64
	// Resized delivers new sizes. A nil channel never fires.
	Resized() <-chan Size
	// Input delivers user input. A nil channel never fires.
	Input() <-chan controls.Input
}

// Renderer draws a scene into the host.
type Renderer interface {
	SetSize(width, height int)
	SetPixelRatio(ratio float64)
	Render(scene *render.Scene, camera *render.PerspectiveCamera)
}

// Controls moves the camera between frames.
type Controls interface {
	Update()
	HandleInput(in controls.Input) bool
}

// CameraConfig sets the camera built by Initialize.
type CameraConfig struct {
	FOV      float64 // degrees
	Near     float64
	Far      float64
	Position math3d.Vec3
}

// DefaultCamera is a 75 degree camera at (1, 1, 1).
func DefaultCamera() CameraConfig {
	return CameraConfig{FOV: 75, Near: 0.1, Far: 100, Position: math3d.V3(1, 1, 1)}
}

// Session owns the viewport size, camera, renderer and controls. All methods
// must be called from one goroutine; Run is that goroutine in production.
type Session struct {
	host     Host
	renderer Renderer
	scene    *render.Scene
	loop     Loop
	logger   *slog.Logger

	cameraCfg   CameraConfig
	newControls func(*render.PerspectiveCamera) Controls
	onInput     func(controls.Input)

	state      State
	size       Size
	pixelRatio float64
	camera     *render.PerspectiveCamera
	controls   Controls
	pending    FrameID
	frames     int
}

// Option configures a Session.
type Option func(*Session)

// WithCamera overrides DefaultCamera.
func WithCamera(cfg CameraConfig) Option {
	return func(s *Session) { s.cameraCfg = cfg }
}

// WithControls sets the factory called by Initialize to attach controls to
// the new camera.
func WithControls(fn func(*render.PerspectiveCamera) Controls) Option {
	return func(s *Session) { s.newControls = fn }
}

// WithInputHandler receives input the controls do not consume.
func WithInputHandler(fn func(controls.Input)) Option {
	return func(s *Session) { s.onInput = fn }
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// DampedOrbit returns a controls factory for damped orbit controls around
// the origin.
func DampedOrbit(fps int, damping bool) func(*render.PerspectiveCamera) Controls {
	return func(cam *render.PerspectiveCamera) Controls {
		c := controls.NewOrbitControls(cam, fps)
		c.EnableDamping = damping
		return c
	}
}

// New creates an uninitialized session.
func New(host Host, renderer Renderer, scene *render.Scene, loop Loop, opts ...Option) *Session {
	s := &Session{
		host:        host,
		renderer:    renderer,
		scene:       scene,
		loop:        loop,
		logger:      slog.Default(),
		cameraCfg:   DefaultCamera(),
		newControls: DampedOrbit(60, true),
		pixelRatio:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Frames returns how many times Tick has run while Running.
func (s *Session) Frames() int { return s.frames }

// Size returns the current viewport size.
func (s *Session) Size() Size { return s.size }

// PixelRatio returns the ratio last applied to the renderer.
func (s *Session) PixelRatio() float64 { return s.pixelRatio }

// Camera returns the session camera, nil before Initialize.
func (s *Session) Camera() *render.PerspectiveCamera { return s.camera }

// Controls returns the attached controls, nil before Initialize.
func (s *Session) Controls() Controls { return s.controls }

// Initialize builds the camera and controls for size and sizes the renderer.
func (s *Session) Initialize(size Size) error {
	if s.state != StateUninitialized {
		return ErrInitialized
	}
	if !size.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidSize, size)
	}

	cfg := s.cameraCfg
	s.size = size
	s.camera = render.NewPerspectiveCamera(cfg.FOV, size.Aspect(), cfg.Near, cfg.Far)
	s.camera.SetPosition(cfg.Position)
	s.camera.LookAt(math3d.Zero3())

	if s.newControls != nil {
		s.controls = s.newControls(s.camera)
	}

	s.renderer.SetSize(size.Width, size.Height)
	s.applyPixelRatio()

	s.state = StateRunning
	s.logger.Info("viewport initialized", "size", size.String(), "pixel_ratio", s.pixelRatio)
	return nil
}

// OnResize updates the camera aspect and renderer for a new size. Calling it
// again with the same size changes nothing.
func (s *Session) OnResize(size Size) {
	if !size.Valid() {
		s.logger.Warn("ignoring invalid viewport size", "size", size.String())
		return
	}
	s.size = size
	if s.state != StateRunning {
		return
	}

	s.camera.Aspect = size.Aspect()
	s.camera.UpdateProjectionMatrix()
	s.renderer.SetSize(size.Width, size.Height)
	s.applyPixelRatio()
	s.logger.Debug("viewport resized", "size", size.String(), "aspect", s.camera.Aspect)
}

func (s *Session) applyPixelRatio() {
	s.pixelRatio = cappedPixelRatio(s.host.DevicePixelRatio())
	s.renderer.SetPixelRatio(s.pixelRatio)
}

// cappedPixelRatio limits ratio to MaxPixelRatio. Unusable values mean 1.
func cappedPixelRatio(ratio float64) float64 {
	if ratio <= 0 || math.IsNaN(ratio) {
		return 1
	}
	return math.Min(ratio, MaxPixelRatio)
}

// Tick advances the controls, renders one frame and requests the next.
func (s *Session) Tick() {
	if s.state != StateRunning {
		s.logger.Warn("tick before initialize")
		return
	}

	if s.controls != nil {
		s.controls.Update()
	}
	s.renderer.Render(s.scene, s.camera)
	s.frames++
	s.pending = s.loop.RequestFrame(s.Tick)
}

// Run initializes the session from the host if needed and drives frames
// until ctx is done. Resize and input events are handled between frames.
func (s *Session) Run(ctx context.Context) error {
	if s.state == StateUninitialized {
		if err := s.Initialize(s.host.Size()); err != nil {
			return err
		}
	}

	resized := s.host.Resized()
	input := s.host.Input()

	s.Tick()
	for {
		select {
		case <-ctx.Done():
			s.loop.CancelFrame(s.pending)
			s.logger.Debug("viewport stopped", "frames", s.frames)
			return nil

		case size, ok := <-resized:
			if !ok {
				resized = nil
				continue
			}
			s.OnResize(size)

		case in, ok := <-input:
			if !ok {
				input = nil
				continue
			}
			s.handleInput(in)

		case <-s.loop.Ticks():
			s.loop.Dispatch()
		}
	}
}

func (s *Session) handleInput(in controls.Input) {
	if s.controls != nil && s.controls.HandleInput(in) {
		return
	}
	if s.onInput != nil {
		s.onInput(in)
	}
}
