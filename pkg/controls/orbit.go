// Package controls moves a camera around a target point in response to
// pointer and keyboard input.
package controls

import (
	"math"

	"github.com/charmbracelet/harmonica"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"github.com/taigrr/texcube/pkg/math3d"
	"github.com/taigrr/texcube/pkg/render"
)

const (
	minPolar = 0.01
	maxPolar = math.Pi - 0.01

	// dollyDuration is how long an eased zoom step takes, in seconds.
	dollyDuration = 0.25
	// dollyStep scales the radius per wheel notch or key press.
	dollyStep = 0.9
)

// Action identifies what an Input asks the controls to do.
type Action int

const (
	ActionNone   Action = iota
	ActionRotate        // DX, DY in pointer units
	ActionDolly         // DY > 0 moves closer, DY < 0 moves away
	ActionReset
	ActionToggleHUD
)

// Input is a host-independent input event.
type Input struct {
	Action Action
	DX, DY float64
}

// Rotate builds a rotate input.
func Rotate(dx, dy float64) Input {
	return Input{Action: ActionRotate, DX: dx, DY: dy}
}

// Dolly builds a dolly input; positive steps move toward the target.
func Dolly(steps float64) Input {
	return Input{Action: ActionDolly, DY: steps}
}

// OrbitControls keeps a camera on a sphere around Target.
//
// Rotation input adds angular velocity. Every Update applies the velocity;
// with EnableDamping a critically damped spring bleeds it off over several
// frames, otherwise it is consumed in one step.
type OrbitControls struct {
	Target        math3d.Vec3
	EnableDamping bool

	// RotateSpeed converts pointer units to radians.
	RotateSpeed float64
	MinDistance float64
	MaxDistance float64

	camera *render.PerspectiveCamera
	fps    int

	spherical math3d.Spherical
	home      math3d.Spherical

	azimuth velocity
	polar   velocity

	dolly       *gween.Tween
	dollyTarget float64
}

// velocity is one angular axis: Value decays toward 0 through a spring.
type velocity struct {
	Value  float64
	accel  float64
	spring harmonica.Spring
}

func newVelocity(fps int) velocity {
	// Frequency 4.0, damping 1.0: critically damped, no overshoot.
	return velocity{spring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 1.0)}
}

// step returns the rotation to apply this frame and decays the velocity.
func (v *velocity) step(damping bool) float64 {
	d := v.Value
	if !damping {
		v.Value, v.accel = 0, 0
		return d
	}
	v.Value, v.accel = v.spring.Update(v.Value, v.accel, 0)
	return d
}

// NewOrbitControls attaches controls to camera, orbiting the origin from the
// camera's current position. fps sets the damping spring's time step.
func NewOrbitControls(camera *render.PerspectiveCamera, fps int) *OrbitControls {
	if fps <= 0 {
		fps = 60
	}
	c := &OrbitControls{
		RotateSpeed: 0.05,
		MinDistance: 0.5,
		MaxDistance: 20,
		camera:      camera,
		fps:         fps,
		azimuth:     newVelocity(fps),
		polar:       newVelocity(fps),
	}
	c.SaveState()
	return c
}

// SaveState records the camera's current offset as the Reset position.
func (c *OrbitControls) SaveState() {
	c.spherical = math3d.SphericalFromVec3(c.camera.Position.Sub(c.Target))
	c.spherical.Phi = clamp(c.spherical.Phi, minPolar, maxPolar)
	c.home = c.spherical
	c.dollyTarget = c.spherical.Radius
}

// Reset returns the camera to the saved state and stops all motion.
func (c *OrbitControls) Reset() {
	c.spherical = c.home
	c.dollyTarget = c.home.Radius
	c.dolly = nil
	c.azimuth = newVelocity(c.fps)
	c.polar = newVelocity(c.fps)
	c.apply()
}

// Spherical returns the camera's offset from Target.
func (c *OrbitControls) Spherical() math3d.Spherical {
	return c.spherical
}

// Moving reports whether any rotation or dolly is still in progress.
func (c *OrbitControls) Moving() bool {
	const eps = 1e-4
	return math.Abs(c.azimuth.Value) > eps || math.Abs(c.polar.Value) > eps || c.dolly != nil
}

// RotateLeft adds azimuth velocity in radians per frame.
func (c *OrbitControls) RotateLeft(angle float64) {
	c.azimuth.Value += angle
}

// RotateUp adds polar velocity in radians per frame.
func (c *OrbitControls) RotateUp(angle float64) {
	c.polar.Value += angle
}

// DollyIn starts an eased move toward the target by factor scale.
// Factors below 1 move closer.
func (c *OrbitControls) DollyIn(scale float64) {
	if scale <= 0 {
		return
	}
	end := clamp(c.dollyTarget*scale, c.MinDistance, c.MaxDistance)
	if end == c.dollyTarget {
		return
	}
	c.dollyTarget = end
	c.dolly = gween.New(float32(c.spherical.Radius), float32(end), dollyDuration, ease.OutCubic)
}

// HandleInput applies one input event. It reports whether the event was
// consumed.
func (c *OrbitControls) HandleInput(in Input) bool {
	switch in.Action {
	case ActionRotate:
		c.RotateLeft(-in.DX * c.RotateSpeed)
		c.RotateUp(-in.DY * c.RotateSpeed)
	case ActionDolly:
		c.DollyIn(math.Pow(dollyStep, in.DY))
	case ActionReset:
		c.Reset()
	default:
		return false
	}
	return true
}

// Update advances one frame and moves the camera.
func (c *OrbitControls) Update() {
	c.spherical.Theta += c.azimuth.step(c.EnableDamping)
	c.spherical.Phi = clamp(c.spherical.Phi+c.polar.step(c.EnableDamping), minPolar, maxPolar)

	if c.dolly != nil {
		r, done := c.dolly.Update(1 / float32(c.fps))
		c.spherical.Radius = float64(r)
		if done {
			c.spherical.Radius = c.dollyTarget
			c.dolly = nil
		}
	}
	c.spherical.Radius = clamp(c.spherical.Radius, c.MinDistance, c.MaxDistance)

	c.apply()
}

func (c *OrbitControls) apply() {
	c.camera.SetPosition(c.Target.Add(c.spherical.Vec3()))
	c.camera.LookAt(c.Target)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
