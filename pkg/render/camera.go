package render

import (
	"math"

	"github.com/taigrr/texcube/pkg/math3d"
)

// PerspectiveCamera is a pinhole camera with a vertical field of view.
//
// FOV, Aspect, Near and Far may be assigned directly; the projection matrix
// only picks them up after UpdateProjectionMatrix is called.
type PerspectiveCamera struct {
	// Position in world space
	Position math3d.Vec3

	// Orientation (Euler angles in radians)
	Pitch float64 // Rotation around X axis (look up/down)
	Yaw   float64 // Rotation around Y axis (look left/right)

	FOV    float64 // Vertical field of view in degrees
	Aspect float64 // Width / Height
	Near   float64 // Near clipping plane
	Far    float64 // Far clipping plane

	viewMatrix     math3d.Mat4
	projMatrix     math3d.Mat4
	viewProjMatrix math3d.Mat4
	viewDirty      bool
	viewProjDirty  bool
}

// NewPerspectiveCamera creates a camera at the origin looking down -Z.
// fov is the vertical field of view in degrees.
func NewPerspectiveCamera(fov, aspect, near, far float64) *PerspectiveCamera {
	c := &PerspectiveCamera{
		FOV:       fov,
		Aspect:    aspect,
		Near:      near,
		Far:       far,
		viewDirty: true,
	}
	c.UpdateProjectionMatrix()
	return c
}

// UpdateProjectionMatrix rebuilds the projection from FOV, Aspect, Near and Far.
func (c *PerspectiveCamera) UpdateProjectionMatrix() {
	c.projMatrix = math3d.Perspective(math3d.Radians(c.FOV), c.Aspect, c.Near, c.Far)
	c.viewProjDirty = true
}

// SetPosition sets the camera position.
func (c *PerspectiveCamera) SetPosition(pos math3d.Vec3) {
	c.Position = pos
	c.viewDirty = true
}

// LookAt makes the camera look at a target point.
func (c *PerspectiveCamera) LookAt(target math3d.Vec3) {
	dir := target.Sub(c.Position)
	if dir.Len() == 0 {
		return
	}
	dir = dir.Normalize()

	c.Pitch = math.Asin(math.Max(-1, math.Min(1, dir.Y)))
	c.Yaw = math.Atan2(-dir.X, -dir.Z)

	c.viewDirty = true
}

// Forward returns the forward direction vector.
func (c *PerspectiveCamera) Forward() math3d.Vec3 {
	// Forward is -Z in camera space, rotated by yaw and pitch
	return math3d.V3(
		-math.Sin(c.Yaw)*math.Cos(c.Pitch),
		math.Sin(c.Pitch),
		-math.Cos(c.Yaw)*math.Cos(c.Pitch),
	)
}

// ViewMatrix returns the view matrix.
func (c *PerspectiveCamera) ViewMatrix() math3d.Mat4 {
	if c.viewDirty {
		rot := math3d.RotateX(-c.Pitch).Mul(math3d.RotateY(-c.Yaw))
		c.viewMatrix = rot.Mul(math3d.Translate(c.Position.Negate()))
		c.viewDirty = false
		c.viewProjDirty = true
	}
	return c.viewMatrix
}

// ProjectionMatrix returns the projection matrix as of the last
// UpdateProjectionMatrix call.
func (c *PerspectiveCamera) ProjectionMatrix() math3d.Mat4 {
	return c.projMatrix
}

// ViewProjectionMatrix returns the combined view-projection matrix.
func (c *PerspectiveCamera) ViewProjectionMatrix() math3d.Mat4 {
	view := c.ViewMatrix()
	if c.viewProjDirty {
		c.viewProjMatrix = c.projMatrix.Mul(view)
		c.viewProjDirty = false
	}
	return c.viewProjMatrix
}

// Frustum returns the current view frustum.
func (c *PerspectiveCamera) Frustum() Frustum {
	return NewFrustumFromMatrix(c.ViewProjectionMatrix())
}

// WorldToScreen transforms a world point to screen coordinates.
// Returns (screenX, screenY, depth, visible).
func (c *PerspectiveCamera) WorldToScreen(worldPos math3d.Vec3, screenWidth, screenHeight int) (x, y, depth float64, visible bool) {
	clipPos := c.ViewProjectionMatrix().MulVec4(math3d.Point(worldPos))
	if clipPos.W <= 0 {
		return 0, 0, 0, false
	}

	ndc := clipPos.NDC()
	if ndc.X < -1 || ndc.X > 1 || ndc.Y < -1 || ndc.Y > 1 || ndc.Z < -1 || ndc.Z > 1 {
		return 0, 0, 0, false
	}

	x = (ndc.X + 1) * 0.5 * float64(screenWidth)
	y = (1 - ndc.Y) * 0.5 * float64(screenHeight) // Y is flipped
	return x, y, ndc.Z, true
}
