package math3d

// Vec4 is a homogeneous position, usually in clip space after a
// model-view-projection transform.
type Vec4 struct {
	X, Y, Z, W float64
}

// V4 creates a new Vec4.
func V4(x, y, z, w float64) Vec4 {
	return Vec4{x, y, z, w}
}

// Point lifts a position to homogeneous coordinates with W = 1.
func Point(v Vec3) Vec4 {
	return Vec4{v.X, v.Y, v.Z, 1}
}

// Lerp interpolates linearly between a and b.
func (a Vec4) Lerp(b Vec4, t float64) Vec4 {
	return Vec4{
		a.X + (b.X-a.X)*t,
		a.Y + (b.Y-a.Y)*t,
		a.Z + (b.Z-a.Z)*t,
		a.W + (b.W-a.W)*t,
	}
}

// NearDistance is positive in front of the near plane (z > -w).
func (a Vec4) NearDistance() float64 {
	return a.Z + a.W
}

// NDC divides by W. A zero W returns X, Y, Z unchanged.
func (a Vec4) NDC() Vec3 {
	if a.W == 0 {
		return Vec3{a.X, a.Y, a.Z}
	}
	return Vec3{a.X / a.W, a.Y / a.W, a.Z / a.W}
}
