package math3d

import "math"

// Mat3 is a 3x3 matrix stored in column-major order, used for 2D affine
// transforms of texture coordinates.
//
// | 0  3  6 |
// | 1  4  7 |
// | 2  5  8 |
type Mat3 [9]float64

// Identity3 returns the identity matrix.
func Identity3() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// UVTransform builds the matrix that maps mesh UVs to texture UVs:
// offset (tx, ty), repeat (sx, sy), rotation in radians around the
// pivot (cx, cy). The rotation is applied counter-clockwise in UV space.
func UVTransform(tx, ty, sx, sy, rotation, cx, cy float64) Mat3 {
	c, s := math.Cos(rotation), math.Sin(rotation)
	return Mat3{
		sx * c, -sy * s, 0,
		sx * s, sy * c, 0,
		-sx*(c*cx+s*cy) + cx + tx, -sy*(-s*cx+c*cy) + cy + ty, 1,
	}
}

// Mul multiplies two matrices: a * b.
func (a Mat3) Mul(b Mat3) Mat3 {
	var m Mat3
	for col := range 3 {
		for row := range 3 {
			var sum float64
			for k := range 3 {
				sum += a[row+k*3] * b[k+col*3]
			}
			m[row+col*3] = sum
		}
	}
	return m
}

// MulVec2 transforms a point (implicit w=1).
func (m Mat3) MulVec2(v Vec2) Vec2 {
	return Vec2{
		m[0]*v.X + m[3]*v.Y + m[6],
		m[1]*v.X + m[4]*v.Y + m[7],
	}
}

// MulDir2 transforms a direction (implicit w=0, no translation).
func (m Mat3) MulDir2(v Vec2) Vec2 {
	return Vec2{
		m[0]*v.X + m[3]*v.Y,
		m[1]*v.X + m[4]*v.Y,
	}
}

// IsIdentity reports whether m is the identity within a small tolerance.
func (m Mat3) IsIdentity() bool {
	id := Identity3()
	for i := range m {
		if math.Abs(m[i]-id[i]) > 1e-12 {
			return false
		}
	}
	return true
}
