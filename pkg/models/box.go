package models

import (
	"github.com/taigrr/texcube/pkg/math3d"
)

// NewBox builds an axis-aligned box centered on the origin with one quad
// per side. Each side carries its own four vertices so every face maps the
// full [0,1] UV square, with V=1 along the face's top edge. Sides are
// emitted in the order +X, -X, +Y, -Y, +Z, -Z.
func NewBox(width, height, depth float64) *Mesh {
	mesh := NewMesh("Box")

	// Axis indices for plane construction: 0=X, 1=Y, 2=Z.
	const x, y, z = 0, 1, 2

	buildPlane(mesh, z, y, x, -1, -1, depth, height, width)  // +X
	buildPlane(mesh, z, y, x, 1, -1, depth, height, -width)  // -X
	buildPlane(mesh, x, z, y, 1, 1, width, depth, height)    // +Y
	buildPlane(mesh, x, z, y, 1, -1, width, depth, -height)  // -Y
	buildPlane(mesh, x, y, z, 1, -1, width, height, depth)   // +Z
	buildPlane(mesh, x, y, z, -1, -1, width, height, -depth) // -Z

	mesh.CalculateBounds()
	return mesh
}

// buildPlane appends one side of a box. u and v select the axes spanned by
// the side, w the axis it faces; udir and vdir orient the texture on it.
func buildPlane(mesh *Mesh, u, v, w int, udir, vdir, width, height, depth float64) {
	base := len(mesh.Vertices)

	normalSign := 1.0
	if depth < 0 {
		normalSign = -1
	}

	for iy := range 2 {
		for ix := range 2 {
			var pos, normal [3]float64
			pos[u] = (float64(ix)*width - width/2) * udir
			pos[v] = (float64(iy)*height - height/2) * vdir
			pos[w] = depth / 2
			normal[w] = normalSign

			mesh.Vertices = append(mesh.Vertices, MeshVertex{
				Position: math3d.V3(pos[0], pos[1], pos[2]),
				Normal:   math3d.V3(normal[0], normal[1], normal[2]),
				UV:       math3d.V2(float64(ix), 1-float64(iy)),
			})
		}
	}

	// Corners: a top-left, b bottom-left, c bottom-right, d top-right.
	a := base
	b := base + 2
	c := base + 3
	d := base + 1

	// The rasterizer treats clockwise triangles as front-facing.
	mesh.Faces = append(mesh.Faces,
		Face{V: [3]int{a, d, b}},
		Face{V: [3]int{b, d, c}},
	)
}
