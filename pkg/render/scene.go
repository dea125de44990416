package render

import (
	"github.com/taigrr/texcube/pkg/math3d"
)

// Geometry is the vertex and face data a Mesh draws. *models.Mesh satisfies it.
type Geometry interface {
	VertexCount() int
	TriangleCount() int
	GetVertex(i int) (pos, normal math3d.Vec3, uv math3d.Vec2)
	GetFace(i int) [3]int
}

// BoundedGeometry extends Geometry with bounding box support for frustum culling.
type BoundedGeometry interface {
	Geometry
	GetBounds() (min, max math3d.Vec3)
}

// BasicMaterial is an unlit material: the output is Color multiplied by the
// sampled Map, if any.
type BasicMaterial struct {
	Color     Color
	Map       *Texture
	Wireframe bool
	// DoubleSided disables backface culling.
	DoubleSided bool
}

// NewBasicMaterial returns a white material using tex as its color map.
func NewBasicMaterial(tex *Texture) *BasicMaterial {
	return &BasicMaterial{Color: ColorWhite, Map: tex}
}

// Mesh pairs one geometry with one material and a transform.
type Mesh struct {
	Name     string
	Geometry Geometry
	Material *BasicMaterial

	Position math3d.Vec3
	Rotation math3d.Vec3 // Euler angles in radians, applied X then Y then Z
	Scale    math3d.Vec3
	Visible  bool
}

// NewMesh creates a visible mesh at the origin.
func NewMesh(geometry Geometry, material *BasicMaterial) *Mesh {
	return &Mesh{
		Geometry: geometry,
		Material: material,
		Scale:    math3d.V3(1, 1, 1),
		Visible:  true,
	}
}

// Matrix returns the local-to-world transform.
func (m *Mesh) Matrix() math3d.Mat4 {
	return math3d.Compose(m.Position, m.Rotation, m.Scale)
}

// Scene is a flat list of meshes drawn over a background color.
type Scene struct {
	Background Color
	meshes     []*Mesh
}

// NewScene creates an empty scene with a black background.
func NewScene() *Scene {
	return &Scene{Background: ColorBlack}
}

// Add appends meshes to the scene.
func (s *Scene) Add(meshes ...*Mesh) {
	s.meshes = append(s.meshes, meshes...)
}

// Meshes returns the meshes in draw order.
func (s *Scene) Meshes() []*Mesh {
	return s.meshes
}
