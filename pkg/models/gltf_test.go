package models

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// writeImageGLB saves a GLB holding a single embedded PNG and no meshes.
func writeImageGLB(t *testing.T) (string, []byte) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(1, 2, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	doc := gltf.NewDocument()
	if _, err := modeler.WriteImage(doc, "door", "image/png", bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("write image: %v", err)
	}
	path := filepath.Join(t.TempDir(), "door.glb")
	if err := gltf.SaveBinary(doc, path); err != nil {
		t.Fatalf("save glb: %v", err)
	}
	return path, buf.Bytes()
}

func TestLoadGLBInvalidPath(t *testing.T) {
	_, err := LoadGLB("/nonexistent/path.glb")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestGLTFLoaderCreation(t *testing.T) {
	loader := NewGLTFLoader()
	if loader == nil {
		t.Error("NewGLTFLoader returned nil")
		return
	}
	if !loader.CalculateNormals {
		t.Error("CalculateNormals should default to true")
	}
}

func TestReadImageInvalidPath(t *testing.T) {
	_, _, err := ReadImage("/nonexistent/path.glb", 0)
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
	if errors.Is(err, ErrNoImage) {
		t.Error("open failure should not be reported as a missing image")
	}
}

func TestWiden(t *testing.T) {
	got := widen([]uint16{0, 1, 65535})
	want := []int{0, 1, 65535}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("widen()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestReadFloat32(t *testing.T) {
	// 1.0f little-endian
	if got := readFloat32([]byte{0x00, 0x00, 0x80, 0x3f}); got != 1 {
		t.Errorf("readFloat32 = %v, want 1", got)
	}
}

func TestReadImageEmbedded(t *testing.T) {
	path, want := writeImageGLB(t)

	n, err := ImageCount(path)
	if err != nil {
		t.Fatalf("ImageCount: %v", err)
	}
	if n != 1 {
		t.Errorf("ImageCount = %d, want 1", n)
	}

	data, mime, err := ReadImage(path, 0)
	if err != nil {
		t.Fatalf("ReadImage: %v", err)
	}
	if mime != "image/png" {
		t.Errorf("mime = %q, want image/png", mime)
	}
	if !bytes.Equal(data, want) {
		t.Errorf("ReadImage returned %d bytes, want the %d encoded bytes", len(data), len(want))
	}

	for _, index := range []int{-1, 1, 7} {
		if _, _, err := ReadImage(path, index); !errors.Is(err, ErrNoImage) {
			t.Errorf("ReadImage(%d) err = %v, want ErrNoImage", index, err)
		}
	}
}

func TestLoadGLBWithoutMeshes(t *testing.T) {
	path, _ := writeImageGLB(t)
	if _, err := LoadGLB(path); err == nil {
		t.Error("a GLB without triangles should not load as a mesh")
	}
}
