// Package scenes builds the scenes texcube can show.
package scenes

import (
	"fmt"
	"log/slog"
	"path"

	"github.com/taigrr/texcube/pkg/config"
	"github.com/taigrr/texcube/pkg/loader"
	"github.com/taigrr/texcube/pkg/models"
	"github.com/taigrr/texcube/pkg/render"
)

// Door is a unit cube wearing one of the door textures.
type Door struct {
	Scene    *render.Scene
	Mesh     *render.Mesh
	Map      *render.Texture
	Textures map[string]*render.Texture
}

// NewDoor requests every door texture and builds the cube around the
// configured map. It returns before any texture has loaded; the map fills in
// when its load finishes. Only geometry failures are returned.
func NewDoor(cfg config.Config, l *loader.TextureLoader, logger *slog.Logger) (*Door, error) {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Door{Textures: make(map[string]*render.Texture, len(config.DoorMaps))}
	for _, name := range config.DoorMaps {
		d.Textures[name] = l.Load(doorFile(name), loadOptions(name, logger)...)
	}

	d.Textures["color"].ColorSpace = render.SRGBColorSpace

	d.Map = d.Textures[cfg.Map]
	if d.Map == nil {
		return nil, fmt.Errorf("%w: map %q", config.ErrInvalid, cfg.Map)
	}
	if err := cfg.Texture.Apply(d.Map); err != nil {
		return nil, fmt.Errorf("apply texture settings: %w", err)
	}

	geom, err := doorGeometry(cfg)
	if err != nil {
		return nil, err
	}

	d.Mesh = render.NewMesh(geom, render.NewBasicMaterial(d.Map))
	d.Mesh.Name = "door"
	d.Scene = render.NewScene()
	d.Scene.Add(d.Mesh)
	return d, nil
}

func doorFile(name string) string {
	return path.Join("door", name+".jpg")
}

// loadOptions attaches logging callbacks to the alpha map only.
func loadOptions(name string, logger *slog.Logger) []loader.Option {
	if name != "alpha" {
		return nil
	}
	log := logger.With("texture", name)
	return []loader.Option{
		loader.OnLoad(func(*render.Texture) { log.Info("load finished") }),
		loader.OnProgress(func(read, total int64) { log.Debug("progress", "read", read, "total", total) }),
		loader.OnError(func(err error) { log.Error("error", "err", err) }),
	}
}

func doorGeometry(cfg config.Config) (render.Geometry, error) {
	p, err := cfg.GeometryPath()
	if err != nil {
		return nil, err
	}
	if p == "" {
		return models.NewBox(1, 1, 1), nil
	}

	mesh, err := models.LoadGLB(p)
	if err != nil {
		return nil, fmt.Errorf("load geometry: %w", err)
	}
	mesh.FitUnit(1)
	return mesh, nil
}
