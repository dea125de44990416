// Package config holds texcube settings. Values come from Default, then an
// optional YAML file, then command line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/taigrr/texcube/pkg/math3d"
	"github.com/taigrr/texcube/pkg/render"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// DoorMaps are the door texture names, in load order. Each is loaded from
// door/<name>.jpg under the texture directory.
var DoorMaps = []string{"alpha", "height", "normal", "ambientOcclusion", "metalness", "roughness", "color"}

// Config is the full program configuration.
type Config struct {
	TextureDir string  `yaml:"texture_dir"`
	Map        string  `yaml:"map"`
	Geometry   string  `yaml:"geometry"`
	Texture    Texture `yaml:"texture"`
	FPS        int     `yaml:"fps"`
	PixelRatio float64 `yaml:"pixel_ratio"`
	Damping    bool    `yaml:"damping"`
	HUD        bool    `yaml:"hud"`
	Log        Log     `yaml:"log"`
}

// Texture holds the color map settings.
type Texture struct {
	Rotation  float64    `yaml:"rotation"` // radians
	Center    [2]float64 `yaml:"center,flow"`
	Repeat    [2]float64 `yaml:"repeat,flow"`
	Offset    [2]float64 `yaml:"offset,flow"`
	WrapS     string     `yaml:"wrap_s"`
	WrapT     string     `yaml:"wrap_t"`
	Mipmaps   bool       `yaml:"mipmaps"`
	MinFilter string     `yaml:"min_filter"`
	MagFilter string     `yaml:"mag_filter"`
}

// Log controls the log file. The terminal is owned by the viewport, so logs
// never go to stdout.
type Log struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Default returns the door demo settings: the color map rotated pi/4 around
// its center, mipmapped and clamped.
func Default() Config {
	return Config{
		TextureDir: "static/textures",
		Map:        "color",
		Geometry:   "box",
		Texture: Texture{
			Rotation:  math.Pi * 0.25,
			Center:    [2]float64{0.5, 0.5},
			Repeat:    [2]float64{1, 1},
			Offset:    [2]float64{0, 0},
			WrapS:     "clamp",
			WrapT:     "clamp",
			Mipmaps:   true,
			MinFilter: "linear-mipmap-linear",
			MagFilter: "linear",
		},
		FPS:        60,
		PixelRatio: 1,
		Damping:    true,
		Log:        Log{Level: "info"},
	}
}

// Load reads a YAML file over the defaults and validates the result. Unknown
// keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := Decode(f, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Decode reads YAML from r into cfg, keeping fields the document omits.
func Decode(r io.Reader, cfg *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate checks ranges and names.
func (c Config) Validate() error {
	var errs []error
	if c.FPS < 1 || c.FPS > 240 {
		errs = append(errs, fmt.Errorf("fps %d out of range [1, 240]", c.FPS))
	}
	if !(c.PixelRatio > 0) || c.PixelRatio > 8 {
		errs = append(errs, fmt.Errorf("pixel_ratio %v out of range (0, 8]", c.PixelRatio))
	}
	if !isDoorMap(c.Map) {
		errs = append(errs, fmt.Errorf("map %q is not one of %s", c.Map, strings.Join(DoorMaps, ", ")))
	}
	if _, err := c.GeometryPath(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseWrap(c.Texture.WrapS); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseWrap(c.Texture.WrapT); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseMinFilter(c.Texture.MinFilter); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseMagFilter(c.Texture.MagFilter); err != nil {
		errs = append(errs, err)
	}
	if c.Texture.Repeat[0] == 0 || c.Texture.Repeat[1] == 0 {
		errs = append(errs, errors.New("repeat components must be non-zero"))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func isDoorMap(name string) bool {
	for _, m := range DoorMaps {
		if m == name {
			return true
		}
	}
	return false
}

// GeometryPath returns "" for the built-in box, or the glTF file to load.
func (c Config) GeometryPath() (string, error) {
	if c.Geometry == "" || c.Geometry == "box" {
		return "", nil
	}
	switch strings.ToLower(filepath.Ext(c.Geometry)) {
	case ".glb", ".gltf":
		return c.Geometry, nil
	}
	return "", fmt.Errorf("geometry %q: want box or a .glb/.gltf file", c.Geometry)
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// Apply copies the texture settings onto tex.
func (t Texture) Apply(tex *render.Texture) error {
	wrapS, err := ParseWrap(t.WrapS)
	if err != nil {
		return err
	}
	wrapT, err := ParseWrap(t.WrapT)
	if err != nil {
		return err
	}
	minFilter, err := ParseMinFilter(t.MinFilter)
	if err != nil {
		return err
	}
	magFilter, err := ParseMagFilter(t.MagFilter)
	if err != nil {
		return err
	}

	tex.Rotation = t.Rotation
	tex.Center = math3d.V2(t.Center[0], t.Center[1])
	tex.Repeat = math3d.V2(t.Repeat[0], t.Repeat[1])
	tex.Offset = math3d.V2(t.Offset[0], t.Offset[1])
	tex.WrapS, tex.WrapT = wrapS, wrapT
	tex.GenerateMipmaps = t.Mipmaps
	tex.MinFilter, tex.MagFilter = minFilter, magFilter
	return nil
}

var wrapNames = map[string]render.Wrapping{
	"clamp":  render.ClampToEdgeWrapping,
	"repeat": render.RepeatWrapping,
	"mirror": render.MirroredRepeatWrapping,
}

var filterNames = map[string]render.Filter{
	"nearest":                render.NearestFilter,
	"linear":                 render.LinearFilter,
	"nearest-mipmap-nearest": render.NearestMipmapNearestFilter,
	"nearest-mipmap-linear":  render.NearestMipmapLinearFilter,
	"linear-mipmap-nearest":  render.LinearMipmapNearestFilter,
	"linear-mipmap-linear":   render.LinearMipmapLinearFilter,
}

// ParseWrap parses clamp, repeat or mirror.
func ParseWrap(name string) (render.Wrapping, error) {
	w, ok := wrapNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown wrap mode %q", name)
	}
	return w, nil
}

// ParseMinFilter parses any filter name.
func ParseMinFilter(name string) (render.Filter, error) {
	f, ok := filterNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown min filter %q", name)
	}
	return f, nil
}

// ParseMagFilter parses nearest or linear; magnification never uses mipmaps.
func ParseMagFilter(name string) (render.Filter, error) {
	f, ok := filterNames[strings.ToLower(name)]
	if !ok || (f != render.NearestFilter && f != render.LinearFilter) {
		return 0, fmt.Errorf("unknown mag filter %q", name)
	}
	return f, nil
}
