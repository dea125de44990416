package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/taigrr/texcube/pkg/config"
	"github.com/taigrr/texcube/pkg/math3d"
)

// flags mirrors the config file. Only flags set on the command line override
// file values.
type flags struct {
	configPath string

	textureDir string
	mapName    string
	geometry   string
	rotation   float64
	center     []float64
	repeat     []float64
	offset     []float64
	wrap       string
	minFilter  string
	magFilter  string
	noMipmaps  bool
	fps        int
	pixelRatio float64
	noDamping  bool
	hud        bool
	logFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "texcube",
		Short: "Textured cube in your terminal",
		Long: "texcube loads the door texture set, wraps one texture around a cube and " +
			"renders it with orbit controls. Texture transform, wrapping and filtering " +
			"can be set from a YAML config file or flags.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	f.register(cmd.Flags())
	return cmd
}

func (f *flags) register(fs *pflag.FlagSet) {
	def := config.Default()
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	fs.StringVar(&f.textureDir, "texture-dir", def.TextureDir, "directory or URL holding door/*.jpg")
	fs.StringVar(&f.mapName, "map", def.Map, "door texture to wrap the cube in")
	fs.StringVar(&f.geometry, "geometry", def.Geometry, "box, or a .glb/.gltf file")
	fs.Float64Var(&f.rotation, "rotation", math3d.Degrees(def.Texture.Rotation), "texture rotation in degrees")
	fs.Float64SliceVar(&f.center, "center", def.Texture.Center[:], "texture rotation center u,v")
	fs.Float64SliceVar(&f.repeat, "repeat", def.Texture.Repeat[:], "texture repeat u,v")
	fs.Float64SliceVar(&f.offset, "offset", def.Texture.Offset[:], "texture offset u,v")
	fs.StringVar(&f.wrap, "wrap", def.Texture.WrapS, "wrap mode for both axes: clamp, repeat or mirror")
	fs.StringVar(&f.minFilter, "min-filter", def.Texture.MinFilter, "minification filter")
	fs.StringVar(&f.magFilter, "mag-filter", def.Texture.MagFilter, "magnification filter: nearest or linear")
	fs.BoolVar(&f.noMipmaps, "no-mipmaps", false, "disable mipmap generation")
	fs.IntVar(&f.fps, "fps", def.FPS, "target frames per second")
	fs.Float64Var(&f.pixelRatio, "pixel-ratio", def.PixelRatio, "device pixel ratio to report (capped at 2)")
	fs.BoolVar(&f.noDamping, "no-damping", false, "disable orbit damping")
	fs.BoolVar(&f.hud, "hud", def.HUD, "show the HUD at startup")
	fs.StringVar(&f.logFile, "log-file", "", "write logs to this file")
	fs.StringVar(&f.logLevel, "log-level", def.Log.Level, "log level: debug, info, warn or error")
}

// resolve builds the config from defaults, the config file and changed flags.
func (f *flags) resolve(fs *pflag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return cfg, err
		}
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	var pairErr error
	pair := func(name string, src []float64, dst *[2]float64) {
		set(name, func() {
			if len(src) != 2 {
				pairErr = fmt.Errorf("--%s wants two values, got %d", name, len(src))
				return
			}
			*dst = [2]float64{src[0], src[1]}
		})
	}

	set("texture-dir", func() { cfg.TextureDir = f.textureDir })
	set("map", func() { cfg.Map = f.mapName })
	set("geometry", func() { cfg.Geometry = f.geometry })
	set("rotation", func() { cfg.Texture.Rotation = math3d.Radians(f.rotation) })
	pair("center", f.center, &cfg.Texture.Center)
	pair("repeat", f.repeat, &cfg.Texture.Repeat)
	pair("offset", f.offset, &cfg.Texture.Offset)
	set("wrap", func() { cfg.Texture.WrapS, cfg.Texture.WrapT = f.wrap, f.wrap })
	set("min-filter", func() { cfg.Texture.MinFilter = f.minFilter })
	set("mag-filter", func() { cfg.Texture.MagFilter = f.magFilter })
	set("no-mipmaps", func() { cfg.Texture.Mipmaps = !f.noMipmaps })
	set("fps", func() { cfg.FPS = f.fps })
	set("pixel-ratio", func() { cfg.PixelRatio = f.pixelRatio })
	set("no-damping", func() { cfg.Damping = !f.noDamping })
	set("hud", func() { cfg.HUD = f.hud })
	set("log-file", func() { cfg.Log.File = f.logFile })
	set("log-level", func() { cfg.Log.Level = f.logLevel })
	if pairErr != nil {
		return cfg, fmt.Errorf("%w: %w", config.ErrInvalid, pairErr)
	}

	return cfg, cfg.Validate()
}
