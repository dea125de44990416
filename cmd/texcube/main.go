// texcube - Textured cube in your terminal
// Loads the door texture set, wraps one texture around a cube and orbits it.
//
// Controls:
//
//	Mouse drag  - Orbit the camera
//	Scroll      - Dolly in/out
//	W/S/A/D     - Orbit up/down/left/right (arrow keys work too)
//	+/-         - Dolly in/out
//	R           - Reset the camera
//	?           - Toggle HUD overlay (FPS, viewport, loading progress)
//	Esc         - Quit
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/taigrr/texcube/pkg/config"
	"github.com/taigrr/texcube/pkg/hud"
	"github.com/taigrr/texcube/pkg/loader"
	"github.com/taigrr/texcube/pkg/render"
	"github.com/taigrr/texcube/pkg/scenes"
	"github.com/taigrr/texcube/pkg/term"
	"github.com/taigrr/texcube/pkg/viewport"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	if err := fang.Execute(context.Background(), newRootCmd(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// openLog returns a logger writing to cfg.File, or discarding when unset.
func openLog(cfg config.Config) (*slog.Logger, io.Closer, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Log.File == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})), f, nil
}

func run(ctx context.Context, cfg config.Config) error {
	logger, logCloser, err := openLog(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	manager := loader.NewLoadingManager(loader.WithLogger(logger))
	manager.OnStart = func(url string, loaded, total int) {
		logger.Info("loading started", "url", url)
	}
	manager.OnLoad = func() {
		_, total, failed := manager.Counts()
		logger.Info("loading finished", "total", total, "failed", failed)
	}
	textures := loader.NewTextureLoader(manager,
		loader.WithBaseDir(cfg.TextureDir),
		loader.WithContext(ctx),
		loader.WithLoaderLogger(logger),
	)

	door, err := scenes.NewDoor(cfg, textures, logger)
	if err != nil {
		return err
	}

	host := term.New(cfg.PixelRatio, logger)
	if err := host.Start(); err != nil {
		return err
	}
	defer host.Close()

	renderer := render.NewRenderer(host)
	overlay := hud.New("door: "+cfg.Map, renderer, manager)
	overlay.Visible = cfg.HUD
	renderer.AddOverlay(overlay)

	loop := viewport.NewFrameLoop(cfg.FPS)
	defer loop.Stop()

	session := viewport.New(host, renderer, door.Scene, loop,
		viewport.WithLogger(logger),
		viewport.WithControls(viewport.DampedOrbit(cfg.FPS, cfg.Damping)),
		viewport.WithInputHandler(overlay.HandleInput),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return host.Pump(gctx, cancel)
	})
	g.Go(func() error {
		defer cancel()
		return session.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := renderer.Err(); err != nil {
		return fmt.Errorf("display: %w", err)
	}
	logger.Info("stopped", "frames", session.Frames())
	return nil
}
