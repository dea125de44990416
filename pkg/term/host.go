// Package term hosts a viewport in a terminal using ultraviolet. Each cell
// shows two vertical pixels, so the logical viewport is cols x rows*2.
package term

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	uv "github.com/charmbracelet/ultraviolet"
	"github.com/taigrr/texcube/pkg/controls"
	"github.com/taigrr/texcube/pkg/viewport"
)

const (
	mouseAnyEventOn  = "\x1b[?1003h"
	mouseSGROn       = "\x1b[?1006h"
	mouseAnyEventOff = "\x1b[?1003l"
	mouseSGROff      = "\x1b[?1006l"
)

// Host is a viewport.Host and render.Surface backed by the terminal.
type Host struct {
	term   *uv.Terminal
	dpr    float64
	logger *slog.Logger

	mu         sync.Mutex
	cols, rows int

	resized chan viewport.Size
	input   chan controls.Input
	keys    translator
}

// New creates a host for the process terminal. dpr is reported as the
// device pixel ratio.
func New(dpr float64, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		term:    uv.DefaultTerminal(),
		dpr:     dpr,
		logger:  logger,
		resized: make(chan viewport.Size, 1),
		input:   make(chan controls.Input, 64),
	}
}

// Start switches the terminal to the alternate screen with mouse tracking.
func (h *Host) Start() error {
	cols, rows, err := h.term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}
	if err := h.term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}

	h.term.EnterAltScreen()
	h.term.HideCursor()
	h.term.Resize(cols, rows)

	fmt.Fprint(os.Stdout, mouseAnyEventOn)
	fmt.Fprint(os.Stdout, mouseSGROn)

	h.mu.Lock()
	h.cols, h.rows = cols, rows
	h.mu.Unlock()
	h.logger.Debug("terminal started", "cols", cols, "rows", rows)
	return nil
}

// Close restores the terminal.
func (h *Host) Close() error {
	fmt.Fprint(os.Stdout, mouseAnyEventOff)
	fmt.Fprint(os.Stdout, mouseSGROff)
	h.term.ExitAltScreen()
	h.term.ShowCursor()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.term.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown terminal: %w", err)
	}
	return nil
}

// Size returns the viewport size in logical pixels.
func (h *Host) Size() viewport.Size {
	h.mu.Lock()
	defer h.mu.Unlock()
	return cellsToSize(h.cols, h.rows)
}

func cellsToSize(cols, rows int) viewport.Size {
	return viewport.Size{Width: cols, Height: rows * 2}
}

// DevicePixelRatio returns the configured ratio.
func (h *Host) DevicePixelRatio() float64 {
	return h.dpr
}

// Resized delivers terminal size changes.
func (h *Host) Resized() <-chan viewport.Size {
	return h.resized
}

// Input delivers translated key and mouse events.
func (h *Host) Input() <-chan controls.Input {
	return h.input
}

// SetCell draws one cell into the screen buffer.
func (h *Host) SetCell(x, y int, c *uv.Cell) {
	h.mu.Lock()
	h.term.SetCell(x, y, c)
	h.mu.Unlock()
}

// Display flushes the screen buffer to the terminal.
func (h *Host) Display() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.term.Display()
}

// Pump reads terminal events until ctx is done, forwarding sizes and input.
// quit is called when the user asks to exit.
func (h *Host) Pump(ctx context.Context, quit func()) error {
	events := h.term.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			h.handle(ctx, ev, quit)
		}
	}
}

func (h *Host) handle(ctx context.Context, ev uv.Event, quit func()) {
	if ev, ok := ev.(uv.WindowSizeEvent); ok {
		h.mu.Lock()
		h.cols, h.rows = ev.Width, ev.Height
		h.term.Erase()
		h.term.Resize(ev.Width, ev.Height)
		h.mu.Unlock()

		size := cellsToSize(ev.Width, ev.Height)
		// Only the latest size matters.
		select {
		case <-h.resized:
		default:
		}
		select {
		case h.resized <- size:
		case <-ctx.Done():
		}
		return
	}

	in, kind := h.keys.translate(ev)
	switch kind {
	case eventQuit:
		quit()
	case eventInput:
		select {
		case h.input <- in:
		default:
			h.logger.Debug("input dropped", "action", in.Action)
		}
	}
}
