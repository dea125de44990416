// Package hud draws a status overlay on top of rendered frames: frame rate,
// viewport details and texture loading progress.
package hud

import (
	"fmt"
	"image/color"
	"io"
	"strings"
	"time"

	uv "github.com/charmbracelet/ultraviolet"
	"github.com/schollz/progressbar/v3"
	"github.com/taigrr/texcube/pkg/controls"
	"github.com/taigrr/texcube/pkg/render"
)

var (
	bgBlack  = color.RGBA{0, 0, 0, 255}
	fgWhite  = color.RGBA{255, 255, 255, 255}
	fgGreen  = color.RGBA{80, 250, 120, 255}
	fgYellow = color.RGBA{250, 220, 80, 255}
	fgCyan   = color.RGBA{80, 220, 250, 255}
	fgRed    = color.RGBA{250, 90, 90, 255}
)

// barWidth is the progress bar's saucer width in cells.
const barWidth = 20

// InfoSource reports the last rendered frame.
type InfoSource interface {
	Info() render.Info
}

// Progress reports texture loading counts.
type Progress interface {
	Counts() (loaded, total, failed int)
}

// HUD is a render.Overlay. FPS is tracked on every frame, visible or not.
type HUD struct {
	Title   string
	Visible bool

	info     InfoSource
	progress Progress
	now      func() time.Time

	fps       float64
	fpsFrames int
	fpsTime   time.Time

	bar      *progressbar.ProgressBar
	barTotal int
}

// New creates a hidden HUD.
func New(title string, info InfoSource, progress Progress) *HUD {
	return &HUD{
		Title:    title,
		info:     info,
		progress: progress,
		now:      time.Now,
		fpsTime:  time.Now(),
	}
}

// Toggle shows or hides the HUD.
func (h *HUD) Toggle() {
	h.Visible = !h.Visible
}

// HandleInput toggles the HUD on controls.ActionToggleHUD.
func (h *HUD) HandleInput(in controls.Input) {
	if in.Action == controls.ActionToggleHUD {
		h.Toggle()
	}
}

// FPS returns the frame rate measured over the last full second.
func (h *HUD) FPS() float64 {
	return h.fps
}

func (h *HUD) updateFPS() {
	h.fpsFrames++
	now := h.now()
	elapsed := now.Sub(h.fpsTime)
	if elapsed >= time.Second {
		h.fps = float64(h.fpsFrames) / elapsed.Seconds()
		h.fpsFrames = 0
		h.fpsTime = now
	}
}

// Draw implements render.Overlay.
func (h *HUD) Draw(s render.Surface, cols, rows int) {
	h.updateFPS()
	if !h.Visible || rows < 1 || cols < 1 {
		return
	}

	var info render.Info
	if h.info != nil {
		info = h.info.Info()
	}

	// Top: FPS left, title centered, triangles right.
	writeText(s, 0, 0, cols, fmt.Sprintf(" %.0f FPS ", h.fps), fgGreen)
	if h.Title != "" {
		title := " " + h.Title + " "
		writeText(s, max((cols-len(title))/2, 0), 0, cols, title, fgWhite)
	}
	tris := fmt.Sprintf(" %d tris ", info.Triangles)
	writeText(s, max(cols-len(tris), 0), 0, cols, tris, fgCyan)

	if rows < 2 {
		return
	}
	bottom := rows - 1

	// Bottom: viewport left, loading right.
	view := fmt.Sprintf(" %dx%d aspect %.2f ratio %.1f ", info.Width, info.Height, aspect(info), info.PixelRatio)
	writeText(s, 0, bottom, cols, view, fgWhite)

	status, fg := h.loadingStatus()
	if status != "" {
		writeText(s, max(cols-len([]rune(status)), 0), bottom, cols, status, fg)
	}
}

func aspect(info render.Info) float64 {
	if info.Height == 0 {
		return 0
	}
	return float64(info.Width) / float64(info.Height)
}

// loadingStatus returns a progress bar while textures load and a summary
// afterwards.
func (h *HUD) loadingStatus() (string, color.Color) {
	if h.progress == nil {
		return "", nil
	}
	loaded, total, failed := h.progress.Counts()
	if total == 0 {
		return "", nil
	}

	if loaded < total {
		return " " + h.barString(loaded, total) + " ", fgYellow
	}

	if failed > 0 {
		return fmt.Sprintf(" %d/%d textures, %d failed ", loaded, total, failed), fgRed
	}
	return fmt.Sprintf(" %d/%d textures ", loaded, total), fgWhite
}

func (h *HUD) barString(loaded, total int) string {
	if h.bar == nil || h.barTotal != total {
		h.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(io.Discard),
			progressbar.OptionSetWidth(barWidth),
			progressbar.OptionSetDescription("textures"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionSetElapsedTime(false),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		h.barTotal = total
	}
	_ = h.bar.Set(loaded)
	return barText(h.bar.String())
}

// barText returns the last line progressbar drew; it redraws in place with
// carriage returns.
func barText(s string) string {
	parts := strings.Split(s, "\r")
	for i := len(parts) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(parts[i]); line != "" {
			return line
		}
	}
	return ""
}

// writeText draws text from column x on row y, clipped to cols.
func writeText(s render.Surface, x, y, cols int, text string, fg color.Color) {
	for _, r := range text {
		if x >= cols {
			return
		}
		if x >= 0 {
			s.SetCell(x, y, &uv.Cell{
				Content: string(r),
				Width:   1,
				Style:   uv.Style{Fg: fg, Bg: bgBlack},
			})
		}
		x++
	}
}
