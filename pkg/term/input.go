package term

import (
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/taigrr/texcube/pkg/controls"
)

// keyStep is the rotation one key press applies, in pointer units.
const keyStep = 4

type eventKind int

const (
	eventIgnored eventKind = iota
	eventInput
	eventQuit
)

// translator turns terminal events into controls input. It tracks the
// mouse button so drags become rotations.
type translator struct {
	dragging     bool
	lastX, lastY int
}

func (t *translator) translate(ev uv.Event) (controls.Input, eventKind) {
	switch ev := ev.(type) {
	case uv.KeyPressEvent:
		return translateKey(ev)

	case uv.MouseClickEvent:
		t.dragging = true
		t.lastX, t.lastY = ev.X, ev.Y

	case uv.MouseReleaseEvent:
		t.dragging = false

	case uv.MouseMotionEvent:
		if !t.dragging {
			break
		}
		dx, dy := ev.X-t.lastX, ev.Y-t.lastY
		t.lastX, t.lastY = ev.X, ev.Y
		if dx == 0 && dy == 0 {
			break
		}
		// Cells are two pixels tall.
		return controls.Rotate(float64(dx), float64(dy*2)), eventInput

	case uv.MouseWheelEvent:
		switch ev.Button {
		case uv.MouseWheelUp:
			return controls.Dolly(1), eventInput
		case uv.MouseWheelDown:
			return controls.Dolly(-1), eventInput
		}
	}
	return controls.Input{}, eventIgnored
}

func translateKey(ev uv.KeyPressEvent) (controls.Input, eventKind) {
	switch {
	case ev.MatchString("escape"), ev.MatchString("ctrl+c"):
		return controls.Input{}, eventQuit
	case ev.MatchString("r"):
		return controls.Input{Action: controls.ActionReset}, eventInput
	case ev.MatchString("?"), ev.MatchString("shift+/"):
		return controls.Input{Action: controls.ActionToggleHUD}, eventInput
	case ev.MatchString("w", "up"):
		return controls.Rotate(0, -keyStep), eventInput
	case ev.MatchString("s", "down"):
		return controls.Rotate(0, keyStep), eventInput
	case ev.MatchString("a", "left"):
		return controls.Rotate(-keyStep, 0), eventInput
	case ev.MatchString("d", "right"):
		return controls.Rotate(keyStep, 0), eventInput
	case ev.MatchString("+", "="):
		return controls.Dolly(1), eventInput
	case ev.MatchString("-", "_"):
		return controls.Dolly(-1), eventInput
	}
	return controls.Input{}, eventIgnored
}
