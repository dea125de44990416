package render

import (
	"image"
	"image/color"

	uv "github.com/charmbracelet/ultraviolet"
)

// Surface receives presented terminal cells.
type Surface interface {
	SetCell(x, y int, c *uv.Cell)
	Display() error
}

// Overlay draws on top of a presented frame before it is displayed.
type Overlay interface {
	Draw(s Surface, cols, rows int)
}

// present converts a logical image to half-block cells. Each terminal row
// represents 2 image rows: ▀ with fg=top color and bg=bottom color.
func present(s Surface, img *image.RGBA) (cols, rows int) {
	b := img.Bounds()
	cols, rows = b.Dx(), (b.Dy()+1)/2

	for row := range rows {
		topY := b.Min.Y + row*2
		botY := topY + 1

		for col := range cols {
			x := b.Min.X + col
			top := img.RGBAAt(x, topY)
			var bot color.RGBA
			if botY < b.Max.Y {
				bot = img.RGBAAt(x, botY)
			}

			s.SetCell(col, row, &uv.Cell{
				Content: "▀",
				Width:   1,
				Style: uv.Style{
					Fg: rgbaToColor(top),
					Bg: rgbaToColor(bot),
				},
			})
		}
	}
	return cols, rows
}

// rgbaToColor converts color.RGBA to Go's color.Color interface.
func rgbaToColor(c color.RGBA) color.Color {
	if c.A == 0 {
		return nil // Transparent = no color
	}
	return c
}
