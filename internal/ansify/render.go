package ansify

import (
	"context"
	"fmt"
	"html"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"ansifier-server/internal/apperr"
	"ansifier-server/internal/domain"
)

// Renderer is the built-in Converter. It decodes png/jpeg/gif, averages the
// source pixels onto a width x height cell grid, and picks a character per
// cell by luminance while keeping the cell color.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) Convert(ctx context.Context, path string, opts Options) (string, error) {
	if !opts.Format.Valid() {
		return "", apperr.New(apperr.KindConversion, "format must be one of %v", domain.Formats)
	}
	if len(opts.Characters) == 0 {
		return "", apperr.New(apperr.KindConversion, "character set must not be empty")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return "", apperr.New(apperr.KindConversion, "dimensions must be positive")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", apperr.Wrap(apperr.KindConversion, err, "open image file")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", apperr.Wrap(apperr.KindConversion, err, "the input does not appear to be a decodable image")
	}

	cells := sample(img, opts.Width, opts.Height)

	switch opts.Format {
	case domain.FormatANSIEscaped:
		return renderANSI(cells, opts.Characters), nil
	case domain.FormatHTMLCSS:
		return renderHTML(cells, opts.Characters), nil
	default:
		return "", apperr.New(apperr.KindConversion, "format must be one of %v", domain.Formats)
	}
}

type cell struct {
	r, g, b uint8
	lum     uint8
}

// sample averages source pixels into a width x height grid. Rec.601 weights
// for luminance.
func sample(img image.Image, width, height int) [][]cell {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	grid := make([][]cell, height)
	for cy := 0; cy < height; cy++ {
		grid[cy] = make([]cell, width)
		y0 := bounds.Min.Y + cy*srcH/height
		y1 := bounds.Min.Y + (cy+1)*srcH/height
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for cx := 0; cx < width; cx++ {
			x0 := bounds.Min.X + cx*srcW/width
			x1 := bounds.Min.X + (cx+1)*srcW/width
			if x1 <= x0 {
				x1 = x0 + 1
			}

			var sumR, sumG, sumB, count uint64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					pr, pg, pb, _ := img.At(x, y).RGBA()
					sumR += uint64(pr >> 8)
					sumG += uint64(pg >> 8)
					sumB += uint64(pb >> 8)
					count++
				}
			}

			avgR := uint8(sumR / count)
			avgG := uint8(sumG / count)
			avgB := uint8(sumB / count)
			lum := uint8((299*uint32(avgR) + 587*uint32(avgG) + 114*uint32(avgB)) / 1000)
			grid[cy][cx] = cell{r: avgR, g: avgG, b: avgB, lum: lum}
		}
	}
	return grid
}

// charFor maps luminance onto the character set, densest character for the
// brightest cell.
func charFor(chars []rune, lum uint8) rune {
	idx := int(255-lum) * (len(chars) - 1) / 255
	return chars[idx]
}

func renderANSI(cells [][]cell, chars []rune) string {
	var sb strings.Builder
	for _, row := range cells {
		for _, c := range row {
			fmt.Fprintf(&sb, "\x1b[38;2;%d;%d;%dm%c", c.r, c.g, c.b, charFor(chars, c.lum))
		}
		sb.WriteString("\x1b[0m\n")
	}
	return sb.String()
}

func renderHTML(cells [][]cell, chars []rune) string {
	var sb strings.Builder
	sb.WriteString(`<pre style="font-family:monospace;line-height:1;">` + "\n")
	for _, row := range cells {
		for _, c := range row {
			fmt.Fprintf(&sb, `<span style="color:#%02x%02x%02x">%s</span>`,
				c.r, c.g, c.b, html.EscapeString(string(charFor(chars, c.lum))))
		}
		sb.WriteString("<br/>\n")
	}
	sb.WriteString("</pre>\n")
	return sb.String()
}
