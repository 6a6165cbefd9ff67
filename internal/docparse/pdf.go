// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docparse

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/pdiddy/persona-engine/pkg/types"
)

// PDFParser extracts styled text blocks from PDF files.
type PDFParser struct {
	// LineTolerance is the maximum baseline difference, in points, for two
	// glyphs to share a line (default 2).
	LineTolerance float64
}

// Parse opens the PDF at path and returns one Page per PDF page. Pages the
// library cannot decode are returned empty rather than failing the
// document.
func (p *PDFParser) Parse(ctx context.Context, path string) (types.Document, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	tol := p.LineTolerance
	if tol <= 0 {
		tol = 2
	}

	doc := types.Document{ID: filepath.Base(path)}
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return types.Document{}, err
		}
		page := reader.Page(i)
		out := types.Page{Number: i}
		if !page.V.IsNull() {
			texts, err := pageTexts(page)
			if err == nil {
				out.Blocks = buildBlocks(texts, tol)
			}
		}
		doc.Pages = append(doc.Pages, out)
	}
	if numPages == 0 {
		return types.Document{}, fmt.Errorf("pdf has no pages")
	}
	return doc, nil
}

// pageTexts reads the glyph runs of a page. The library panics on some
// malformed content streams; that is reported as an error.
func pageTexts(page pdflib.Page) (texts []pdflib.Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoding page content: %v", r)
		}
	}()
	return page.Content().Text, nil
}

// line is a run of glyphs sharing a baseline.
type line struct {
	text   string
	y      float64
	x0, x1 float64
	sizes  map[float64]int
	fonts  map[string]int
}

func (l *line) dominantSize() float64 {
	best, bestN := 0.0, -1
	for s, n := range l.sizes {
		if n > bestN || (n == bestN && s > best) {
			best, bestN = s, n
		}
	}
	return best
}

func (l *line) dominantFont() string {
	best, bestN := "", -1
	for f, n := range l.fonts {
		if n > bestN || (n == bestN && f < best) {
			best, bestN = f, n
		}
	}
	return best
}

// groupLines clusters glyphs whose baselines lie within tol of the first
// glyph of the line. Lines come top of page first (PDF y grows upwards).
func groupLines(texts []pdflib.Text, tol float64) [][]pdflib.Text {
	sorted := make([]pdflib.Text, 0, len(texts))
	for _, t := range texts {
		if t.S != "" {
			sorted = append(sorted, t)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var groups [][]pdflib.Text
	var baseY float64
	for _, t := range sorted {
		if n := len(groups); n == 0 || math.Abs(t.Y-baseY) > tol {
			groups = append(groups, []pdflib.Text{t})
			baseY = t.Y
			continue
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], t)
	}
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool { return g[i].X < g[j].X })
	}
	return groups
}

// makeLine joins the glyphs of one line, inserting spaces at visible gaps.
func makeLine(glyphs []pdflib.Text) *line {
	l := &line{y: glyphs[0].Y, x0: glyphs[0].X, sizes: map[float64]int{}, fonts: map[string]int{}}
	var b strings.Builder
	lastEnd := glyphs[0].X
	for i, t := range glyphs {
		if i > 0 {
			gap := t.X - lastEnd
			s := b.String()
			if gap > 0.15*math.Max(t.FontSize, 1) && !strings.HasSuffix(s, " ") && !strings.HasPrefix(t.S, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
		size := math.Round(t.FontSize*2) / 2
		n := len([]rune(strings.TrimSpace(t.S)))
		l.sizes[size] += n
		l.fonts[t.Font] += n
		lastEnd = t.X + t.W
		if lastEnd > l.x1 {
			l.x1 = lastEnd
		}
	}
	l.text = strings.Join(strings.Fields(b.String()), " ")
	return l
}

// buildBlocks groups glyph runs into lines by baseline and merges adjacent
// lines with the same style into blocks.
func buildBlocks(texts []pdflib.Text, tol float64) []types.Block {
	var lines []*line
	for _, g := range groupLines(texts, tol) {
		lines = append(lines, makeLine(g))
	}

	var blocks []types.Block
	var prevY float64
	for _, l := range lines {
		text := l.text
		if text == "" {
			continue
		}
		size := l.dominantSize()
		font := l.dominantFont()
		flags := fontFlags(font)
		if n := len(blocks); n > 0 {
			last := &blocks[n-1]
			gap := prevY - l.y
			if last.FontSize == size && last.Flags == flags && gap > 0 && gap <= 1.8*size {
				last.Text = joinLines(last.Text, text)
				last.BBox.Y0 = l.y
				last.BBox.X0 = math.Min(last.BBox.X0, l.x0)
				last.BBox.X1 = math.Max(last.BBox.X1, l.x1)
				prevY = l.y
				continue
			}
		}
		blocks = append(blocks, types.Block{
			Text:     text,
			FontSize: size,
			FontName: font,
			Flags:    flags,
			BBox:     types.BBox{X0: l.x0, Y0: l.y, X1: l.x1, Y1: l.y + size},
		})
		prevY = l.y
	}
	return blocks
}

// joinLines appends next to text, removing end-of-line hyphenation.
func joinLines(text, next string) string {
	if strings.HasSuffix(text, "-") && next != "" && unicode.IsLower([]rune(next)[0]) {
		return strings.TrimSuffix(text, "-") + next
	}
	return text + " " + next
}

// fontFlags infers emphasis from a PDF font name such as
// "ABCDEF+Helvetica-BoldOblique".
func fontFlags(font string) types.FontFlags {
	name := strings.ToLower(font)
	var f types.FontFlags
	for _, marker := range []string{"bold", "black", "heavy", "semibold", "demi"} {
		if strings.Contains(name, marker) {
			f |= types.FlagBold
			break
		}
	}
	if strings.Contains(name, "italic") || strings.Contains(name, "oblique") {
		f |= types.FlagItalic
	}
	return f
}
