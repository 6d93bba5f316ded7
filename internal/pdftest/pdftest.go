// Package pdftest builds small in-memory PDFs for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
)

// Page describes one fixture page. Text is drawn with Helvetica; Image, when
// set, is embedded as a full-page grayscale JPEG.
type Page struct {
	Text  string
	Image image.Image
}

// Build returns a valid PDF with one page per entry.
func Build(pages ...Page) []byte {
	w := &writer{}
	w.buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	// 1 catalog, 2 page tree, 3 font, then page, content and optional image per page.
	type nums struct{ page, content, image int }
	layout := make([]nums, len(pages))
	next := 4
	kids := make([]string, len(pages))
	for i, p := range pages {
		layout[i] = nums{page: next, content: next + 1}
		next += 2
		if p.Image != nil {
			layout[i].image = next
			next++
		}
		kids[i] = fmt.Sprintf("%d 0 R", layout[i].page)
	}
	w.object(1, "<< /Type /Catalog /Pages 2 0 R >>")
	w.object(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	w.object(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, p := range pages {
		n := layout[i]

		var content strings.Builder
		resources := "/Font << /F1 3 0 R >>"
		var img []byte
		if p.Image != nil {
			var jb bytes.Buffer
			if err := jpeg.Encode(&jb, toGray(p.Image), &jpeg.Options{Quality: 90}); err != nil {
				panic(err)
			}
			img = jb.Bytes()
			resources += fmt.Sprintf(" /XObject << /Im0 %d 0 R >>", n.image)
			content.WriteString("q 612 0 0 792 0 0 cm /Im0 Do Q\n")
		}
		if p.Text != "" {
			fmt.Fprintf(&content, "BT /F1 12 Tf 72 720 Td (%s) Tj ET\n", escape(p.Text))
		}

		if content.Len() == 0 {
			content.WriteString("q Q\n")
		}
		w.object(n.page, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << %s >> /Contents %d 0 R >>", resources, n.content))
		w.stream(n.content, "", []byte(content.String()))
		if img != nil {
			b := p.Image.Bounds()
			w.stream(n.image, fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8 /Filter /DCTDecode", b.Dx(), b.Dy()), img)
		}
	}
	return w.finish(next - 1)
}

// Blank returns n pages with no content at all.
func Blank(n int) []Page {
	return make([]Page, n)
}

// Numbered returns n pages whose text is "Page <i>".
func Numbered(n int) []Page {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{Text: fmt.Sprintf("Page %d", i+1)}
	}
	return pages
}

// Gray returns a uniform w x h image of the given level.
func Gray(w, h int, level uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	return img
}

type writer struct {
	buf     bytes.Buffer
	offsets map[int]int
}

func (w *writer) object(nr int, body string) {
	if w.offsets == nil {
		w.offsets = map[int]int{}
	}
	w.offsets[nr] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", nr, body)
}

func (w *writer) stream(nr int, dict string, data []byte) {
	if w.offsets == nil {
		w.offsets = map[int]int{}
	}
	w.offsets[nr] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", nr, dict, len(data))
	w.buf.Write(data)
	w.buf.WriteString("\nendstream\nendobj\n")
}

func (w *writer) finish(maxObj int) []byte {
	xref := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n", maxObj+1)
	w.buf.WriteString("0000000000 65535 f \n")
	for nr := 1; nr <= maxObj; nr++ {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", w.offsets[nr])
	}
	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", maxObj+1, xref)
	return w.buf.Bytes()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x, y, img.At(x, y))
		}
	}
	return g
}
