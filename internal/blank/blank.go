// Package blank decides whether a scanned page carries any content worth
// keeping. The text heuristic is the contract; the page inspection fallback is
// only consulted when no text is known for a page.
package blank

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	_ "golang.org/x/image/tiff"

	"github.com/Lllllllleong/salespackflow/internal/models"
)

const (
	DefaultMinTextLength = 3
	DefaultWhiteRatio    = 0.99
	DefaultWhiteLevel    = 235
	maxSamples           = 250_000
)

// Detector judges pages blank.
type Detector struct {
	// MinTextLength is the trimmed rune count below which text counts as empty.
	MinTextLength int
	// WhiteRatio is the share of near-white pixels at which a page image is blank.
	WhiteRatio float64
	// WhiteLevel is the 8-bit luminance at or above which a pixel is near-white.
	WhiteLevel uint8
	logger     *slog.Logger
}

// NewDetector returns a Detector with the default thresholds.
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		MinTextLength: DefaultMinTextLength,
		WhiteRatio:    DefaultWhiteRatio,
		WhiteLevel:    DefaultWhiteLevel,
		logger:        logger,
	}
}

// IsBlank reports whether OCR text is too short to be meaningful.
func (d *Detector) IsBlank(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) < d.MinTextLength
}

// IsBlankPage uses the page's text when one is known and otherwise inspects
// the page in ctx. Inspection errors count as content so a page is never
// dropped because it could not be read.
func (d *Detector) IsBlankPage(ctx *model.Context, pageNr int, texts models.PageTexts) bool {
	if text, ok := texts.Lookup(pageNr); ok {
		return d.IsBlank(text)
	}
	blank, err := d.inspect(ctx, pageNr)
	if err != nil {
		d.logger.Warn("Page inspection failed, keeping page.", "page", pageNr, "error", err)
		return false
	}
	return blank
}

func (d *Detector) inspect(ctx *model.Context, pageNr int) (bool, error) {
	if ctx == nil {
		return false, fmt.Errorf("no document context for page %d", pageNr)
	}
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return false, fmt.Errorf("failed to read content of page %d: %w", pageNr, err)
	}
	painted, drawsXObject, err := scanOperators(r)
	if err != nil {
		return false, err
	}
	if painted {
		return false, nil
	}

	images, err := pdfcpu.ExtractPageImages(ctx, pageNr, false)
	if err != nil {
		return false, fmt.Errorf("failed to extract images of page %d: %w", pageNr, err)
	}
	if len(images) == 0 {
		// A Do without images draws a form XObject we cannot judge.
		return !drawsXObject, nil
	}
	for _, img := range images {
		decoded, _, err := image.Decode(img)
		if err != nil {
			return false, fmt.Errorf("failed to decode %s image %s on page %d: %w", img.FileType, img.Name, pageNr, err)
		}
		if WhiteShare(decoded, d.WhiteLevel) < d.WhiteRatio {
			return false, nil
		}
	}
	d.logger.Debug("Page images are near-white.", "page", pageNr, "images", len(images))
	return true, nil
}

// paintOperators are content stream operators that show text or paint paths.
var paintOperators = map[string]bool{
	"Tj": true, "TJ": true, "'": true, `"`: true,
	"S": true, "s": true, "f": true, "F": true, "f*": true,
	"B": true, "B*": true, "b": true, "b*": true, "sh": true, "BI": true,
}

// scanOperators reports whether a content stream paints anything besides
// XObjects, and whether it draws any XObject at all.
func scanOperators(r io.Reader) (painted, drawsXObject bool, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		tok := sc.Text()
		if paintOperators[tok] {
			return true, drawsXObject, nil
		}
		if tok == "Do" {
			drawsXObject = true
		}
	}
	if err := sc.Err(); err != nil {
		return false, false, fmt.Errorf("failed to scan content stream: %w", err)
	}
	return false, drawsXObject, nil
}

// WhiteShare returns the share of sampled pixels whose luminance is at least
// level. Large images are sampled on a grid.
func WhiteShare(img image.Image, level uint8) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 1
	}
	step := 1
	for (b.Dx()/step)*(b.Dy()/step) > maxSamples {
		step++
	}
	var white, total int
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if g.Y >= level {
				white++
			}
			total++
		}
	}
	return float64(white) / float64(total)
}
