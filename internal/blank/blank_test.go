package blank

import (
	"bytes"
	"image"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/salespackflow/internal/models"
	"github.com/Lllllllleong/salespackflow/internal/pdftest"
)

func readContext(t *testing.T, pages ...pdftest.Page) *model.Context {
	t.Helper()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdftest.Build(pages...)), model.NewDefaultConfiguration())
	require.NoError(t, err)
	return ctx
}

func TestIsBlank(t *testing.T) {
	d := NewDetector(nil)
	cases := map[string]bool{
		"":                          true,
		"   \n\t ":                  true,
		"ab":                        true,
		" . \n":                     true,
		"  é  ":                     true,
		"abc":                       false,
		"é ü":                       false,
		"VEHICLE SALE AGREEMENT":    false,
		"Name: J. Smith\nDOB: 1990": false,
	}
	for text, want := range cases {
		assert.Equal(t, want, d.IsBlank(text), "%q", text)
	}
}

func TestIsBlankThreshold(t *testing.T) {
	d := NewDetector(nil)
	d.MinTextLength = 10
	assert.True(t, d.IsBlank("too short"))
	assert.False(t, d.IsBlank("long enough"))
}

func TestWhiteShare(t *testing.T) {
	assert.Equal(t, 1.0, WhiteShare(pdftest.Gray(10, 10, 255), DefaultWhiteLevel))
	assert.Equal(t, 0.0, WhiteShare(pdftest.Gray(10, 10, 20), DefaultWhiteLevel))

	half := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range half.Pix {
		if i < 50 {
			half.Pix[i] = 255
		}
	}
	assert.InDelta(t, 0.5, WhiteShare(half, DefaultWhiteLevel), 0.001)
	assert.Equal(t, 1.0, WhiteShare(image.NewGray(image.Rect(0, 0, 0, 0)), DefaultWhiteLevel))
}

func TestWhiteShareSamplesLargeImages(t *testing.T) {
	share := WhiteShare(pdftest.Gray(2000, 2000, 250), DefaultWhiteLevel)
	assert.Equal(t, 1.0, share)
}

func TestScanOperators(t *testing.T) {
	painted, xobj, err := scanOperators(strings.NewReader("q Q"))
	require.NoError(t, err)
	assert.False(t, painted)
	assert.False(t, xobj)

	painted, _, err = scanOperators(strings.NewReader("BT /F1 12 Tf 72 720 Td (Hi) Tj ET"))
	require.NoError(t, err)
	assert.True(t, painted)

	painted, xobj, err = scanOperators(strings.NewReader("q 612 0 0 792 0 0 cm /Im0 Do Q"))
	require.NoError(t, err)
	assert.False(t, painted)
	assert.True(t, xobj)

	painted, _, err = scanOperators(strings.NewReader("0 0 m 100 100 l S"))
	require.NoError(t, err)
	assert.True(t, painted)
}

func TestIsBlankPagePrefersText(t *testing.T) {
	d := NewDetector(nil)
	texts := models.PageTexts{1: "", 2: "Consent to credit check"}

	// Known text wins even when no document context is available.
	assert.True(t, d.IsBlankPage(nil, 1, texts))
	assert.False(t, d.IsBlankPage(nil, 2, texts))
}

func TestIsBlankPageInspectsWhenTextUnavailable(t *testing.T) {
	ctx := readContext(t,
		pdftest.Page{},
		pdftest.Page{Text: "Driver licence"},
		pdftest.Page{Image: pdftest.Gray(64, 64, 255)},
		pdftest.Page{Image: pdftest.Gray(64, 64, 30)},
	)
	d := NewDetector(nil)

	assert.True(t, d.IsBlankPage(ctx, 1, nil), "empty page")
	assert.False(t, d.IsBlankPage(ctx, 2, nil), "text layer")
	assert.True(t, d.IsBlankPage(ctx, 3, nil), "white scan")
	assert.False(t, d.IsBlankPage(ctx, 4, nil), "dark scan")
}

func TestIsBlankPageKeepsUnreadablePages(t *testing.T) {
	d := NewDetector(nil)
	assert.False(t, d.IsBlankPage(nil, 1, nil))
}
