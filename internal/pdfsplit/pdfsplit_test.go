package pdfsplit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/salespackflow/internal/blank"
	"github.com/Lllllllleong/salespackflow/internal/models"
	"github.com/Lllllllleong/salespackflow/internal/partition"
	"github.com/Lllllllleong/salespackflow/internal/pdftest"
	"github.com/Lllllllleong/salespackflow/internal/taxonomy"
)

func numberedTexts(n int) models.PageTexts {
	texts := models.PageTexts{}
	for i := 1; i <= n; i++ {
		texts[i] = fmt.Sprintf("Page %d", i)
	}
	return texts
}

// pageLabels returns the "Page N" label drawn on every page of doc.
func pageLabels(t *testing.T, doc []byte) []string {
	t.Helper()
	ctx, err := Open(doc)
	require.NoError(t, err)
	var labels []string
	for nr := 1; nr <= ctx.PageCount; nr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, nr)
		require.NoError(t, err)
		content, err := io.ReadAll(r)
		require.NoError(t, err)
		var label string
		for i := 1; i <= 99; i++ {
			if bytes.Contains(content, []byte(fmt.Sprintf("(Page %d)", i))) {
				label = fmt.Sprintf("Page %d", i)
			}
		}
		labels = append(labels, label)
	}
	return labels
}

func build(t *testing.T, types ...string) models.Partition {
	t.Helper()
	pcs := make([]models.PageClassification, len(types))
	for i, ty := range types {
		pcs[i] = models.PageClassification{PageNumber: i + 1, DocumentType: ty, Confidence: 90}
	}
	return partition.NewBuilder(taxonomy.Default()).Build(pcs)
}

func TestSplitRoundTrip(t *testing.T) {
	source := pdftest.Build(pdftest.Numbered(6)...)
	p := build(t, "id_front", "id_back", "vehicle_sale_agreement", "vehicle_sale_agreement", "vehicle_sale_agreement", "consent_form")

	docs, err := NewSplitter(nil, nil).Split(context.Background(), source, p, numberedTexts(6))
	require.NoError(t, err)
	require.Len(t, docs, 4)

	var labels []string
	total := 0
	for i, doc := range docs {
		assert.Equal(t, p.Splits[i].ID, doc.SourceSplitID)
		assert.Equal(t, p.Splits[i].DocumentType, doc.DocumentType)
		count, err := api.PageCount(bytes.NewReader(doc.FileBytes), nil)
		require.NoError(t, err)
		assert.Equal(t, doc.PageCount, count)
		total += count
		labels = append(labels, pageLabels(t, doc.FileBytes)...)
	}
	assert.Equal(t, 6, total)
	assert.Equal(t, []string{"Page 1", "Page 2", "Page 3", "Page 4", "Page 5", "Page 6"}, labels)
	assert.Equal(t, []int{3, 4, 5}, docs[2].Pages)
}

func TestSplitDropsBlankPagesAnywhere(t *testing.T) {
	source := pdftest.Build(pdftest.Numbered(4)...)
	p := build(t, "consent_form", "consent_form", "consent_form", "consent_form")

	for blankPage := 1; blankPage <= 4; blankPage++ {
		t.Run(fmt.Sprintf("blank page %d", blankPage), func(t *testing.T) {
			texts := numberedTexts(4)
			texts[blankPage] = "  "

			docs, err := NewSplitter(nil, nil).Split(context.Background(), source, p, texts)
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, 3, docs[0].PageCount)
			assert.NotContains(t, docs[0].Pages, blankPage)
			assert.NotContains(t, pageLabels(t, docs[0].FileBytes), fmt.Sprintf("Page %d", blankPage))
		})
	}
}

func TestSplitSkipsAllBlankSplit(t *testing.T) {
	source := pdftest.Build(pdftest.Numbered(3)...)
	p := build(t, "id_front", "other", "other")
	texts := numberedTexts(3)
	texts[2], texts[3] = "", "\n"

	docs, err := NewSplitter(nil, nil).Split(context.Background(), source, p, texts)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "id_front", docs[0].DocumentType)
}

func TestSplitExcludesRemovedPages(t *testing.T) {
	source := pdftest.Build(pdftest.Numbered(3)...)
	p := build(t, "id_front", "consent_form", "consent_form")
	p = partition.NewEditor(taxonomy.Default()).RemoveSplit(p, p.Splits[1].ID)

	docs, err := NewSplitter(nil, nil).Split(context.Background(), source, p, numberedTexts(3))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, []int{1}, docs[0].Pages)
	assert.Equal(t, []string{"Page 1"}, pageLabels(t, docs[0].FileBytes))
}

func TestSplitAfterMergeAcrossGap(t *testing.T) {
	source := pdftest.Build(pdftest.Numbered(5)...)
	p := build(t, "id_front", "other", "id_back", "id_back", "consent_form")
	e := partition.NewEditor(taxonomy.Default())
	p = e.RemoveSplit(p, p.Splits[1].ID)
	p = e.MergeAdjacentSplit(p, p.Splits[0].ID, partition.Next)

	docs, err := NewSplitter(nil, nil).Split(context.Background(), source, p, numberedTexts(5))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "id_back", docs[0].DocumentType)
	assert.Equal(t, []string{"Page 1", "Page 3", "Page 4"}, pageLabels(t, docs[0].FileBytes))
}

func TestSplitUsesPageInspectionWithoutText(t *testing.T) {
	source := pdftest.Build(
		pdftest.Page{Text: "Page 1"},
		pdftest.Page{},
		pdftest.Page{Text: "Page 3"},
	)
	p := build(t, "other", "other", "other")

	docs, err := NewSplitter(blank.NewDetector(nil), nil).Split(context.Background(), source, p, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, []int{1, 3}, docs[0].Pages)
}

func TestSplitRejectsUnparsableSource(t *testing.T) {
	p := build(t, "other")
	for name, src := range map[string][]byte{"empty": {}, "garbage": []byte("This is not a PDF")} {
		t.Run(name, func(t *testing.T) {
			docs, err := NewSplitter(nil, nil).Split(context.Background(), src, p, nil)
			assert.ErrorIs(t, err, ErrSourceParse)
			assert.Nil(t, docs)
		})
	}
}

func TestSplitRejectsPageOutOfRange(t *testing.T) {
	source := pdftest.Build(pdftest.Numbered(2)...)
	p := build(t, "other", "other", "other")

	docs, err := NewSplitter(nil, nil).Split(context.Background(), source, p, numberedTexts(3))
	assert.ErrorIs(t, err, ErrPageOutOfRange)
	assert.Nil(t, docs)
}

func TestSplitHonoursCancellation(t *testing.T) {
	source := pdftest.Build(pdftest.Numbered(2)...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSplitter(nil, nil).Split(ctx, source, build(t, "a", "b"), numberedTexts(2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPageCount(t *testing.T) {
	n, err := PageCount(pdftest.Build(pdftest.Numbered(7)...))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
