package classify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/salespackflow/internal/models"
	"github.com/Lllllllleong/salespackflow/internal/taxonomy"
)

type fakeTextSource struct {
	texts     map[int]string
	err       error
	requested []int
}

func (f *fakeTextSource) Pages(_ []byte, pages []int) (map[int]string, error) {
	f.requested = pages
	if f.err != nil {
		return nil, f.err
	}
	out := map[int]string{}
	for _, p := range pages {
		if text, ok := f.texts[p]; ok {
			out[p] = text
		}
	}
	return out, nil
}

func TestNormalize(t *testing.T) {
	result := &models.ClassificationResult{Pages: []models.PageClassification{
		{PageNumber: 2, DocumentType: "passport", Confidence: 40},
		{PageNumber: 1, DocumentType: "id_front", Confidence: 99},
	}, Groups: []models.SuggestedGroup{{DocumentType: "passport", Pages: []int{1, 2}}}}

	require.NoError(t, Normalize(result, 2, taxonomy.Default(), nil))
	assert.Equal(t, 1, result.Pages[0].PageNumber)
	assert.Equal(t, "id_front", result.Pages[0].DocumentType)
	assert.Equal(t, taxonomy.Other, result.Pages[1].DocumentType)
	assert.Equal(t, taxonomy.Other, result.Groups[0].DocumentType)
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	cases := map[string]*models.ClassificationResult{
		"nil":        nil,
		"count":      {Pages: []models.PageClassification{{PageNumber: 1, DocumentType: "other"}}},
		"duplicate":  {Pages: []models.PageClassification{{PageNumber: 1, DocumentType: "other"}, {PageNumber: 1, DocumentType: "other"}}},
		"confidence": {Pages: []models.PageClassification{{PageNumber: 1, DocumentType: "other"}, {PageNumber: 2, DocumentType: "other", Confidence: 101}}},
		"negative":   {Pages: []models.PageClassification{{PageNumber: 1, DocumentType: "other", Confidence: -1}, {PageNumber: 2, DocumentType: "other"}}},
	}
	for name, result := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, Normalize(result, 2, taxonomy.Default(), nil), ErrClassification)
		})
	}
}

func TestFillMissingText(t *testing.T) {
	result := &models.ClassificationResult{Pages: []models.PageClassification{
		{PageNumber: 1, RawText: "from oracle", HasText: true},
		{PageNumber: 2},
		{PageNumber: 3},
	}}
	src := &fakeTextSource{texts: map[int]string{2: "local text"}}

	require.NoError(t, FillMissingText(result, nil, src))
	assert.Equal(t, []int{2, 3}, src.requested)
	assert.Equal(t, "from oracle", result.Pages[0].RawText)
	assert.Equal(t, "local text", result.Pages[1].RawText)
	assert.True(t, result.Pages[1].HasText)
	assert.False(t, result.Pages[2].HasText)

	texts := PageTexts(result)
	assert.Equal(t, models.PageTexts{1: "from oracle", 2: "local text"}, texts)
}

func TestFillMissingTextError(t *testing.T) {
	result := &models.ClassificationResult{Pages: []models.PageClassification{{PageNumber: 1}}}
	err := FillMissingText(result, nil, &fakeTextSource{err: errors.New("boom")})
	assert.Error(t, err)
	assert.NoError(t, FillMissingText(result, nil, nil))
}

func TestMajorityName(t *testing.T) {
	assert.Equal(t, "", MajorityName(nil))
	assert.Equal(t, "Jane Doe", MajorityName([]string{"", "Jane Doe", "J Doe", "Jane Doe"}))
	assert.Equal(t, "A", MajorityName([]string{"A", "B"}))
}

func TestGroupRuns(t *testing.T) {
	pages := []models.PageClassification{
		{PageNumber: 1, DocumentType: "consent_form"},
		{PageNumber: 2, DocumentType: "consent_form"},
		{PageNumber: 3, DocumentType: "consent_form"},
		{PageNumber: 4, DocumentType: "id_front"},
	}
	groups := GroupRuns(pages, []bool{true, false, true, true})

	require.Len(t, groups, 3)
	assert.Equal(t, []int{1, 2}, groups[0].Pages)
	assert.Equal(t, []int{3}, groups[1].Pages)
	assert.Equal(t, "id_front", groups[2].DocumentType)
	assert.Nil(t, GroupRuns(nil, nil))
}
