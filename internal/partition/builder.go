// Package partition groups classified pages into splits and implements the
// review edits over the resulting ordered partition.
package partition

import (
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/Lllllllleong/salespackflow/internal/models"
	"github.com/Lllllllleong/salespackflow/internal/taxonomy"
)

// Builder turns per-page classifications into a partition.
type Builder struct {
	taxonomy taxonomy.Taxonomy
	newID    func() string
}

// NewBuilder returns a Builder that labels splits from tax and gives each
// split a random UUID.
func NewBuilder(tax taxonomy.Taxonomy) *Builder {
	return &Builder{taxonomy: tax, newID: uuid.NewString}
}

// Build starts a new split at the first page and whenever the document type
// changes from the previous page. Same-type runs separated by another type
// stay separate splits.
func (b *Builder) Build(classifications []models.PageClassification) models.Partition {
	if len(classifications) == 0 {
		return models.Partition{}
	}
	pages := slices.Clone(classifications)
	slices.SortStableFunc(pages, func(a, b models.PageClassification) int {
		return a.PageNumber - b.PageNumber
	})

	var splits []models.Split
	var confidences []int
	flush := func() {
		last := &splits[len(splits)-1]
		last.Confidence = meanConfidence(confidences)
		confidences = confidences[:0]
	}
	for i, pc := range pages {
		if i == 0 || pc.DocumentType != pages[i-1].DocumentType {
			if i > 0 {
				flush()
			}
			splits = append(splits, b.newSplit(pc.DocumentType))
		}
		last := &splits[len(splits)-1]
		last.Pages = append(last.Pages, pc.PageNumber)
		confidences = append(confidences, pc.Confidence)
	}
	flush()
	return models.Partition{Splits: splits}
}

// BuildFromGroups uses the oracle's suggested grouping when it is a clean
// ordered cover of the classified pages, and falls back to Build otherwise.
func (b *Builder) BuildFromGroups(result models.ClassificationResult) models.Partition {
	if !groupsCover(result.Groups, len(result.Pages)) {
		return b.Build(result.Pages)
	}
	byPage := make(map[int]int, len(result.Pages))
	for _, pc := range result.Pages {
		byPage[pc.PageNumber] = pc.Confidence
	}
	splits := make([]models.Split, 0, len(result.Groups))
	for _, g := range result.Groups {
		s := b.newSplit(g.DocumentType)
		s.Pages = slices.Clone(g.Pages)
		confidences := make([]int, len(g.Pages))
		for i, p := range g.Pages {
			confidences[i] = byPage[p]
		}
		s.Confidence = meanConfidence(confidences)
		splits = append(splits, s)
	}
	return models.Partition{Splits: splits}
}

func (b *Builder) newSplit(docType string) models.Split {
	return models.Split{
		ID:                      b.newID(),
		DocumentType:            docType,
		DocumentTypeDisplayName: b.taxonomy.Label(docType),
	}
}

// groupsCover reports whether groups are non-empty contiguous runs that
// cover 1..n in order, each page exactly once.
func groupsCover(groups []models.SuggestedGroup, n int) bool {
	if len(groups) == 0 || n == 0 {
		return false
	}
	next := 1
	for _, g := range groups {
		if len(g.Pages) == 0 || g.DocumentType == "" {
			return false
		}
		for _, p := range g.Pages {
			if p != next {
				return false
			}
			next++
		}
	}
	return next == n+1
}

func meanConfidence(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(len(values))))
}
