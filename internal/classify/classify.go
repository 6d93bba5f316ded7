// Package classify defines the classification oracle contract and the checks
// every oracle response goes through before a partition is built from it.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/Lllllllleong/salespackflow/internal/models"
	"github.com/Lllllllleong/salespackflow/internal/taxonomy"
)

// ErrClassification wraps every oracle failure: the call failing, or the
// response being unusable. No partial result accompanies it.
var ErrClassification = errors.New("classification failed")

// Oracle classifies every page of a PDF.
type Oracle interface {
	Classify(ctx context.Context, pdf []byte, tax taxonomy.Taxonomy) (*models.ClassificationResult, error)
}

// TextSource reads page text locally for pages the oracle returned none for.
type TextSource interface {
	Pages(data []byte, pages []int) (map[int]string, error)
}

// Normalize checks that result classifies pages 1..pageCount exactly once
// with confidences in 0..100, sorts pages, and maps unknown types to "other".
// Suggested groups that use unknown types are normalized the same way.
func Normalize(result *models.ClassificationResult, pageCount int, tax taxonomy.Taxonomy, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if result == nil {
		return fmt.Errorf("%w: empty response", ErrClassification)
	}
	if len(result.Pages) != pageCount {
		return fmt.Errorf("%w: got %d page classifications for %d pages", ErrClassification, len(result.Pages), pageCount)
	}
	sort.SliceStable(result.Pages, func(i, j int) bool {
		return result.Pages[i].PageNumber < result.Pages[j].PageNumber
	})
	for i := range result.Pages {
		pc := &result.Pages[i]
		if pc.PageNumber != i+1 {
			return fmt.Errorf("%w: page numbers are not 1..%d (found %d at position %d)", ErrClassification, pageCount, pc.PageNumber, i+1)
		}
		if pc.Confidence < 0 || pc.Confidence > 100 {
			return fmt.Errorf("%w: page %d confidence %d outside 0..100", ErrClassification, pc.PageNumber, pc.Confidence)
		}
		if normalized := tax.Normalize(pc.DocumentType); normalized != pc.DocumentType {
			logger.Warn("Unknown document type from oracle, using fallback.", "page", pc.PageNumber, "documentType", pc.DocumentType, "fallback", normalized)
			pc.DocumentType = normalized
		}
	}
	for i := range result.Groups {
		result.Groups[i].DocumentType = tax.Normalize(result.Groups[i].DocumentType)
	}
	return nil
}

// FillMissingText asks src for the text of every page the oracle returned no
// text for. Pages src cannot read stay without text.
func FillMissingText(result *models.ClassificationResult, data []byte, src TextSource) error {
	var missing []int
	for _, pc := range result.Pages {
		if !pc.HasText {
			missing = append(missing, pc.PageNumber)
		}
	}
	if len(missing) == 0 || src == nil {
		return nil
	}
	texts, err := src.Pages(data, missing)
	if err != nil {
		return fmt.Errorf("failed to read local page text: %w", err)
	}
	for i := range result.Pages {
		pc := &result.Pages[i]
		if text, ok := texts[pc.PageNumber]; ok && !pc.HasText {
			pc.RawText, pc.HasText = text, true
		}
	}
	return nil
}

// PageTexts collects the known page texts of a result.
func PageTexts(result *models.ClassificationResult) models.PageTexts {
	texts := make(models.PageTexts, len(result.Pages))
	for _, pc := range result.Pages {
		if pc.HasText {
			texts[pc.PageNumber] = pc.RawText
		}
	}
	return texts
}

// MajorityName returns the most frequent non-empty name, preferring the one
// seen first on ties.
func MajorityName(names []string) string {
	counts := map[string]int{}
	var order []string
	for _, n := range names {
		if n == "" {
			continue
		}
		if counts[n] == 0 {
			order = append(order, n)
		}
		counts[n]++
	}
	best := ""
	for _, n := range order {
		if counts[n] > counts[best] {
			best = n
		}
	}
	return best
}

// GroupRuns derives suggested groups from per-page types and the oracle's
// "starts a new document" flags: a group ends when the type changes or the
// next page starts a new document.
func GroupRuns(pages []models.PageClassification, startsNew []bool) []models.SuggestedGroup {
	var groups []models.SuggestedGroup
	for i, pc := range pages {
		newGroup := i == 0 || pc.DocumentType != pages[i-1].DocumentType || (i < len(startsNew) && startsNew[i])
		if newGroup {
			groups = append(groups, models.SuggestedGroup{DocumentType: pc.DocumentType})
		}
		last := &groups[len(groups)-1]
		last.Pages = append(last.Pages, pc.PageNumber)
	}
	return slices.Clip(groups)
}
