package partition

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Lllllllleong/salespackflow/internal/models"
	"github.com/Lllllllleong/salespackflow/internal/taxonomy"
)

// Direction selects the neighbour of a merge.
type Direction string

const (
	Prev Direction = "prev"
	Next Direction = "next"
)

// Edit operation names accepted by Apply.
const (
	OpChangeType = "change_type"
	OpRemove     = "remove"
	OpMerge      = "merge"
)

// ErrUnknownEdit is returned by Apply for an operation or direction it does not know.
var ErrUnknownEdit = errors.New("unknown edit")

// Editor applies review edits. Every method returns a new partition and
// leaves its input untouched; an id that is not in the partition is a no-op.
type Editor struct {
	taxonomy taxonomy.Taxonomy
}

// NewEditor returns an Editor that derives display names from tax.
func NewEditor(tax taxonomy.Taxonomy) Editor {
	return Editor{taxonomy: tax}
}

// ChangeDocumentType retypes one split. Pages and confidence are unchanged.
func (e Editor) ChangeDocumentType(p models.Partition, splitID, newType string) models.Partition {
	idx := p.Find(splitID)
	if idx < 0 {
		return p
	}
	out := p.Clone()
	out.Splits[idx].DocumentType = newType
	out.Splits[idx].DocumentTypeDisplayName = e.taxonomy.Label(newType)
	return out
}

// RemoveSplit drops a split. Its pages are not given to any other split and
// will not appear in any output document.
func (e Editor) RemoveSplit(p models.Partition, splitID string) models.Partition {
	idx := p.Find(splitID)
	if idx < 0 {
		return p
	}
	out := p.Clone()
	out.Splits = slices.Delete(out.Splits, idx, idx+1)
	return out
}

// MergeAdjacentSplit folds the split into its neighbour in the given
// direction. The merged split keeps the neighbour's id and type, its pages
// are the sorted union of both, its confidence is the rounded mean of the two
// split confidences, and it sits at the lower of the two positions.
// A split with no neighbour in that direction is left alone.
func (e Editor) MergeAdjacentSplit(p models.Partition, splitID string, dir Direction) models.Partition {
	idx := p.Find(splitID)
	if idx < 0 {
		return p
	}
	var nb int
	switch dir {
	case Prev:
		nb = idx - 1
	case Next:
		nb = idx + 1
	default:
		return p
	}
	if nb < 0 || nb >= len(p.Splits) {
		return p
	}

	out := p.Clone()
	src, target := out.Splits[idx], out.Splits[nb]

	pages := append(slices.Clone(src.Pages), target.Pages...)
	slices.Sort(pages)
	merged := target
	merged.Pages = slices.Compact(pages)
	merged.Confidence = meanConfidence([]int{src.Confidence, target.Confidence})

	lo, hi := min(idx, nb), max(idx, nb)
	out.Splits[lo] = merged
	out.Splits = slices.Delete(out.Splits, hi, hi+1)
	return out
}

// Apply dispatches one review edit.
func (e Editor) Apply(p models.Partition, edit models.ReviewEdit) (models.Partition, error) {
	switch edit.Op {
	case OpChangeType:
		if edit.DocumentType == "" {
			return p, fmt.Errorf("%w: change_type needs a document type", ErrUnknownEdit)
		}
		return e.ChangeDocumentType(p, edit.SplitID, edit.DocumentType), nil
	case OpRemove:
		return e.RemoveSplit(p, edit.SplitID), nil
	case OpMerge:
		dir := Direction(edit.Direction)
		if dir != Prev && dir != Next {
			return p, fmt.Errorf("%w: merge direction %q", ErrUnknownEdit, edit.Direction)
		}
		return e.MergeAdjacentSplit(p, edit.SplitID, dir), nil
	default:
		return p, fmt.Errorf("%w: %q", ErrUnknownEdit, edit.Op)
	}
}
