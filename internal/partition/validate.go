package partition

import (
	"errors"
	"fmt"

	"github.com/Lllllllleong/salespackflow/internal/models"
)

// ErrCoverage reports a partition that breaks the page invariants.
var ErrCoverage = errors.New("partition coverage violated")

// Validate checks that every split is non-empty with strictly ascending pages
// in 1..n and that no page belongs to two splits. Pages may be missing, since
// removing a split drops them on purpose.
func Validate(p models.Partition, n int) error {
	seen := make(map[int]string, n)
	for _, s := range p.Splits {
		if len(s.Pages) == 0 {
			return fmt.Errorf("%w: split %s has no pages", ErrCoverage, s.ID)
		}
		for i, page := range s.Pages {
			if page < 1 || page > n {
				return fmt.Errorf("%w: split %s has page %d outside 1..%d", ErrCoverage, s.ID, page, n)
			}
			if i > 0 && page <= s.Pages[i-1] {
				return fmt.Errorf("%w: split %s pages not strictly ascending", ErrCoverage, s.ID)
			}
			if other, dup := seen[page]; dup {
				return fmt.Errorf("%w: page %d in splits %s and %s", ErrCoverage, page, other, s.ID)
			}
			seen[page] = s.ID
		}
	}
	return nil
}

// Covers reports whether p is valid and holds every page of 1..n.
func Covers(p models.Partition, n int) bool {
	if Validate(p, n) != nil {
		return false
	}
	return len(p.Pages()) == n
}
