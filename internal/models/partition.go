package models

import "slices"

// Split is a run of source pages judged to be one logical document.
type Split struct {
	ID                      string `json:"id" firestore:"id"`
	DocumentType            string `json:"documentType" firestore:"documentType"`
	DocumentTypeDisplayName string `json:"documentTypeDisplayName" firestore:"documentTypeDisplayName"`
	Pages                   []int  `json:"pages" firestore:"pages"`
	Confidence              int    `json:"confidence" firestore:"confidence"`
	Thumbnail               []byte `json:"thumbnail,omitempty" firestore:"-"`
}

// Partition is the ordered list of splits covering a source PDF.
type Partition struct {
	Splits []Split `json:"splits"`
}

// Find returns the index of the split with the given id, or -1.
func (p Partition) Find(id string) int {
	for i, s := range p.Splits {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so edits never alias the caller's slices.
func (p Partition) Clone() Partition {
	if p.Splits == nil {
		return Partition{}
	}
	out := make([]Split, len(p.Splits))
	for i, s := range p.Splits {
		s.Pages = slices.Clone(s.Pages)
		s.Thumbnail = slices.Clone(s.Thumbnail)
		out[i] = s
	}
	return Partition{Splits: out}
}

// Pages returns every page number in list order.
func (p Partition) Pages() []int {
	var pages []int
	for _, s := range p.Splits {
		pages = append(pages, s.Pages...)
	}
	return pages
}

// Len is the number of splits.
func (p Partition) Len() int { return len(p.Splits) }
