package models

import (
	"strconv"
	"time"
)

// PageClassification is the oracle's verdict for one source page.
// HasText is false when the oracle returned no text for the page at all,
// which is different from a page whose text is empty.
type PageClassification struct {
	PageNumber   int    `json:"pageNumber" firestore:"pageNumber"`
	DocumentType string `json:"documentType" firestore:"documentType"`
	Confidence   int    `json:"confidence" firestore:"confidence"`
	RawText      string `json:"rawText,omitempty" firestore:"rawText,omitempty"`
	HasText      bool   `json:"hasText" firestore:"hasText"`
}

// SuggestedGroup is a run of pages the oracle proposes as one document.
type SuggestedGroup struct {
	DocumentType string `json:"documentType"`
	Pages        []int  `json:"pages"`
}

// ClassificationResult is everything a classification run returns.
type ClassificationResult struct {
	Pages        []PageClassification
	CustomerName string
	Groups       []SuggestedGroup
}

// PageTexts maps a 1-based page number to its extracted text.
// A missing key means the text is unavailable for that page.
type PageTexts map[int]string

// Lookup returns the text of a page and whether any text is known for it.
func (t PageTexts) Lookup(page int) (string, bool) {
	if t == nil {
		return "", false
	}
	text, ok := t[page]
	return text, ok
}

// OutputDocument is one self-contained PDF cut from the source for a split.
// SuggestedFilename is left empty by the splitter; the uploader names the
// document when it is.
type OutputDocument struct {
	SourceSplitID     string
	DocumentType      string
	FileBytes         []byte
	PageCount         int
	Pages             []int
	SuggestedFilename string
}

// StoredDocument is the record kept for every uploaded document.
type StoredDocument struct {
	ID           string    `json:"id" firestore:"-"`
	Name         string    `json:"name" firestore:"name"`
	URL          string    `json:"url" firestore:"url"`
	DocumentType string    `json:"documentType" firestore:"documentType"`
	Target       string    `json:"target" firestore:"target"`
	SizeBytes    int       `json:"sizeBytes" firestore:"sizeBytes"`
	UploadedAt   time.Time `json:"uploadedAt" firestore:"uploadedAt"`
}

// UploadOutcome records the result of one upload attempt.
type UploadOutcome struct {
	Filename     string          `json:"filename"`
	DocumentType string          `json:"documentType"`
	Succeeded    bool            `json:"succeeded"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Stored       *StoredDocument `json:"stored,omitempty"`
}

// UploadSummary aggregates the outcomes of a batch.
type UploadSummary struct {
	Outcomes     []UploadOutcome `json:"outcomes"`
	SuccessCount int             `json:"successCount"`
	FailedCount  int             `json:"failedCount"`
	Cancelled    bool            `json:"cancelled,omitempty"`
}

// Session statuses.
const (
	StatusClassifying = "CLASSIFYING"
	StatusReview      = "REVIEW"
	StatusSplitting   = "SPLITTING"
	StatusUploaded    = "UPLOADED"
	StatusPartial     = "PARTIAL"
	StatusFailed      = "FAILED"
)

// Session is the Firestore record for one sales pack under review.
type Session struct {
	FileHash     string            `firestore:"fileHash,omitempty"`
	SourceBucket string            `firestore:"sourceBucket,omitempty"`
	SourceObject string            `firestore:"sourceObject,omitempty"`
	Status       string            `firestore:"status,omitempty"`
	ErrorDetails string            `firestore:"errorDetails,omitempty"`
	CustomerName string            `firestore:"customerName,omitempty"`
	PageCount    int               `firestore:"pageCount,omitempty"`
	PageTexts    map[string]string `firestore:"pageTexts,omitempty"`
	Splits       []Split           `firestore:"splits,omitempty"`
	SuccessCount int               `firestore:"successCount"`
	FailedCount  int               `firestore:"failedCount"`
	CreatedAt    time.Time         `firestore:"createdAt,omitempty"`
	UpdatedAt    time.Time         `firestore:"updatedAt,omitempty"`
}

// Texts returns the session's stored page texts keyed by page number.
func (s *Session) Texts() PageTexts {
	if len(s.PageTexts) == 0 {
		return nil
	}
	texts := make(PageTexts, len(s.PageTexts))
	for key, text := range s.PageTexts {
		page, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		texts[page] = text
	}
	return texts
}

// SetTexts stores page texts in the string-keyed form Firestore maps require.
func (s *Session) SetTexts(texts PageTexts) {
	if len(texts) == 0 {
		s.PageTexts = nil
		return
	}
	s.PageTexts = make(map[string]string, len(texts))
	for page, text := range texts {
		s.PageTexts[strconv.Itoa(page)] = text
	}
}
