package models

// These structs define the JSON payloads for HTTP requests and responses
// between the review UI and the review/finalize Cloud Functions.

// ReviewEdit is one edit the reviewer applies to a session's partition.
type ReviewEdit struct {
	Op           string `json:"op"`
	SplitID      string `json:"splitId"`
	DocumentType string `json:"documentType,omitempty"`
	Direction    string `json:"direction,omitempty"`
}

// ReviewRequest is the input for the review-edit function.
type ReviewRequest struct {
	SessionID string       `json:"sessionId"`
	Edits     []ReviewEdit `json:"edits"`
}

// ReviewResponse returns the partition after the edits.
type ReviewResponse struct {
	Status       string  `json:"status"`
	SessionID    string  `json:"sessionId"`
	CustomerName string  `json:"customerName"`
	Splits       []Split `json:"splits"`
}

// FinalizeRequest is the input for the finalize function.
// Target overrides the detected customer name when set.
type FinalizeRequest struct {
	SessionID string `json:"sessionId"`
	Target    string `json:"target,omitempty"`
}

// FinalizeResponse is the output of the finalize function.
type FinalizeResponse struct {
	Status       string          `json:"status"`
	SessionID    string          `json:"sessionId"`
	SuccessCount int             `json:"successCount"`
	FailedCount  int             `json:"failedCount"`
	Outcomes     []UploadOutcome `json:"outcomes"`
}
