package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/salespackflow/internal/gcp"
	"github.com/Lllllllleong/salespackflow/internal/models"
	"github.com/Lllllllleong/salespackflow/internal/partition"
	"github.com/Lllllllleong/salespackflow/internal/taxonomy"
)

func reviewSession(sessions *fakeSessions, status string) {
	sessions.sessions["s1"] = models.Session{
		Status:       status,
		CustomerName: "Jane Doe",
		PageCount:    5,
		Splits: []models.Split{
			{ID: "a", DocumentType: "id_front", DocumentTypeDisplayName: "ID Card (Front)", Pages: []int{1}, Confidence: 80},
			{ID: "b", DocumentType: "id_back", DocumentTypeDisplayName: "ID Card (Back)", Pages: []int{2, 3}, Confidence: 60},
			{ID: "c", DocumentType: "other", DocumentTypeDisplayName: "Other", Pages: []int{4, 5}, Confidence: 40},
		},
	}
}

func TestReviewAppliesEditsInOrder(t *testing.T) {
	sessions := newFakeSessions()
	reviewSession(sessions, models.StatusReview)
	f := newReviewFunction(sessions, taxonomy.Default())

	res, err := f.Process(context.Background(), &models.ReviewRequest{
		SessionID: "s1",
		Edits: []models.ReviewEdit{
			{Op: partition.OpChangeType, SplitID: "c", DocumentType: "consent_form"},
			{Op: partition.OpMerge, SplitID: "a", Direction: string(partition.Next)},
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Splits, 2)
	assert.Equal(t, "b", res.Splits[0].ID)
	assert.Equal(t, "id_back", res.Splits[0].DocumentType)
	assert.Equal(t, []int{1, 2, 3}, res.Splits[0].Pages)
	assert.Equal(t, 70, res.Splits[0].Confidence)
	assert.Equal(t, "consent_form", res.Splits[1].DocumentType)
	assert.Equal(t, "Jane Doe", res.CustomerName)
	assert.Equal(t, res.Splits, sessions.get("s1").Splits)
}

func TestReviewNoOpEditsLeavePartition(t *testing.T) {
	sessions := newFakeSessions()
	reviewSession(sessions, models.StatusReview)
	before := sessions.get("s1").Splits
	f := newReviewFunction(sessions, taxonomy.Default())

	res, err := f.Process(context.Background(), &models.ReviewRequest{
		SessionID: "s1",
		Edits: []models.ReviewEdit{
			{Op: partition.OpMerge, SplitID: "a", Direction: string(partition.Prev)},
			{Op: partition.OpRemove, SplitID: "missing"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, before, res.Splits)
}

func TestReviewRemoveDropsPages(t *testing.T) {
	sessions := newFakeSessions()
	reviewSession(sessions, models.StatusReview)
	f := newReviewFunction(sessions, taxonomy.Default())

	res, err := f.Process(context.Background(), &models.ReviewRequest{
		SessionID: "s1",
		Edits:     []models.ReviewEdit{{Op: partition.OpRemove, SplitID: "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 5}, models.Partition{Splits: res.Splits}.Pages())
}

func TestReviewRejects(t *testing.T) {
	tests := map[string]struct {
		status string
		req    models.ReviewRequest
		want   error
		code   int
	}{
		"missing session id": {
			status: models.StatusReview,
			req:    models.ReviewRequest{},
			want:   ErrInvalidRequest,
			code:   400,
		},
		"unknown session": {
			status: models.StatusReview,
			req:    models.ReviewRequest{SessionID: "nope"},
			want:   gcp.ErrSessionNotFound,
			code:   404,
		},
		"already finalized": {
			status: models.StatusUploaded,
			req:    models.ReviewRequest{SessionID: "s1"},
			want:   ErrSessionState,
			code:   409,
		},
		"unknown op": {
			status: models.StatusReview,
			req:    models.ReviewRequest{SessionID: "s1", Edits: []models.ReviewEdit{{Op: "split", SplitID: "a"}}},
			want:   partition.ErrUnknownEdit,
			code:   400,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			sessions := newFakeSessions()
			reviewSession(sessions, tc.status)
			f := newReviewFunction(sessions, taxonomy.Default())

			_, err := f.Process(context.Background(), &tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.code, HTTPStatus(err))
			assert.Zero(t, sessions.saves)
		})
	}
}
