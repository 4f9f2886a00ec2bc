// Package ledger records a viewer's rating/karma votes and returns the
// recomputed aggregates.
package ledger

import (
	"context"
	"fmt"

	"github.com/profboard/profboard/pkg/metrics"
)

// Rating and karma bounds enforced before any write reaches storage.
const (
	MinRating = 1
	MaxRating = 5
	MinKarma  = -1
	MaxKarma  = 1
)

// RatingResult is the outcome of a teacher rating upsert: the recomputed
// mean rating and the viewer's freshly stored value.
type RatingResult struct {
	Rating     float64 `json:"rating"`
	UserRating int64   `json:"user_rating"`
}

// KarmaResult is the outcome of a comment karma upsert: the recomputed karma
// sum and the viewer's freshly stored vote.
type KarmaResult struct {
	Karma     int64 `json:"karma"`
	UserKarma int64 `json:"user_karma"`
}

// Store is the storage contract the ledger writes through. An upsert must be
// an atomic insert-or-replace keyed by (viewer, target); a write against an
// unknown target must fail with the store's not-found error and leave no
// partial state.
type Store interface {
	UpsertTeacherRating(ctx context.Context, viewerID, teacherID int64, rating int) (RatingResult, error)
	UpsertCommentKarma(ctx context.Context, viewerID, commentID int64, karma int) (KarmaResult, error)
}

// Ledger validates votes and forwards them to storage.
//
// The returned aggregate comes from a read issued right after the write and
// is not part of the same transaction: under concurrent votes from other
// viewers it may already include newer state. Callers should treat a write
// as durable once acknowledged even if the follow-up read fails.
type Ledger struct {
	store Store
}

// New creates a Ledger over the given store.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// RateTeacher stores the viewer's rating for a teacher, replacing any prior
// value for the same pair, and returns the recomputed aggregate. Ratings
// outside [1,5] are rejected with ErrRatingRange before touching storage.
func (l *Ledger) RateTeacher(ctx context.Context, viewerID, teacherID int64, rating int) (RatingResult, error) {
	if rating < MinRating || rating > MaxRating {
		metrics.RecordLedgerError()
		return RatingResult{}, fmt.Errorf("%w: %d", ErrRatingRange, rating)
	}
	res, err := l.store.UpsertTeacherRating(ctx, viewerID, teacherID, rating)
	if err != nil {
		metrics.RecordLedgerError()
		return RatingResult{}, err
	}
	metrics.RecordRatingWrite()
	return res, nil
}

// VoteComment stores the viewer's karma vote for a comment, replacing any
// prior value for the same pair, and returns the recomputed aggregate.
// Votes outside {-1,0,1} are rejected with ErrKarmaRange before touching
// storage.
func (l *Ledger) VoteComment(ctx context.Context, viewerID, commentID int64, karma int) (KarmaResult, error) {
	if karma < MinKarma || karma > MaxKarma {
		metrics.RecordLedgerError()
		return KarmaResult{}, fmt.Errorf("%w: %d", ErrKarmaRange, karma)
	}
	res, err := l.store.UpsertCommentKarma(ctx, viewerID, commentID, karma)
	if err != nil {
		metrics.RecordLedgerError()
		return KarmaResult{}, err
	}
	metrics.RecordKarmaWrite()
	return res, nil
}
