// Package repository defines the catalog storage contract and its
// implementations.
package repository

import (
	"context"

	"github.com/profboard/profboard/internal/domain/assemble"
	"github.com/profboard/profboard/internal/domain/ledger"
	"github.com/profboard/profboard/internal/domain/model"
	"github.com/profboard/profboard/internal/domain/search"
)

// NewComment is the payload for inserting a moderated comment into the
// catalog. The source is referenced by title and created on first use.
type NewComment struct {
	TeacherID   int64
	SubjectID   int64
	SourceTitle string
	SourceLink  string
	Date        string
	Text        string
}

// Store provides read/upsert access to the review catalog.
//
// Read operations take the requesting viewer's id so rows can carry the
// viewer's own overlay values next to the public aggregates; viewer id 0
// stands for an anonymous request. Operations against an unknown target
// return ErrNotFound.
type Store interface {
	// Catalog returns every searchable teacher and subject title for
	// snapshot building.
	Catalog(ctx context.Context) ([]search.CatalogEntry, error)

	// Teacher returns the flat rows of one teacher tree.
	Teacher(ctx context.Context, id, viewerID int64) (assemble.TeacherRow, []assemble.SummaryRow, []assemble.CommentRow, error)

	// Subject returns the flat rows of one subject tree.
	Subject(ctx context.Context, id, viewerID int64) (assemble.SubjectRow, []assemble.TeacherRow, []assemble.SummaryRow, []assemble.CommentRow, error)

	// UpsertTeacherRating atomically inserts or replaces the viewer's rating
	// and returns the recomputed aggregate.
	UpsertTeacherRating(ctx context.Context, viewerID, teacherID int64, rating int) (ledger.RatingResult, error)

	// UpsertCommentKarma atomically inserts or replaces the viewer's karma
	// vote and returns the recomputed aggregate.
	UpsertCommentKarma(ctx context.Context, viewerID, commentID int64, karma int) (ledger.KarmaResult, error)

	// Moderators returns the set of viewer ids with moderator access.
	Moderators(ctx context.Context) (map[int64]struct{}, error)

	// InsertSuggestion stores a new catalog suggestion and returns its id.
	InsertSuggestion(ctx context.Context, s model.Suggestion) (int64, error)

	// Suggestions lists suggestions in any of the given statuses, oldest
	// first. No statuses means all.
	Suggestions(ctx context.Context, statuses ...model.SuggestionStatus) ([]model.Suggestion, error)

	// Suggestion returns one suggestion by id.
	Suggestion(ctx context.Context, id int64) (model.Suggestion, error)

	// UpdateSuggestionStatus moves a suggestion to a new status, recording
	// the acting moderator.
	UpdateSuggestionStatus(ctx context.Context, moderatorID, id int64, status model.SuggestionStatus) error

	// UpsertTeacher creates a teacher (nil id) or renames an existing one.
	UpsertTeacher(ctx context.Context, id *int64, name string) (int64, error)

	// UpsertSubject creates a subject (nil id) or retitles an existing one.
	UpsertSubject(ctx context.Context, id *int64, title string) (int64, error)

	// LinkTeacherSubject records that a teacher teaches a subject.
	LinkTeacherSubject(ctx context.Context, teacherID, subjectID int64) error

	// InsertComment stores a moderated comment and returns its id.
	InsertComment(ctx context.Context, c NewComment) (int64, error)
}
