// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/profboard/profboard/internal/adapters/repository"
	"github.com/profboard/profboard/internal/domain/assemble"
	"github.com/profboard/profboard/internal/domain/ledger"
	"github.com/profboard/profboard/internal/domain/model"
	"github.com/profboard/profboard/internal/domain/search"
	"github.com/profboard/profboard/internal/domain/types"
	"github.com/profboard/profboard/pkg/logger"
	"github.com/profboard/profboard/pkg/metrics"
)

// commentDateLayout is how the catalog has always recorded timestamps,
// rendered in the university's local time.
const commentDateLayout = "15:04 02.01.2006"

var catalogZone = time.FixedZone("MSK", 3*60*60)

// Service implements the API dependencies for the review catalog.
type Service struct {
	mu sync.Mutex

	store  repository.Store
	ranker *search.Ranker
	votes  *ledger.Ledger

	// Search snapshot, swapped whole on refresh. Readers load it without
	// locking; a nil snapshot simply yields no results.
	snapshot        atomic.Pointer[search.Snapshot]
	refreshInterval time.Duration

	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the catalog storage backend.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRanker replaces the default search ranker.
func WithRanker(r *search.Ranker) Option {
	return func(s *Service) {
		if r != nil {
			s.ranker = r
		}
	}
}

// WithSnapshotRefreshInterval sets how often the search snapshot is
// rebuilt from storage.
func WithSnapshotRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshInterval = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		ranker:          search.NewRanker(),
		refreshInterval: time.Minute,
		stopCh:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the initial search snapshot and launches the background
// refresher. It fails when the store is missing or the first snapshot
// cannot be built.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil {
		return ErrNoStore
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.votes = ledger.New(s.store)
	// A previous Stop closed the channel, so a restart needs a fresh one.
	s.stopCh = make(chan struct{})

	if err := s.refreshSnapshot(ctx); err != nil {
		return fmt.Errorf("initial catalog snapshot: %w", err)
	}

	s.wg.Add(1)
	go s.refreshLoop()

	s.started = true
	s.logger.Info(ctx, "catalog service started",
		logger.Int("entries", s.snapshot.Load().Len()),
		logger.String("refreshInterval", s.refreshInterval.String()),
	)
	return nil
}

// Stop shuts down the background refresher.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
	s.started = false
	s.logger.Info(context.Background(), "catalog service stopped")
}

func (s *Service) refreshLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.refreshInterval)
			if err := s.refreshSnapshot(ctx); err != nil {
				// Keep serving the previous snapshot until the store answers.
				s.logger.Warn(ctx, "catalog snapshot refresh failed", logger.Error(err))
			}
			cancel()
		}
	}
}

// refreshSnapshot rebuilds the search snapshot from storage and swaps it
// in atomically.
func (s *Service) refreshSnapshot(ctx context.Context) error {
	start := time.Now()
	rows, err := s.store.Catalog(ctx)
	if err != nil {
		return err
	}
	snap := search.NewSnapshot(rows)
	s.snapshot.Store(snap)
	metrics.RecordSnapshotRefresh(snap.Len(), float64(time.Since(start).Milliseconds()), time.Now().Unix())
	return nil
}

// Search ranks catalog entries against a free-text query. An empty kind
// searches teachers and subjects alike.
func (s *Service) Search(ctx context.Context, query string, kind types.Kind) []types.SearchItem {
	results := s.ranker.Rank(query, kind, s.snapshot.Load())
	metrics.RecordSearch(len(results))
	s.logger.Debug(ctx, "search",
		logger.String("query", query),
		logger.String("kind", string(kind)),
		logger.Int("results", len(results)),
	)
	return results
}

// TeacherTree assembles one teacher's review page for the given viewer.
func (s *Service) TeacherTree(ctx context.Context, id, viewerID int64) (model.Teacher, error) {
	header, summaries, comments, err := s.store.Teacher(ctx, id, viewerID)
	if err != nil {
		return model.Teacher{}, fmt.Errorf("load teacher %d: %w", id, err)
	}
	return assemble.Teacher(header, summaries, comments, viewerID), nil
}

// SubjectTree assembles one subject's review page for the given viewer.
func (s *Service) SubjectTree(ctx context.Context, id, viewerID int64) (model.Subject, error) {
	subject, teachers, summaries, comments, err := s.store.Subject(ctx, id, viewerID)
	if err != nil {
		return model.Subject{}, fmt.Errorf("load subject %d: %w", id, err)
	}
	return assemble.Subject(subject, teachers, summaries, comments, viewerID), nil
}

// RateTeacher records the viewer's rating and returns the recomputed
// aggregate.
func (s *Service) RateTeacher(ctx context.Context, viewerID, teacherID int64, rating int) (ledger.RatingResult, error) {
	return s.votes.RateTeacher(ctx, viewerID, teacherID, rating)
}

// VoteComment records the viewer's karma vote and returns the recomputed
// aggregate.
func (s *Service) VoteComment(ctx context.Context, viewerID, commentID int64, karma int) (ledger.KarmaResult, error) {
	return s.votes.VoteComment(ctx, viewerID, commentID, karma)
}

// IsModerator reports whether the viewer may use moderation routes.
func (s *Service) IsModerator(ctx context.Context, viewerID int64) (bool, error) {
	mods, err := s.store.Moderators(ctx)
	if err != nil {
		return false, fmt.Errorf("load moderators: %w", err)
	}
	_, ok := mods[viewerID]
	return ok, nil
}

// AddSuggestion stores a new catalog suggestion, stamping it with the
// submission time.
func (s *Service) AddSuggestion(ctx context.Context, sug model.Suggestion) (int64, error) {
	sug.Status = model.SuggestionCheck
	sug.CreatedAt = time.Now().In(catalogZone).Format(commentDateLayout)
	id, err := s.store.InsertSuggestion(ctx, sug)
	if err != nil {
		return 0, fmt.Errorf("insert suggestion: %w", err)
	}
	s.logger.Info(ctx, "suggestion recorded",
		logger.Int64("id", id),
		logger.Int64("viewer", sug.ViewerID),
	)
	return id, nil
}

// ListSuggestions lists suggestions in the given statuses, oldest first.
func (s *Service) ListSuggestions(ctx context.Context, statuses ...model.SuggestionStatus) ([]model.Suggestion, error) {
	return s.store.Suggestions(ctx, statuses...)
}

// GetSuggestion returns one suggestion by id.
func (s *Service) GetSuggestion(ctx context.Context, id int64) (model.Suggestion, error) {
	return s.store.Suggestion(ctx, id)
}

// CommitSuggestion applies a suggestion to the catalog: the teacher and
// subject are created or updated, linked, and the suggested text becomes
// a comment. The suggestion is then marked accepted and the search
// snapshot refreshed so the new entries are findable at once.
func (s *Service) CommitSuggestion(ctx context.Context, moderatorID, id int64) error {
	sug, err := s.store.Suggestion(ctx, id)
	if err != nil {
		return fmt.Errorf("load suggestion %d: %w", id, err)
	}
	// An accepted suggestion has left the review queue.
	if sug.Status == model.SuggestionAccepted {
		return fmt.Errorf("suggestion %d already committed: %w", id, repository.ErrNotFound)
	}

	teacherID, err := s.store.UpsertTeacher(ctx, sug.Teacher.ID, sug.Teacher.Title)
	if err != nil {
		return fmt.Errorf("upsert teacher: %w", err)
	}
	subjectID, err := s.store.UpsertSubject(ctx, sug.Subject.ID, sug.Subject.Title)
	if err != nil {
		return fmt.Errorf("upsert subject: %w", err)
	}
	if err := s.store.LinkTeacherSubject(ctx, teacherID, subjectID); err != nil {
		return fmt.Errorf("link teacher %d to subject %d: %w", teacherID, subjectID, err)
	}

	date := sug.CreatedAt
	if date == "" {
		date = time.Now().In(catalogZone).Format(commentDateLayout)
	}
	if _, err := s.store.InsertComment(ctx, repository.NewComment{
		TeacherID:   teacherID,
		SubjectID:   subjectID,
		SourceTitle: "suggestion",
		Date:        date,
		Text:        sug.Text,
	}); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	if err := s.store.UpdateSuggestionStatus(ctx, moderatorID, id, model.SuggestionAccepted); err != nil {
		return fmt.Errorf("mark suggestion accepted: %w", err)
	}

	if err := s.refreshSnapshot(ctx); err != nil {
		// The background refresher will pick the new entries up later.
		s.logger.Warn(ctx, "snapshot refresh after commit failed", logger.Error(err))
	}

	s.logger.Info(ctx, "suggestion committed",
		logger.Int64("id", id),
		logger.Int64("moderator", moderatorID),
		logger.Int64("teacher", teacherID),
		logger.Int64("subject", subjectID),
	)
	return nil
}

// ResolveSuggestion moves a suggestion to a terminal or parked status
// without touching the catalog.
func (s *Service) ResolveSuggestion(ctx context.Context, moderatorID, id int64, status model.SuggestionStatus) error {
	if err := s.store.UpdateSuggestionStatus(ctx, moderatorID, id, status); err != nil {
		return fmt.Errorf("resolve suggestion %d: %w", id, err)
	}
	s.logger.Info(ctx, "suggestion resolved",
		logger.Int64("id", id),
		logger.Int64("moderator", moderatorID),
		logger.String("status", string(status)),
	)
	return nil
}
