package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/profboard/profboard/internal/domain/assemble"
	"github.com/profboard/profboard/internal/domain/ledger"
	"github.com/profboard/profboard/internal/domain/model"
	"github.com/profboard/profboard/internal/domain/search"
	"github.com/profboard/profboard/internal/domain/types"
)

// voteKey identifies one overlay: a viewer's vote on one target.
type voteKey struct {
	viewerID int64
	targetID int64
}

type memTeacher struct {
	id   int64
	name string
}

type memSubject struct {
	id    int64
	title string
}

type memComment struct {
	id          int64
	teacherID   int64
	subjectID   int64
	sourceTitle string
	sourceLink  string
	date        string
	text        string
}

type memSummary struct {
	teacherID int64
	title     string
	value     string
}

// MemStore is a mutex-guarded in-memory Store with the same aggregation
// formulas as the Postgres implementation. It backs tests and local runs.
type MemStore struct {
	mu sync.RWMutex

	teacherSeq    int64
	subjectSeq    int64
	commentSeq    int64
	suggestionSeq int64

	teachers map[int64]*memTeacher
	subjects map[int64]*memSubject
	// links keeps the ordered teacher ids per subject.
	links     map[int64][]int64
	summaries []memSummary
	comments  []*memComment

	ratings map[voteKey]int
	karma   map[voteKey]int

	moderators  map[int64]struct{}
	suggestions map[int64]*model.Suggestion
	// suggestion ids in insertion order
	suggestionOrder []int64
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		teachers:    make(map[int64]*memTeacher),
		subjects:    make(map[int64]*memSubject),
		links:       make(map[int64][]int64),
		ratings:     make(map[voteKey]int),
		karma:       make(map[voteKey]int),
		moderators:  make(map[int64]struct{}),
		suggestions: make(map[int64]*model.Suggestion),
	}
}

// SeedSummary attaches a summary row to a teacher. Test helper; summaries
// have no write path in the public API.
func (m *MemStore) SeedSummary(teacherID int64, title, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, memSummary{teacherID: teacherID, title: title, value: value})
}

// SeedModerator grants moderator access to a viewer.
func (m *MemStore) SeedModerator(viewerID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moderators[viewerID] = struct{}{}
}

func (m *MemStore) Catalog(_ context.Context) ([]search.CatalogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]search.CatalogEntry, 0, len(m.teachers)+len(m.subjects))
	for id := int64(1); id <= m.teacherSeq; id++ {
		if t, ok := m.teachers[id]; ok {
			out = append(out, search.CatalogEntry{ID: t.id, Title: t.name, Kind: types.KindTeacher})
		}
	}
	for id := int64(1); id <= m.subjectSeq; id++ {
		if s, ok := m.subjects[id]; ok {
			out = append(out, search.CatalogEntry{ID: s.id, Title: s.title, Kind: types.KindSubject})
		}
	}
	return out, nil
}

func (m *MemStore) Teacher(_ context.Context, id, viewerID int64) (assemble.TeacherRow, []assemble.SummaryRow, []assemble.CommentRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.teachers[id]
	if !ok {
		return assemble.TeacherRow{}, nil, nil, fmt.Errorf("%w: teacher %d", ErrNotFound, id)
	}
	return m.teacherRow(t, viewerID), m.summaryRows(id), m.commentRows(id, viewerID), nil
}

func (m *MemStore) Subject(_ context.Context, id, viewerID int64) (assemble.SubjectRow, []assemble.TeacherRow, []assemble.SummaryRow, []assemble.CommentRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subjects[id]
	if !ok {
		return assemble.SubjectRow{}, nil, nil, nil, fmt.Errorf("%w: subject %d", ErrNotFound, id)
	}
	header := assemble.SubjectRow{ID: s.id, Title: s.title}

	var teachers []assemble.TeacherRow
	var summaries []assemble.SummaryRow
	var comments []assemble.CommentRow
	for _, tid := range m.links[id] {
		t, ok := m.teachers[tid]
		if !ok {
			continue
		}
		teachers = append(teachers, m.teacherRow(t, viewerID))
		summaries = append(summaries, m.summaryRows(tid)...)
		comments = append(comments, m.commentRows(tid, viewerID)...)
	}
	return header, teachers, summaries, comments, nil
}

func (m *MemStore) teacherRow(t *memTeacher, viewerID int64) assemble.TeacherRow {
	return assemble.TeacherRow{
		ID:         t.id,
		Name:       t.name,
		Rating:     m.meanRating(t.id),
		UserRating: int64(m.ratings[voteKey{viewerID, t.id}]),
	}
}

func (m *MemStore) summaryRows(teacherID int64) []assemble.SummaryRow {
	var out []assemble.SummaryRow
	for _, s := range m.summaries {
		if s.teacherID == teacherID {
			out = append(out, assemble.SummaryRow{TeacherID: s.teacherID, Title: s.title, Value: s.value})
		}
	}
	return out
}

func (m *MemStore) commentRows(teacherID, viewerID int64) []assemble.CommentRow {
	var out []assemble.CommentRow
	for _, c := range m.comments {
		if c.teacherID != teacherID {
			continue
		}
		subjectTitle := ""
		if s, ok := m.subjects[c.subjectID]; ok {
			subjectTitle = s.title
		}
		out = append(out, assemble.CommentRow{
			ID:           c.id,
			TeacherID:    c.teacherID,
			Date:         c.date,
			Text:         c.text,
			SourceTitle:  c.sourceTitle,
			SourceLink:   c.sourceLink,
			SubjectTitle: subjectTitle,
			Karma:        m.sumKarma(c.id),
			UserKarma:    int64(m.karma[voteKey{viewerID, c.id}]),
		})
	}
	return out
}

// meanRating is the arithmetic mean over all stored ratings, 0 without votes.
func (m *MemStore) meanRating(teacherID int64) float64 {
	var sum, n int
	for k, v := range m.ratings {
		if k.targetID == teacherID {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// sumKarma is the integer sum over all stored votes, 0 without votes.
func (m *MemStore) sumKarma(commentID int64) int64 {
	var sum int64
	for k, v := range m.karma {
		if k.targetID == commentID {
			sum += int64(v)
		}
	}
	return sum
}

func (m *MemStore) UpsertTeacherRating(_ context.Context, viewerID, teacherID int64, rating int) (ledger.RatingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teachers[teacherID]; !ok {
		return ledger.RatingResult{}, fmt.Errorf("%w: teacher %d", ErrNotFound, teacherID)
	}
	m.ratings[voteKey{viewerID, teacherID}] = rating
	return ledger.RatingResult{
		Rating:     m.meanRating(teacherID),
		UserRating: int64(rating),
	}, nil
}

func (m *MemStore) UpsertCommentKarma(_ context.Context, viewerID, commentID int64, karma int) (ledger.KarmaResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.commentExists(commentID) {
		return ledger.KarmaResult{}, fmt.Errorf("%w: comment %d", ErrNotFound, commentID)
	}
	m.karma[voteKey{viewerID, commentID}] = karma
	return ledger.KarmaResult{
		Karma:     m.sumKarma(commentID),
		UserKarma: int64(karma),
	}, nil
}

func (m *MemStore) commentExists(id int64) bool {
	for _, c := range m.comments {
		if c.id == id {
			return true
		}
	}
	return false
}

func (m *MemStore) Moderators(_ context.Context) (map[int64]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]struct{}, len(m.moderators))
	for isu := range m.moderators {
		out[isu] = struct{}{}
	}
	return out, nil
}

func (m *MemStore) InsertSuggestion(_ context.Context, s model.Suggestion) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suggestionSeq++
	s.ID = m.suggestionSeq
	s.Status = model.SuggestionCheck
	m.suggestions[s.ID] = &s
	m.suggestionOrder = append(m.suggestionOrder, s.ID)
	return s.ID, nil
}

func (m *MemStore) Suggestions(_ context.Context, statuses ...model.SuggestionStatus) ([]model.Suggestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[model.SuggestionStatus]struct{}, len(statuses))
	for _, st := range statuses {
		wanted[st] = struct{}{}
	}
	var out []model.Suggestion
	for _, id := range m.suggestionOrder {
		s := m.suggestions[id]
		if len(wanted) > 0 {
			if _, ok := wanted[s.Status]; !ok {
				continue
			}
		}
		out = append(out, *s)
	}
	return out, nil
}

func (m *MemStore) Suggestion(_ context.Context, id int64) (model.Suggestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.suggestions[id]
	if !ok {
		return model.Suggestion{}, fmt.Errorf("%w: suggestion %d", ErrNotFound, id)
	}
	return *s, nil
}

func (m *MemStore) UpdateSuggestionStatus(_ context.Context, _, id int64, status model.SuggestionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suggestions[id]
	if !ok {
		return fmt.Errorf("%w: suggestion %d", ErrNotFound, id)
	}
	s.Status = status
	return nil
}

func (m *MemStore) UpsertTeacher(_ context.Context, id *int64, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == nil {
		m.teacherSeq++
		m.teachers[m.teacherSeq] = &memTeacher{id: m.teacherSeq, name: name}
		return m.teacherSeq, nil
	}
	t, ok := m.teachers[*id]
	if !ok {
		return 0, fmt.Errorf("%w: teacher %d", ErrNotFound, *id)
	}
	t.name = name
	return t.id, nil
}

func (m *MemStore) UpsertSubject(_ context.Context, id *int64, title string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == nil {
		m.subjectSeq++
		m.subjects[m.subjectSeq] = &memSubject{id: m.subjectSeq, title: title}
		return m.subjectSeq, nil
	}
	s, ok := m.subjects[*id]
	if !ok {
		return 0, fmt.Errorf("%w: subject %d", ErrNotFound, *id)
	}
	s.title = title
	return s.id, nil
}

func (m *MemStore) LinkTeacherSubject(_ context.Context, teacherID, subjectID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teachers[teacherID]; !ok {
		return fmt.Errorf("%w: teacher %d", ErrNotFound, teacherID)
	}
	if _, ok := m.subjects[subjectID]; !ok {
		return fmt.Errorf("%w: subject %d", ErrNotFound, subjectID)
	}
	for _, tid := range m.links[subjectID] {
		if tid == teacherID {
			return nil
		}
	}
	m.links[subjectID] = append(m.links[subjectID], teacherID)
	return nil
}

func (m *MemStore) InsertComment(_ context.Context, c NewComment) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teachers[c.TeacherID]; !ok {
		return 0, fmt.Errorf("%w: teacher %d", ErrNotFound, c.TeacherID)
	}
	if _, ok := m.subjects[c.SubjectID]; !ok {
		return 0, fmt.Errorf("%w: subject %d", ErrNotFound, c.SubjectID)
	}
	m.commentSeq++
	m.comments = append(m.comments, &memComment{
		id:          m.commentSeq,
		teacherID:   c.TeacherID,
		subjectID:   c.SubjectID,
		sourceTitle: c.SourceTitle,
		sourceLink:  c.SourceLink,
		date:        c.Date,
		text:        c.Text,
	})
	return m.commentSeq, nil
}
