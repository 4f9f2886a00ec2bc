// Package assemble reassembles flat joined storage rows into nested
// teacher/subject trees and merges per-viewer overlay fields.
package assemble

import "github.com/profboard/profboard/internal/domain/model"

// AnonymousViewer is the viewer id of an unauthenticated request. Overlay
// fields are omitted entirely for it, never emitted as zero.
const AnonymousViewer int64 = 0

// TeacherRow is the flat teacher shape supplied by storage: the public
// aggregate plus the viewer's own overlay value (0 when the viewer never
// voted; meaningless for anonymous viewers).
type TeacherRow struct {
	ID         int64
	Name       string
	Rating     float64
	UserRating int64
}

// SummaryRow is a flat summary row keyed by its parent teacher.
type SummaryRow struct {
	TeacherID int64
	Title     string
	Value     string
}

// CommentRow is a flat comment row keyed by its parent teacher, already
// joined with its source and subject titles.
type CommentRow struct {
	ID           int64
	TeacherID    int64
	Date         string
	Text         string
	SourceTitle  string
	SourceLink   string
	SubjectTitle string
	Karma        int64
	UserKarma    int64
}

// SubjectRow is the flat subject header shape.
type SubjectRow struct {
	ID    int64
	Title string
}

// Teacher builds a teacher tree from its header row and child rows. Child
// rows are grouped in the order supplied, never re-sorted; a teacher without
// children still carries empty, non-nil lists.
func Teacher(header TeacherRow, summaries []SummaryRow, comments []CommentRow, viewerID int64) model.Teacher {
	t := model.Teacher{
		ID:         header.ID,
		Name:       header.Name,
		Rating:     header.Rating,
		UserRating: overlay(viewerID, header.UserRating),
		Summaries:  make([]model.Summary, 0, len(summaries)),
		Comments:   make([]model.Comment, 0, len(comments)),
	}
	for _, s := range summaries {
		if s.TeacherID != header.ID {
			continue
		}
		t.Summaries = append(t.Summaries, model.Summary{Title: s.Title, Value: s.Value})
	}
	for _, c := range comments {
		if c.TeacherID != header.ID {
			continue
		}
		t.Comments = append(t.Comments, comment(c, viewerID))
	}
	return t
}

// Subject builds a subject tree, distributing summary and comment rows to
// their parent teachers by id. Rows referencing unknown teachers are
// dropped. A subject with zero linked teachers is a valid outcome with an
// empty teacher list.
func Subject(header SubjectRow, teachers []TeacherRow, summaries []SummaryRow, comments []CommentRow, viewerID int64) model.Subject {
	out := model.Subject{
		ID:       header.ID,
		Title:    header.Title,
		Teachers: make([]model.Teacher, 0, len(teachers)),
	}
	index := make(map[int64]int, len(teachers))
	for _, t := range teachers {
		index[t.ID] = len(out.Teachers)
		out.Teachers = append(out.Teachers, model.Teacher{
			ID:         t.ID,
			Name:       t.Name,
			Rating:     t.Rating,
			UserRating: overlay(viewerID, t.UserRating),
			Summaries:  []model.Summary{},
			Comments:   []model.Comment{},
		})
	}
	for _, s := range summaries {
		i, ok := index[s.TeacherID]
		if !ok {
			continue
		}
		out.Teachers[i].Summaries = append(out.Teachers[i].Summaries, model.Summary{Title: s.Title, Value: s.Value})
	}
	for _, c := range comments {
		i, ok := index[c.TeacherID]
		if !ok {
			continue
		}
		out.Teachers[i].Comments = append(out.Teachers[i].Comments, comment(c, viewerID))
	}
	return out
}

func comment(c CommentRow, viewerID int64) model.Comment {
	return model.Comment{
		ID:        c.ID,
		Date:      c.Date,
		Text:      c.Text,
		Subject:   model.SubjectRef{Title: c.SubjectTitle},
		Source:    model.SourceRef{Title: c.SourceTitle, Link: c.SourceLink},
		Karma:     c.Karma,
		UserKarma: overlay(viewerID, c.UserKarma),
	}
}

// overlay materializes a personalized field: nil for anonymous viewers, the
// stored value otherwise (0 stands for "never voted").
func overlay(viewerID, value int64) *int64 {
	if viewerID == AnonymousViewer {
		return nil
	}
	v := value
	return &v
}
