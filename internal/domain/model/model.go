// Package model contains the catalog records returned to API clients.
package model

// Summary is one aggregated trait of a teacher, e.g. "strictness".
type Summary struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// SourceRef names where a comment was collected from.
type SourceRef struct {
	Title string `json:"title"`
	Link  string `json:"link,omitempty"`
}

// SubjectRef names the subject a comment was written about.
type SubjectRef struct {
	Title string `json:"title"`
}

// Comment is a single review comment about a teacher.
//
// Karma is the public, viewer-independent sum over all votes. UserKarma is
// the requesting viewer's own vote: nil for anonymous viewers (the field is
// omitted from JSON), 0 for an authenticated viewer who never voted.
type Comment struct {
	ID        int64      `json:"id"`
	Date      string     `json:"date"`
	Text      string     `json:"text"`
	Subject   SubjectRef `json:"subject"`
	Source    SourceRef  `json:"source"`
	Karma     int64      `json:"karma"`
	UserKarma *int64     `json:"user_karma,omitempty"`
}

// Teacher is an assembled teacher tree with its summaries and comments.
//
// Rating is the arithmetic mean over all viewer ratings, 0 when nobody has
// voted. UserRating follows the same present/absent rules as
// Comment.UserKarma.
type Teacher struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Rating     float64   `json:"rating"`
	UserRating *int64    `json:"user_rating,omitempty"`
	Summaries  []Summary `json:"summaries"`
	Comments   []Comment `json:"comments"`
}

// Subject is an assembled subject tree with its linked teachers. A subject
// with no linked teachers is valid and carries an empty list.
type Subject struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Teachers []Teacher `json:"teachers"`
}

// SuggestionStatus tracks a catalog suggestion through moderation.
type SuggestionStatus string

// Suggestion lifecycle states.
const (
	SuggestionCheck    SuggestionStatus = "check"
	SuggestionDelayed  SuggestionStatus = "delayed"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionRejected SuggestionStatus = "rejected"
)

// Valid reports whether s is a known suggestion status.
func (s SuggestionStatus) Valid() bool {
	switch s {
	case SuggestionCheck, SuggestionDelayed, SuggestionAccepted, SuggestionRejected:
		return true
	}
	return false
}

// SuggestionRef points at an existing catalog entry by id, or proposes a new
// one by title only.
type SuggestionRef struct {
	ID    *int64 `json:"id,omitempty"`
	Title string `json:"title"`
}

// Suggestion is a user-submitted catalog change awaiting moderation.
type Suggestion struct {
	ID        int64            `json:"id"`
	Status    SuggestionStatus `json:"status"`
	ViewerID  int64            `json:"-"`
	Text      string           `json:"text"`
	Teacher   SuggestionRef    `json:"teacher"`
	Subject   SuggestionRef    `json:"subject"`
	Subs      []SuggestionRef  `json:"subs,omitempty"`
	CreatedAt string           `json:"date,omitempty"`
}
