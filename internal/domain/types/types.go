// Package types contains common types shared across the application.
package types

// Kind distinguishes the two searchable catalog categories.
type Kind string

// Catalog entry kinds.
const (
	KindTeacher Kind = "teacher"
	KindSubject Kind = "subject"
)

// Valid reports whether k is a known catalog kind.
func (k Kind) Valid() bool {
	return k == KindTeacher || k == KindSubject
}

// SearchItem is a single ranked search hit.
type SearchItem struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Type  Kind   `json:"type"`
}
