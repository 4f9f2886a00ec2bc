package api_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/profboard/profboard/internal/adapters/http/api"
	"github.com/profboard/profboard/internal/adapters/identity"
	"github.com/profboard/profboard/internal/adapters/repository"
	"github.com/profboard/profboard/internal/domain/ledger"
	"github.com/profboard/profboard/internal/domain/model"
	"github.com/profboard/profboard/internal/domain/types"
)

// fakeService backs the handlers with canned catalog data: one teacher,
// one subject, one comment, one pending suggestion, one moderator.
type fakeService struct {
	committed []int64
	resolved  map[int64]model.SuggestionStatus
}

func newFakeService() *fakeService {
	return &fakeService{resolved: map[int64]model.SuggestionStatus{}}
}

func (f *fakeService) Search(_ context.Context, query string, _ types.Kind) []types.SearchItem {
	if strings.Contains(query, "иванов") {
		return []types.SearchItem{{ID: 1, Title: "Иванов Иван Иванович", Type: types.KindTeacher}}
	}
	return nil
}

func (f *fakeService) TeacherTree(_ context.Context, id, viewerID int64) (model.Teacher, error) {
	if id != 1 {
		return model.Teacher{}, repository.ErrNotFound
	}
	t := model.Teacher{
		ID:        1,
		Name:      "Иванов Иван Иванович",
		Rating:    4.5,
		Summaries: []model.Summary{},
		Comments:  []model.Comment{},
	}
	if viewerID != 0 {
		stored := int64(4)
		t.UserRating = &stored
	}
	return t, nil
}

func (f *fakeService) SubjectTree(_ context.Context, id, _ int64) (model.Subject, error) {
	if id != 1 {
		return model.Subject{}, repository.ErrNotFound
	}
	return model.Subject{ID: 1, Title: "Математический анализ", Teachers: []model.Teacher{}}, nil
}

func (f *fakeService) RateTeacher(_ context.Context, _, teacherID int64, rating int) (ledger.RatingResult, error) {
	if rating < ledger.MinRating || rating > ledger.MaxRating {
		return ledger.RatingResult{}, fmt.Errorf("rating %d: %w", rating, ledger.ErrRatingRange)
	}
	if teacherID != 1 {
		return ledger.RatingResult{}, repository.ErrNotFound
	}
	return ledger.RatingResult{Rating: float64(rating), UserRating: int64(rating)}, nil
}

func (f *fakeService) VoteComment(_ context.Context, _, commentID int64, karma int) (ledger.KarmaResult, error) {
	if karma < ledger.MinKarma || karma > ledger.MaxKarma {
		return ledger.KarmaResult{}, fmt.Errorf("karma %d: %w", karma, ledger.ErrKarmaRange)
	}
	if commentID != 10 {
		return ledger.KarmaResult{}, repository.ErrNotFound
	}
	return ledger.KarmaResult{Karma: int64(karma), UserKarma: int64(karma)}, nil
}

func (f *fakeService) IsModerator(_ context.Context, viewerID int64) (bool, error) {
	return viewerID == 100, nil
}

func (f *fakeService) AddSuggestion(_ context.Context, _ model.Suggestion) (int64, error) {
	return 7, nil
}

func (f *fakeService) ListSuggestions(_ context.Context, _ ...model.SuggestionStatus) ([]model.Suggestion, error) {
	return []model.Suggestion{{ID: 7, Status: model.SuggestionCheck, Text: "great lecturer"}}, nil
}

func (f *fakeService) GetSuggestion(_ context.Context, id int64) (model.Suggestion, error) {
	if id != 7 {
		return model.Suggestion{}, repository.ErrNotFound
	}
	return model.Suggestion{ID: 7, Status: model.SuggestionCheck, Text: "great lecturer"}, nil
}

func (f *fakeService) CommitSuggestion(_ context.Context, _, id int64) error {
	if id != 7 {
		return repository.ErrNotFound
	}
	f.committed = append(f.committed, id)
	return nil
}

func (f *fakeService) ResolveSuggestion(_ context.Context, _, id int64, status model.SuggestionStatus) error {
	if id != 7 {
		return repository.ErrNotFound
	}
	f.resolved[id] = status
	return nil
}

type fakeTokens struct{}

func (fakeTokens) Login(_ context.Context, username, password string) (identity.TokenPair, error) {
	if username == "student" && password == "secret" {
		return identity.TokenPair{AccessToken: "at", RefreshToken: "rt"}, nil
	}
	return identity.TokenPair{}, identity.ErrInvalidCredentials
}

func (fakeTokens) Refresh(_ context.Context, refreshToken string) (identity.TokenPair, error) {
	if refreshToken == "rt" {
		return identity.TokenPair{AccessToken: "at2", RefreshToken: "rt2"}, nil
	}
	return identity.TokenPair{}, identity.ErrUpstream
}

func viewerToken(isu int64) string {
	header, _ := json.Marshal(map[string]any{"alg": "RS256", "typ": "JWT"})
	payload, _ := json.Marshal(map[string]any{"isu": isu})
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + ".c2ln"
}

func newTestServer(svc *fakeService) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(svc, fakeTokens{}).Register(mux)
	return httptest.NewServer(mux)
}

func do(t *testing.T, method, url, token, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("token", token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(raw)
}

func TestSearchEndpoint(t *testing.T) {
	Convey("Given a running API server", t, func() {
		srv := newTestServer(newFakeService())
		defer srv.Close()

		Convey("When searching with a matching query", func() {
			status, body := do(t, http.MethodGet, srv.URL+"/search?query=иванов", "", "")

			Convey("Then matching entries are returned", func() {
				So(status, ShouldEqual, http.StatusOK)
				So(body, ShouldContainSubstring, `"Иванов Иван Иванович"`)
				So(body, ShouldContainSubstring, `"type":"teacher"`)
			})
		})

		Convey("When the query is shorter than three characters", func() {
			status, _ := do(t, http.MethodGet, srv.URL+"/search?query=ив", "", "")

			So(status, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When nothing matches", func() {
			status, _ := do(t, http.MethodGet, srv.URL+"/search?query=петров", "", "")

			So(status, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the strainer is not a known category", func() {
			status, _ := do(t, http.MethodGet, srv.URL+"/search?query=иванов&strainer=room", "", "")

			So(status, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestTeacherEndpoints(t *testing.T) {
	Convey("Given a running API server", t, func() {
		srv := newTestServer(newFakeService())
		defer srv.Close()

		Convey("When fetching a teacher anonymously", func() {
			status, body := do(t, http.MethodGet, srv.URL+"/teacher/1", "", "")

			Convey("Then the tree has no personal overlay", func() {
				So(status, ShouldEqual, http.StatusOK)
				So(body, ShouldNotContainSubstring, "user_rating")
			})
		})

		Convey("When fetching a teacher with a viewer token", func() {
			status, body := do(t, http.MethodGet, srv.URL+"/teacher/1", viewerToken(42), "")

			Convey("Then the tree carries the stored rating", func() {
				So(status, ShouldEqual, http.StatusOK)
				So(body, ShouldContainSubstring, `"user_rating":4`)
			})
		})

		Convey("When the teacher does not exist", func() {
			status, _ := do(t, http.MethodGet, srv.URL+"/teacher/99", "", "")

			So(status, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the id is not numeric", func() {
			status, _ := do(t, http.MethodGet, srv.URL+"/teacher/abc", "", "")

			So(status, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When rating without a token", func() {
			status, _ := do(t, http.MethodPost, srv.URL+"/teacher/1/rate", "", `{"user_rating":5}`)

			So(status, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When rating with a token", func() {
			status, body := do(t, http.MethodPost, srv.URL+"/teacher/1/rate", viewerToken(42), `{"user_rating":5}`)

			Convey("Then the recomputed aggregate comes back", func() {
				So(status, ShouldEqual, http.StatusOK)
				So(body, ShouldContainSubstring, `"rating":5`)
				So(body, ShouldContainSubstring, `"user_rating":5`)
			})
		})

		Convey("When the rating is out of range", func() {
			status, _ := do(t, http.MethodPost, srv.URL+"/teacher/1/rate", viewerToken(42), `{"user_rating":9}`)

			So(status, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When rating an unknown teacher", func() {
			status, _ := do(t, http.MethodPost, srv.URL+"/teacher/99/rate", viewerToken(42), `{"user_rating":3}`)

			So(status, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestCommentVoteEndpoint(t *testing.T) {
	Convey("Given a running API server", t, func() {
		srv := newTestServer(newFakeService())
		defer srv.Close()

		Convey("When voting without a token", func() {
			status, _ := do(t, http.MethodPost, srv.URL+"/comment/10/vote", "", `{"user_karma":1}`)

			So(status, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When voting with a token", func() {
			status, body := do(t, http.MethodPost, srv.URL+"/comment/10/vote", viewerToken(42), `{"user_karma":-1}`)

			So(status, ShouldEqual, http.StatusOK)
			So(body, ShouldContainSubstring, `"user_karma":-1`)
		})

		Convey("When the karma is out of range", func() {
			status, _ := do(t, http.MethodPost, srv.URL+"/comment/10/vote", viewerToken(42), `{"user_karma":2}`)

			So(status, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the comment does not exist", func() {
			status, _ := do(t, http.MethodPost, srv.URL+"/comment/99/vote", viewerToken(42), `{"user_karma":1}`)

			So(status, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestModerationEndpoints(t *testing.T) {
	Convey("Given a running API server with one moderator", t, func() {
		svc := newFakeService()
		srv := newTestServer(svc)
		defer srv.Close()
		mod := viewerToken(100)
		student := viewerToken(42)

		Convey("When checking access anonymously", func() {
			status, _ := do(t, http.MethodGet, srv.URL+"/moderator", "", "")

			So(status, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When a regular viewer checks access", func() {
			status, body := do(t, http.MethodGet, srv.URL+"/moderator", student, "")

			So(status, ShouldEqual, http.StatusOK)
			So(body, ShouldContainSubstring, `"access":false`)
		})

		Convey("When a moderator lists suggestions", func() {
			status, body := do(t, http.MethodGet, srv.URL+"/mod/suggestion", mod, "")

			So(status, ShouldEqual, http.StatusOK)
			So(body, ShouldContainSubstring, "great lecturer")
		})

		Convey("When a regular viewer lists suggestions", func() {
			status, _ := do(t, http.MethodGet, srv.URL+"/mod/suggestion", student, "")

			So(status, ShouldEqual, http.StatusForbidden)
		})

		Convey("When a moderator commits a suggestion", func() {
			status, _ := do(t, http.MethodPost, srv.URL+"/mod/suggestion/7/commit", mod, "")

			Convey("Then the suggestion is applied", func() {
				So(status, ShouldEqual, http.StatusCreated)
				So(svc.committed, ShouldResemble, []int64{7})
			})
		})

		Convey("When a moderator cancels a suggestion", func() {
			status, _ := do(t, http.MethodPost, srv.URL+"/mod/suggestion/7/cancel", mod, `{"status":"delayed"}`)

			So(status, ShouldEqual, http.StatusOK)
			So(svc.resolved[7], ShouldEqual, model.SuggestionDelayed)
		})

		Convey("When cancelling with an invalid status", func() {
			status, _ := do(t, http.MethodPost, srv.URL+"/mod/suggestion/7/cancel", mod, `{"status":"accepted"}`)

			So(status, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the suggestion does not exist", func() {
			status, _ := do(t, http.MethodPost, srv.URL+"/mod/suggestion/99/commit", mod, "")

			So(status, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestSuggestionEndpoint(t *testing.T) {
	Convey("Given a running API server", t, func() {
		srv := newTestServer(newFakeService())
		defer srv.Close()

		Convey("When submitting a complete suggestion", func() {
			body := `{"text":"great lecturer","teacher":{"title":"Иванов Иван"},"subject":{"title":"Алгебра"}}`
			status, resp := do(t, http.MethodPost, srv.URL+"/suggestion", "", body)

			So(status, ShouldEqual, http.StatusCreated)
			So(resp, ShouldContainSubstring, `"id":7`)
		})

		Convey("When the suggestion has no text", func() {
			body := `{"teacher":{"title":"Иванов Иван"},"subject":{"title":"Алгебра"}}`
			status, _ := do(t, http.MethodPost, srv.URL+"/suggestion", "", body)

			So(status, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestAuthEndpoints(t *testing.T) {
	Convey("Given a running API server", t, func() {
		srv := newTestServer(newFakeService())
		defer srv.Close()

		Convey("When logging in with valid credentials", func() {
			status, body := do(t, http.MethodPost, srv.URL+"/authp/login", "", `{"username":"student","password":"secret"}`)

			So(status, ShouldEqual, http.StatusOK)
			So(body, ShouldContainSubstring, `"access_token":"at"`)
		})

		Convey("When logging in with bad credentials", func() {
			status, _ := do(t, http.MethodPost, srv.URL+"/authp/login", "", `{"username":"student","password":"nope"}`)

			So(status, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When refreshing a valid token", func() {
			status, body := do(t, http.MethodPost, srv.URL+"/authp/refresh", "", `{"refresh_token":"rt"}`)

			So(status, ShouldEqual, http.StatusOK)
			So(body, ShouldContainSubstring, `"access_token":"at2"`)
		})

		Convey("When the refresh fails upstream", func() {
			status, _ := do(t, http.MethodPost, srv.URL+"/authp/refresh", "", `{"refresh_token":"stale"}`)

			So(status, ShouldEqual, http.StatusBadGateway)
		})
	})
}
