package service_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/profboard/profboard/internal/adapters/repository"
	service "github.com/profboard/profboard/internal/app"
	"github.com/profboard/profboard/internal/domain/ledger"
	"github.com/profboard/profboard/internal/domain/model"
	"github.com/profboard/profboard/internal/domain/types"
	"github.com/profboard/profboard/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// seedCatalog fills a MemStore with one linked teacher/subject pair and a
// comment, returning the ids.
func seedCatalog(t *testing.T, store *repository.MemStore) (teacherID, subjectID, commentID int64) {
	t.Helper()
	ctx := context.Background()

	teacherID, err := store.UpsertTeacher(ctx, nil, "Иванов Иван Иванович")
	if err != nil {
		t.Fatalf("seed teacher: %v", err)
	}
	subjectID, err = store.UpsertSubject(ctx, nil, "Математический анализ")
	if err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	if err := store.LinkTeacherSubject(ctx, teacherID, subjectID); err != nil {
		t.Fatalf("seed link: %v", err)
	}
	commentID, err = store.InsertComment(ctx, repository.NewComment{
		TeacherID:   teacherID,
		SubjectID:   subjectID,
		SourceTitle: "vk",
		Date:        "18:45 12.03.2024",
		Text:        "отличный преподаватель",
	})
	if err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	return teacherID, subjectID, commentID
}

func startService(t *testing.T, store *repository.MemStore) *service.Service {
	t.Helper()
	svc := service.New(
		service.WithStore(store),
		service.WithSnapshotRefreshInterval(time.Hour),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func TestServiceSearch(t *testing.T) {
	Convey("Given a started service over a seeded catalog", t, func() {
		store := repository.NewMemStore()
		seedCatalog(t, store)
		svc := startService(t, store)
		ctx := context.Background()

		Convey("When searching for the teacher by name", func() {
			results := svc.Search(ctx, "Иванов", types.KindTeacher)

			Convey("Then the teacher is returned", func() {
				So(results, ShouldHaveLength, 1)
				So(results[0].Title, ShouldEqual, "Иванов Иван Иванович")
				So(results[0].Type, ShouldEqual, types.KindTeacher)
			})
		})

		Convey("When searching without a category filter", func() {
			results := svc.Search(ctx, "анализ", "")

			Convey("Then subjects are searchable too", func() {
				So(results, ShouldHaveLength, 1)
				So(results[0].Type, ShouldEqual, types.KindSubject)
			})
		})

		Convey("When nothing matches", func() {
			results := svc.Search(ctx, "кафедра квантовой магии", "")

			So(results, ShouldBeEmpty)
		})
	})
}

func TestServiceTrees(t *testing.T) {
	Convey("Given a started service over a seeded catalog", t, func() {
		store := repository.NewMemStore()
		teacherID, subjectID, commentID := seedCatalog(t, store)
		store.SeedSummary(teacherID, "Стиль", "строгий")
		svc := startService(t, store)
		ctx := context.Background()

		Convey("When assembling the teacher tree anonymously", func() {
			teacher, err := svc.TeacherTree(ctx, teacherID, 0)

			Convey("Then the tree is complete and impersonal", func() {
				So(err, ShouldBeNil)
				So(teacher.Name, ShouldEqual, "Иванов Иван Иванович")
				So(teacher.Summaries, ShouldHaveLength, 1)
				So(teacher.Comments, ShouldHaveLength, 1)
				So(teacher.UserRating, ShouldBeNil)
				So(teacher.Comments[0].UserKarma, ShouldBeNil)
			})
		})

		Convey("When a viewer has voted before", func() {
			_, err := svc.RateTeacher(ctx, 42, teacherID, 5)
			So(err, ShouldBeNil)
			_, err = svc.VoteComment(ctx, 42, commentID, 1)
			So(err, ShouldBeNil)

			teacher, err := svc.TeacherTree(ctx, teacherID, 42)

			Convey("Then their overlay values come back", func() {
				So(err, ShouldBeNil)
				So(teacher.UserRating, ShouldNotBeNil)
				So(*teacher.UserRating, ShouldEqual, 5)
				So(teacher.Comments[0].UserKarma, ShouldNotBeNil)
				So(*teacher.Comments[0].UserKarma, ShouldEqual, 1)
			})
		})

		Convey("When assembling the subject tree", func() {
			subject, err := svc.SubjectTree(ctx, subjectID, 0)

			Convey("Then its teachers carry their comments", func() {
				So(err, ShouldBeNil)
				So(subject.Title, ShouldEqual, "Математический анализ")
				So(subject.Teachers, ShouldHaveLength, 1)
				So(subject.Teachers[0].Comments, ShouldHaveLength, 1)
			})
		})

		Convey("When the id is unknown", func() {
			_, err := svc.TeacherTree(ctx, 999, 0)

			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestServiceVotes(t *testing.T) {
	Convey("Given a started service over a seeded catalog", t, func() {
		store := repository.NewMemStore()
		teacherID, _, commentID := seedCatalog(t, store)
		svc := startService(t, store)
		ctx := context.Background()

		Convey("When two viewers rate the same teacher", func() {
			_, err := svc.RateTeacher(ctx, 1, teacherID, 5)
			So(err, ShouldBeNil)
			result, err := svc.RateTeacher(ctx, 2, teacherID, 3)

			Convey("Then the aggregate is the mean of both", func() {
				So(err, ShouldBeNil)
				So(result.Rating, ShouldEqual, 4)
				So(result.UserRating, ShouldEqual, 3)
			})
		})

		Convey("When a viewer re-rates", func() {
			_, err := svc.RateTeacher(ctx, 1, teacherID, 5)
			So(err, ShouldBeNil)
			result, err := svc.RateTeacher(ctx, 1, teacherID, 2)

			Convey("Then the old rating is replaced, not added", func() {
				So(err, ShouldBeNil)
				So(result.Rating, ShouldEqual, 2)
				So(result.UserRating, ShouldEqual, 2)
			})
		})

		Convey("When the rating is out of range", func() {
			_, err := svc.RateTeacher(ctx, 1, teacherID, 6)

			So(errors.Is(err, ledger.ErrRatingRange), ShouldBeTrue)
		})

		Convey("When karma votes accumulate", func() {
			_, err := svc.VoteComment(ctx, 1, commentID, 1)
			So(err, ShouldBeNil)
			result, err := svc.VoteComment(ctx, 2, commentID, -1)

			Convey("Then the aggregate is the sum", func() {
				So(err, ShouldBeNil)
				So(result.Karma, ShouldEqual, 0)
				So(result.UserKarma, ShouldEqual, -1)
			})
		})

		Convey("When the target does not exist", func() {
			_, err := svc.RateTeacher(ctx, 1, 999, 4)

			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestServiceRestart(t *testing.T) {
	Convey("Given a service that was stopped and started again", t, func() {
		store := repository.NewMemStore()
		seedCatalog(t, store)
		svc := service.New(
			service.WithStore(store),
			service.WithSnapshotRefreshInterval(10*time.Millisecond),
		)
		ctx := context.Background()

		So(svc.Start(ctx), ShouldBeNil)
		svc.Stop()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When the catalog changes after the restart", func() {
			_, err := store.UpsertTeacher(ctx, nil, "Сидоров Сидор Сидорович")
			So(err, ShouldBeNil)

			Convey("Then the background refresher picks it up", func() {
				deadline := time.Now().Add(2 * time.Second)
				var results []types.SearchItem
				for time.Now().Before(deadline) {
					results = svc.Search(ctx, "Сидоров", types.KindTeacher)
					if len(results) > 0 {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				So(results, ShouldHaveLength, 1)
				So(results[0].Title, ShouldEqual, "Сидоров Сидор Сидорович")
			})
		})
	})
}

func TestServiceSuggestions(t *testing.T) {
	Convey("Given a started service with a moderator", t, func() {
		store := repository.NewMemStore()
		seedCatalog(t, store)
		store.SeedModerator(100)
		svc := startService(t, store)
		ctx := context.Background()

		Convey("Then moderator access reflects the membership set", func() {
			access, err := svc.IsModerator(ctx, 100)
			So(err, ShouldBeNil)
			So(access, ShouldBeTrue)

			access, err = svc.IsModerator(ctx, 42)
			So(err, ShouldBeNil)
			So(access, ShouldBeFalse)
		})

		Convey("When a suggestion is submitted and committed", func() {
			id, err := svc.AddSuggestion(ctx, model.Suggestion{
				ViewerID: 42,
				Text:     "ведёт интересные лекции",
				Teacher:  model.SuggestionRef{Title: "Петров Пётр Петрович"},
				Subject:  model.SuggestionRef{Title: "Линейная алгебра"},
			})
			So(err, ShouldBeNil)

			pending, err := svc.ListSuggestions(ctx, model.SuggestionCheck)
			So(err, ShouldBeNil)
			So(pending, ShouldHaveLength, 1)
			So(pending[0].CreatedAt, ShouldNotBeEmpty)

			err = svc.CommitSuggestion(ctx, 100, id)
			So(err, ShouldBeNil)

			Convey("Then the catalog gains the new entries", func() {
				results := svc.Search(ctx, "Петров", types.KindTeacher)
				So(results, ShouldHaveLength, 1)

				teacher, err := svc.TeacherTree(ctx, results[0].ID, 0)
				So(err, ShouldBeNil)
				So(teacher.Comments, ShouldHaveLength, 1)
				So(teacher.Comments[0].Text, ShouldEqual, "ведёт интересные лекции")
				So(teacher.Comments[0].Subject.Title, ShouldEqual, "Линейная алгебра")
			})

			Convey("And the suggestion leaves the review queue", func() {
				sug, err := svc.GetSuggestion(ctx, id)
				So(err, ShouldBeNil)
				So(sug.Status, ShouldEqual, model.SuggestionAccepted)

				err = svc.CommitSuggestion(ctx, 100, id)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a suggestion is rejected", func() {
			id, err := svc.AddSuggestion(ctx, model.Suggestion{
				Text:    "спам",
				Teacher: model.SuggestionRef{Title: "Некто"},
				Subject: model.SuggestionRef{Title: "Нечто"},
			})
			So(err, ShouldBeNil)

			err = svc.ResolveSuggestion(ctx, 100, id, model.SuggestionRejected)
			So(err, ShouldBeNil)

			Convey("Then it no longer appears in the pending list", func() {
				pending, err := svc.ListSuggestions(ctx, model.SuggestionCheck, model.SuggestionDelayed)
				So(err, ShouldBeNil)
				So(pending, ShouldBeEmpty)
			})
		})
	})
}
