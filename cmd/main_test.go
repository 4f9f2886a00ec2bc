package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/profboard/profboard/internal/adapters/http/api"
	"github.com/profboard/profboard/internal/adapters/http/site"
	"github.com/profboard/profboard/internal/adapters/http/swagger"
	"github.com/profboard/profboard/internal/adapters/identity"
	"github.com/profboard/profboard/internal/adapters/repository"
	app "github.com/profboard/profboard/internal/app"
	"github.com/profboard/profboard/internal/config"
	"github.com/profboard/profboard/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestWiring(t *testing.T) {
	convey.Convey("Given the full route wiring over an in-memory store", t, func() {
		ctx := context.Background()

		store := repository.NewMemStore()
		teacherID, err := store.UpsertTeacher(ctx, nil, "Сидоров Сидор Сидорович")
		convey.So(err, convey.ShouldBeNil)

		svc := app.New(
			app.WithStore(store),
			app.WithSnapshotRefreshInterval(time.Hour),
		)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, identity.NewProvider()).Register(mux)
		swagger.Register(ctx, mux)
		site.Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		convey.Convey("Then the landing page answers at /", func() {
			resp, err := http.Get(srv.URL + "/")
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("And the API docs are served", func() {
			resp, err := http.Get(srv.URL + "/api-docs")
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("And search finds the seeded teacher", func() {
			resp, err := http.Get(srv.URL + "/search?query=сидоров")
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("And the teacher page answers", func() {
			resp, err := http.Get(fmt.Sprintf("%s/teacher/%d", srv.URL, teacherID))
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("And metrics are exposed", func() {
			resp, err := http.Get(srv.URL + "/healthz")
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})
	})
}

func TestConfigDefaultsForMain(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		cfg, err := config.Load(context.Background())
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.Addr, convey.ShouldNotBeEmpty)
		convey.So(cfg.SnapshotRefreshSec, convey.ShouldBeGreaterThan, 0)
	})
}
