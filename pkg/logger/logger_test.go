package logger_test

import (
	"context"
	"testing"

	"github.com/profboard/profboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given an initialized global logger", t, func() {
		So(logger.Init(), ShouldBeNil)

		Convey("Then Get returns a usable logger", func() {
			l := logger.Get()
			So(l, ShouldNotBeNil)
			So(func() {
				l.Info(context.Background(), "hello",
					logger.String("k", "v"),
					logger.Int("n", 1),
					logger.Int64("id", 42),
					logger.Float64("score", 4.5),
					logger.Any("obj", struct{}{}),
				)
			}, ShouldNotPanic)
		})

		Convey("Then Named returns a scoped logger", func() {
			l := logger.Named("search")
			So(l, ShouldNotBeNil)
			So(func() { l.Debug(context.Background(), "scoped") }, ShouldNotPanic)
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given the global level setter", t, func() {
		So(logger.Init(), ShouldBeNil)

		Convey("When setting known levels", func() {
			for _, lvl := range []string{"debug", "info", "warn", "warning", "error", ""} {
				So(logger.SetLevelString(lvl), ShouldBeNil)
			}
		})

		Convey("When setting an unknown level", func() {
			So(logger.SetLevelString("loud"), ShouldNotBeNil)
		})
	})
}
