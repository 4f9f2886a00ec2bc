package identity_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/profboard/profboard/internal/adapters/identity"
)

func makeToken(claims map[string]any) string {
	header, _ := json.Marshal(map[string]any{"alg": "RS256", "typ": "JWT"})
	payload, _ := json.Marshal(claims)
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + ".c2ln"
}

func TestViewerFromToken(t *testing.T) {
	Convey("Given viewer tokens", t, func() {
		Convey("When the token carries an isu claim", func() {
			id, ok := identity.ViewerFromToken(makeToken(map[string]any{"isu": 368999}))

			Convey("Then the viewer id is extracted", func() {
				So(ok, ShouldBeTrue)
				So(id, ShouldEqual, 368999)
			})
		})

		Convey("When the token is empty", func() {
			id, ok := identity.ViewerFromToken("")

			Convey("Then the viewer is anonymous", func() {
				So(ok, ShouldBeFalse)
				So(id, ShouldEqual, 0)
			})
		})

		Convey("When the token is malformed", func() {
			id, ok := identity.ViewerFromToken("not-a-jwt")

			Convey("Then the viewer is anonymous", func() {
				So(ok, ShouldBeFalse)
				So(id, ShouldEqual, 0)
			})
		})

		Convey("When the isu claim is missing", func() {
			id, ok := identity.ViewerFromToken(makeToken(map[string]any{"sub": "abc"}))

			Convey("Then the viewer is anonymous", func() {
				So(ok, ShouldBeFalse)
				So(id, ShouldEqual, 0)
			})
		})

		Convey("When the isu claim is zero", func() {
			id, ok := identity.ViewerFromToken(makeToken(map[string]any{"isu": 0}))

			Convey("Then the viewer is anonymous", func() {
				So(ok, ShouldBeFalse)
				So(id, ShouldEqual, 0)
			})
		})
	})
}
