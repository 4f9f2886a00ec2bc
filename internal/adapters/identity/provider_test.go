package identity_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/profboard/profboard/internal/adapters/identity"
)

// fakeSSO stands in for the university identity server: the auth page
// embeds a loginAction URL, posting the right credentials answers with a
// redirect carrying a code, and the token endpoint trades codes and
// refresh tokens for token pairs.
type fakeSSO struct {
	srv      *httptest.Server
	username string
	password string
}

func newFakeSSO(username, password string) *fakeSSO {
	f := &fakeSSO{username: username, password: password}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", f.authPage)
	mux.HandleFunc("/login", f.login)
	mux.HandleFunc("/token", f.token)
	f.srv = httptest.NewServer(mux)
	return f
}

func (f *fakeSSO) authPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("code_challenge") == "" {
		http.Error(w, "missing challenge", http.StatusBadRequest)
		return
	}
	// The real login page embeds the URL with every slash escaped.
	action := strings.ReplaceAll(f.srv.URL+"/login", "/", `\u002f`)
	fmt.Fprintf(w, `<script>var cfg = {"loginAction": "%s"};</script>`, action)
}

func (f *fakeSSO) login(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("username") != f.username || r.FormValue("password") != f.password {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "invalid credentials page")
		return
	}
	http.Redirect(w, r, "https://my.itmo.ru/login/callback?code=test-code", http.StatusFound)
}

func (f *fakeSSO) token(w http.ResponseWriter, r *http.Request) {
	switch r.FormValue("grant_type") {
	case "authorization_code":
		if r.FormValue("code") != "test-code" || r.FormValue("code_verifier") == "" {
			http.Error(w, "bad code", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"access_token":"at-1","refresh_token":"rt-1"}`)
	case "refresh_token":
		if r.FormValue("refresh_token") != "rt-1" {
			http.Error(w, "bad refresh", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"access_token":"at-2","refresh_token":"rt-2"}`)
	default:
		http.Error(w, "bad grant", http.StatusBadRequest)
	}
}

func TestProviderLogin(t *testing.T) {
	Convey("Given an SSO provider against a test identity server", t, func() {
		sso := newFakeSSO("student", "secret")
		defer sso.srv.Close()
		ctx := context.Background()
		provider := identity.NewProvider(identity.WithBaseURL(sso.srv.URL))

		Convey("When logging in with valid credentials", func() {
			pair, err := provider.Login(ctx, "student", "secret")

			Convey("Then a token pair is returned", func() {
				So(err, ShouldBeNil)
				So(pair.AccessToken, ShouldEqual, "at-1")
				So(pair.RefreshToken, ShouldEqual, "rt-1")
			})
		})

		Convey("When logging in with a wrong password", func() {
			_, err := provider.Login(ctx, "student", "wrong")

			Convey("Then the credentials are rejected", func() {
				So(errors.Is(err, identity.ErrInvalidCredentials), ShouldBeTrue)
			})
		})

		Convey("When the identity server is unreachable", func() {
			dead := identity.NewProvider(identity.WithBaseURL("http://127.0.0.1:1"))
			_, err := dead.Login(ctx, "student", "secret")

			Convey("Then the failure is an upstream error", func() {
				So(errors.Is(err, identity.ErrUpstream), ShouldBeTrue)
			})
		})
	})
}

func TestProviderRefresh(t *testing.T) {
	Convey("Given an SSO provider against a test identity server", t, func() {
		sso := newFakeSSO("student", "secret")
		defer sso.srv.Close()
		ctx := context.Background()
		provider := identity.NewProvider(identity.WithBaseURL(sso.srv.URL))

		Convey("When refreshing with a valid refresh token", func() {
			pair, err := provider.Refresh(ctx, "rt-1")

			Convey("Then a fresh token pair is returned", func() {
				So(err, ShouldBeNil)
				So(pair.AccessToken, ShouldEqual, "at-2")
				So(pair.RefreshToken, ShouldEqual, "rt-2")
			})
		})

		Convey("When refreshing with a stale refresh token", func() {
			_, err := provider.Refresh(ctx, "expired")

			Convey("Then the failure is an upstream error", func() {
				So(errors.Is(err, identity.ErrUpstream), ShouldBeTrue)
			})
		})
	})
}
