package identity

import (
	"encoding/json"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ViewerFromToken extracts the viewer id from an identity token's `isu`
// claim. Signature verification is delegated to the SSO that issued the
// token; this service only introspects the payload. An empty, malformed or
// claimless token resolves to an anonymous viewer, never an error.
func ViewerFromToken(token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, false
	}
	switch v := claims["isu"].(type) {
	case float64:
		if v == 0 {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil || n == 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
