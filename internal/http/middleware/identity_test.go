package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-comment-rating/internal/domain"
)

const testJWTSecret = "test-secret-0123456789"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func identityRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Auth(secret), Voter())
	r.GET("/who", func(c *gin.Context) {
		k := VoterKeyFrom(c)
		c.JSON(http.StatusOK, gin.H{"kind": string(k.Kind), "id": k.ID})
	})
	return r
}

func whoAmI(t *testing.T, r http.Handler, authz string) (int, map[string]string) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	r.ServeHTTP(w, req)
	out := map[string]string{}
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
	}
	return w.Code, out
}

func TestAuth_ValidToken_UserVoter(t *testing.T) {
	r := identityRouter(testJWTSecret)
	tok := signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), jwt.MapClaims{
		"sub": "u-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	code, got := whoAmI(t, r, "Bearer "+tok)
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if got["kind"] != "user" || got["id"] != "u-42" {
		t.Fatalf("voter = %v; want user:u-42", got)
	}
}

func TestAuth_NumericUserIDClaim(t *testing.T) {
	r := identityRouter(testJWTSecret)
	tok := signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), jwt.MapClaims{"user_id": 42})
	code, got := whoAmI(t, r, "Bearer "+tok)
	if code != http.StatusOK || got["id"] != "42" {
		t.Fatalf("code=%d voter=%v; want user 42", code, got)
	}
}

func TestAuth_NoHeader_AnonVoter(t *testing.T) {
	r := identityRouter(testJWTSecret)
	code, got := whoAmI(t, r, "")
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if got["kind"] != "anon" || got["id"] != "203.0.113.7" {
		t.Fatalf("voter = %v; want anon:203.0.113.7", got)
	}
}

func TestAuth_Rejections(t *testing.T) {
	r := identityRouter(testJWTSecret)
	wrongKey := signToken(t, jwt.SigningMethodHS256, []byte("another-secret-xyz"), jwt.MapClaims{"sub": "u1"})
	noSubject := signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), jwt.MapClaims{"scope": "x"})
	expired := signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	badType := signToken(t, jwt.SigningMethodHS256, []byte(testJWTSecret), jwt.MapClaims{"sub": true})
	hs512 := signToken(t, jwt.SigningMethodHS512, []byte(testJWTSecret), jwt.MapClaims{"sub": "u1"})

	cases := map[string]string{
		"not bearer":   "Basic abc",
		"empty bearer": "Bearer   ",
		"garbage":      "Bearer not.a.jwt",
		"wrong key":    "Bearer " + wrongKey,
		"no subject":   "Bearer " + noSubject,
		"expired":      "Bearer " + expired,
		"bad claim":    "Bearer " + badType,
		"wrong alg":    "Bearer " + hs512,
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			req.Header.Set("Authorization", h)
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status=%d; want 401", w.Code)
			}
			var f Failure
			if err := json.Unmarshal(w.Body.Bytes(), &f); err != nil {
				t.Fatalf("json: %v", err)
			}
			if f.Success || f.Data.Code != "unauthorized" || f.Data.RequestID == "" {
				t.Fatalf("unexpected envelope: %+v", f)
			}
		})
	}
}

func TestAuth_EmptySecretDisables(t *testing.T) {
	r := identityRouter("")
	code, got := whoAmI(t, r, "Bearer whatever")
	if code != http.StatusOK || got["kind"] != "anon" {
		t.Fatalf("code=%d voter=%v; want anonymous pass-through", code, got)
	}
}

func TestVoterKeyFrom_WithoutVoterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "198.51.100.1:1234"

	if k := VoterKeyFrom(c); k != domain.AnonVoter("198.51.100.1") {
		t.Fatalf("anon key = %v", k)
	}
	c.Set(userIDKey, "7")
	if k := VoterKeyFrom(c); k != domain.UserVoter("7") {
		t.Fatalf("user key = %v", k)
	}
	if uid, ok := UserIDFrom(c); !ok || uid != "7" {
		t.Fatalf("UserIDFrom = %q,%v", uid, ok)
	}
}

func Test_voterKindOf(t *testing.T) {
	if got := voterKindOf(domain.UserVoter("1")); got != "user" {
		t.Fatalf("got %q", got)
	}
	if got := voterKindOf("nope"); got != "" {
		t.Fatalf("got %q", got)
	}
}
