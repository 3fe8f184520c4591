package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func sessionRouter(opt SessionOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Session(opt))
	r.GET("/s", func(c *gin.Context) { c.String(http.StatusOK, SessionIDFrom(c)) })
	return r
}

func TestSession_IssuesCookieWhenMissing(t *testing.T) {
	r := sessionRouter(SessionOptions{CookieName: "sid", Secure: true, MaxAge: 60})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s", nil))

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies=%d; want 1", len(cookies))
	}
	ck := cookies[0]
	if ck.Name != "sid" || !ck.HttpOnly || !ck.Secure || ck.SameSite != http.SameSiteLaxMode || ck.MaxAge != 60 {
		t.Fatalf("unexpected cookie: %+v", ck)
	}
	if uuid.Validate(ck.Value) != nil {
		t.Fatalf("cookie value is not a uuid: %q", ck.Value)
	}
	if w.Body.String() != ck.Value {
		t.Fatalf("session id in context %q != cookie %q", w.Body.String(), ck.Value)
	}
}

func TestSession_KeepsValidCookie(t *testing.T) {
	r := sessionRouter(SessionOptions{})
	sid := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/s", nil)
	req.AddCookie(&http.Cookie{Name: "cr_session", Value: sid})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if len(w.Result().Cookies()) != 0 {
		t.Fatalf("unexpected Set-Cookie for a valid session")
	}
	if w.Body.String() != sid {
		t.Fatalf("session id = %q; want %q", w.Body.String(), sid)
	}
}

func TestSession_ReplacesMalformedCookie(t *testing.T) {
	r := sessionRouter(SessionOptions{})
	req := httptest.NewRequest(http.MethodGet, "/s", nil)
	req.AddCookie(&http.Cookie{Name: "cr_session", Value: "forged"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value == "forged" {
		t.Fatalf("expected a fresh cookie, got %+v", cookies)
	}
}

func TestSessionIDFrom_Empty(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := SessionIDFrom(c); got != "" {
		t.Fatalf("got %q", got)
	}
}
