package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-comment-rating/internal/domain"
	"github.com/tbourn/go-comment-rating/internal/i18n"
	"github.com/tbourn/go-comment-rating/internal/services"
)

// withLogger installs a request-scoped logger and request id the way the
// router's middleware would.
func withLogger(buf *bytes.Buffer, rid string) gin.HandlerFunc {
	lg := zerolog.New(buf)
	return func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Set("logger", &lg)
		c.Next()
	}
}

func decodeFailure(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("body is not a failure envelope: %v\n%s", err, w.Body)
	}
	if er.Success {
		t.Fatalf("failure envelope with success=true: %s", w.Body)
	}
	return er
}

func TestFail_OnlyServerErrorsAreLogged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		status int
		code   string
		key    i18n.Key
		logged bool
	}{
		{http.StatusInternalServerError, ErrCodeInternal, i18n.MsgGeneric, true},
		{http.StatusNotFound, ErrCodeNotFound, i18n.MsgRouteNotFound, false},
		{http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, i18n.MsgMethodNotAllow, false},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			var buf bytes.Buffer
			r := gin.New()
			r.Use(withLogger(&buf, "rid-"+tc.code))
			r.GET("/x", func(c *gin.Context) { Fail(c, tc.status, tc.code, tc.key) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			if w.Code != tc.status {
				t.Fatalf("status = %d; want %d", w.Code, tc.status)
			}
			er := decodeFailure(t, w)
			if er.Data.Code != tc.code || er.Data.Message != string(tc.key) || er.Data.RequestID != "rid-"+tc.code {
				t.Fatalf("unexpected envelope: %+v", er.Data)
			}
			if got := strings.Contains(buf.String(), `"level":"error"`); got != tc.logged {
				t.Fatalf("logged = %v; want %v\n%s", got, tc.logged, buf.String())
			}
		})
	}
}

func TestFailService_MapsServiceErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrInvalidVote, http.StatusBadRequest, ErrCodeInvalidVote},
		{services.ErrInvalidCommentID, http.StatusBadRequest, ErrCodeInvalidComment},
		{fmt.Errorf("cast: %w", services.ErrCommentNotFound), http.StatusNotFound, ErrCodeNotFound},
		{services.ErrIdempotencyConflict, http.StatusConflict, ErrCodeIdemConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal},
	}
	h := New(nil, nil, Options{})
	for _, tc := range cases {
		var buf bytes.Buffer
		r := gin.New()
		r.Use(withLogger(&buf, "rid"))
		r.GET("/x", func(c *gin.Context) { h.failService(c, tc.err) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

		if w.Code != tc.status || decodeFailure(t, w).Data.Code != tc.code {
			t.Fatalf("%v: got %d %s", tc.err, w.Code, w.Body)
		}
		if tc.status == http.StatusInternalServerError && !strings.Contains(buf.String(), "disk on fire") {
			t.Fatalf("cause not logged: %s", buf.String())
		}
	}
}

func TestHandlersFail_FailureStatusOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, statusOK := range []bool{false, true} {
		h := New(nil, nil, Options{FailureStatusOK: statusOK})
		r := gin.New()
		r.GET("/x", func(c *gin.Context) {
			h.fail(c, http.StatusNotFound, ErrCodeNotFound, i18n.MsgCommentNotFound)
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

		want := http.StatusNotFound
		if statusOK {
			want = http.StatusOK
		}
		if w.Code != want {
			t.Fatalf("FailureStatusOK=%v: status = %d; want %d", statusOK, w.Code, want)
		}
		if decodeFailure(t, w).Data.Code != ErrCodeNotFound {
			t.Fatalf("unexpected body: %s", w.Body)
		}
	}
}

func TestNewVoteResponse_JSON(t *testing.T) {
	up, down := domain.Upvote, domain.Downvote
	cases := []struct {
		res  *services.VoteResult
		want string
	}{
		{
			&services.VoteResult{Votes: domain.NewVoteCounts(3, 1), UserVote: &up},
			`{"success":true,"data":{"votes":{"upvotes":3,"downvotes":1,"total":2},"user_vote":1}}`,
		},
		{
			&services.VoteResult{Votes: domain.NewVoteCounts(0, 2), UserVote: &down},
			`{"success":true,"data":{"votes":{"upvotes":0,"downvotes":2,"total":-2},"user_vote":-1}}`,
		},
		{
			&services.VoteResult{Votes: domain.NewVoteCounts(0, 0)},
			`{"success":true,"data":{"votes":{"upvotes":0,"downvotes":0,"total":0},"user_vote":0}}`,
		},
	}
	for _, tc := range cases {
		b, err := json.Marshal(newVoteResponse(tc.res))
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != tc.want {
			t.Fatalf("got  %s\nwant %s", b, tc.want)
		}
	}
}
