package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-comment-rating/internal/domain"
	"github.com/tbourn/go-comment-rating/internal/repo"
)

// ---------- test helpers ----------

// voteRows counts the stored rows for (commentID, voter); the unique index
// keeps it at 0 or 1.
func voteRows(t *testing.T, db *gorm.DB, commentID int64, voter domain.VoterKey) int64 {
	t.Helper()
	var n int64
	err := db.Model(&domain.Vote{}).
		Where("comment_id = ? AND voter_kind = ? AND voter_id = ?", commentID, string(voter.Kind), voter.ID).
		Count(&n).Error
	if err != nil {
		t.Fatalf("count vote rows: %v", err)
	}
	return n
}

func newVoteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:votesvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newVoteSvc(t *testing.T, comments ...int64) (*VoteService, *gorm.DB) {
	t.Helper()
	db := newVoteDB(t)
	for _, id := range comments {
		if err := repo.EnsureComment(context.Background(), db, id); err != nil {
			t.Fatalf("seed comment %d: %v", id, err)
		}
	}
	return NewVoteService(db, 0), db
}

func mustCast(t *testing.T, s *VoteService, commentID int64, v domain.VoterKey, value int) *VoteResult {
	t.Helper()
	res, err := s.Cast(context.Background(), commentID, v, value, "")
	if err != nil {
		t.Fatalf("Cast(%d, %s, %d): %v", commentID, v, value, err)
	}
	return res
}

func wantState(t *testing.T, res *VoteResult, up, down, total int64, userVote int) {
	t.Helper()
	want := domain.VoteCounts{Upvotes: up, Downvotes: down, Total: total}
	if res.Votes != want || res.UserVoteInt() != userVote {
		t.Fatalf("state = %+v user_vote=%d; want %+v user_vote=%d", res.Votes, res.UserVoteInt(), want, userVote)
	}
}

// ---------- Cast() ----------

func TestVoteService_Scenario(t *testing.T) {
	s, _ := newVoteSvc(t, 42)
	a := domain.UserVoter("A")
	b := domain.UserVoter("B")

	wantState(t, mustCast(t, s, 42, a, 1), 1, 0, 1, 1)
	wantState(t, mustCast(t, s, 42, a, 1), 0, 0, 0, 0)
	wantState(t, mustCast(t, s, 42, b, -1), 0, 1, -1, -1)
	wantState(t, mustCast(t, s, 42, a, -1), 0, 2, -2, -1)
}

func TestVoteService_ToggleOffLeavesNoRecord(t *testing.T) {
	s, db := newVoteSvc(t, 1)
	v := domain.AnonVoter("203.0.113.7")

	for _, val := range []int{1, -1} {
		mustCast(t, s, 1, v, val)
		res := mustCast(t, s, 1, v, val)
		if res.UserVote != nil || res.Decision.Op != domain.OpDelete {
			t.Fatalf("value %d: expected toggle-off, got %+v", val, res)
		}
		n := voteRows(t, db, 1, v)
		if n != 0 {
			t.Fatalf("value %d: rows after toggle-off = %d", val, n)
		}
	}
}

func TestVoteService_SwitchKeepsOneRecord(t *testing.T) {
	s, db := newVoteSvc(t, 1)
	v := domain.UserVoter("u")

	up := mustCast(t, s, 1, v, 1)
	down := mustCast(t, s, 1, v, -1)
	if down.Decision.Op != domain.OpUpdate {
		t.Fatalf("decision = %v; want update", down.Decision.Op)
	}
	if up.Votes.Total-down.Votes.Total != 2 {
		t.Fatalf("total moved %d -> %d; want a drop of 2", up.Votes.Total, down.Votes.Total)
	}
	n := voteRows(t, db, 1, v)
	val, _ := repo.GetVoteValue(context.Background(), db, 1, v)
	if n != 1 || val == nil || *val != domain.Downvote {
		t.Fatalf("rows=%d value=%v; want one row valued -1", n, val)
	}
}

func TestVoteService_RejectsInvalidValueWithoutSideEffect(t *testing.T) {
	s, db := newVoteSvc(t, 1)
	v := domain.UserVoter("u")
	mustCast(t, s, 1, v, 1)
	mustCast(t, s, 1, domain.UserVoter("w"), -1)

	before, _ := repo.CountVotes(context.Background(), db, 1)
	for _, bad := range []int{0, 2, -2, 100} {
		res, err := s.Cast(context.Background(), 1, v, bad, "")
		if !errors.Is(err, ErrInvalidVote) || res != nil {
			t.Fatalf("Cast(%d) = %+v, %v; want ErrInvalidVote", bad, res, err)
		}
	}
	after, _ := repo.CountVotes(context.Background(), db, 1)
	if before != after {
		t.Fatalf("counts changed %+v -> %+v", before, after)
	}
	if val, _ := repo.GetVoteValue(context.Background(), db, 1, v); val == nil || *val != domain.Upvote {
		t.Fatalf("stored vote changed to %v", val)
	}
}

func TestVoteService_InvalidValueCheckedBeforeComment(t *testing.T) {
	s, _ := newVoteSvc(t)
	if _, err := s.Cast(context.Background(), 999, domain.UserVoter("u"), 0, ""); !errors.Is(err, ErrInvalidVote) {
		t.Fatalf("err = %v; want ErrInvalidVote", err)
	}
}

func TestVoteService_CommentChecks(t *testing.T) {
	s, db := newVoteSvc(t)
	ctx := context.Background()

	if _, err := s.Cast(ctx, 0, domain.UserVoter("u"), 1, ""); !errors.Is(err, ErrInvalidCommentID) {
		t.Fatalf("id 0 err = %v; want ErrInvalidCommentID", err)
	}
	if _, err := s.Cast(ctx, 77, domain.UserVoter("u"), 1, ""); !errors.Is(err, ErrCommentNotFound) {
		t.Fatalf("unknown comment err = %v; want ErrCommentNotFound", err)
	}
	var n int64
	db.Model(&domain.Vote{}).Count(&n)
	if n != 0 {
		t.Fatalf("rows = %d; want 0", n)
	}
}

func TestVoteService_UniquenessAcrossSequences(t *testing.T) {
	s, db := newVoteSvc(t, 5)
	v := domain.UserVoter("seq")
	seq := []int{1, 1, -1, -1, 1, -1, 1, 1, -1}
	for _, val := range seq {
		mustCast(t, s, 5, v, val)
		if n := voteRows(t, db, 5, v); n > 1 {
			t.Fatalf("rows = %d after %d", n, val)
		}
	}
}

func TestVoteService_AggregateMatchesRows(t *testing.T) {
	s, db := newVoteSvc(t, 9)
	for i := 0; i < 12; i++ {
		val := 1
		if i%3 == 0 {
			val = -1
		}
		mustCast(t, s, 9, domain.UserVoter(fmt.Sprintf("u%d", i)), val)
	}
	res, err := s.State(context.Background(), 9, domain.AnonVoter("x"))
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	var up, down int64
	db.Model(&domain.Vote{}).Where("comment_id = ? AND value = 1", 9).Count(&up)
	db.Model(&domain.Vote{}).Where("comment_id = ? AND value = -1", 9).Count(&down)
	if res.Votes.Upvotes != up || res.Votes.Downvotes != down || res.Votes.Total != up-down {
		t.Fatalf("aggregate %+v; rows up=%d down=%d", res.Votes, up, down)
	}
	if res.UserVote != nil {
		t.Fatalf("non-voter sees user_vote %v", *res.UserVote)
	}
}

func TestVoteService_UserAndAnonDoNotCollide(t *testing.T) {
	s, _ := newVoteSvc(t, 3)
	mustCast(t, s, 3, domain.UserVoter("10.0.0.1"), 1)
	res := mustCast(t, s, 3, domain.AnonVoter("10.0.0.1"), 1)
	wantState(t, res, 2, 0, 2, 1)
}

func TestVoteService_ConcurrentDistinctVoters(t *testing.T) {
	s, db := newVoteSvc(t, 42)
	const voters = 50

	var (
		wg   sync.WaitGroup
		errs = make(chan error, voters)
		sum  int64
		mu   sync.Mutex
	)
	for i := 0; i < voters; i++ {
		val := 1
		if i%4 == 0 {
			val = -1
		}
		mu.Lock()
		sum += int64(val)
		mu.Unlock()

		wg.Add(1)
		go func(i, val int) {
			defer wg.Done()
			_, err := s.Cast(context.Background(), 42, domain.UserVoter(fmt.Sprintf("voter-%d", i)), val, "")
			errs <- err
		}(i, val)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent cast: %v", err)
		}
	}

	var rows int64
	db.Model(&domain.Vote{}).Where("comment_id = ?", 42).Count(&rows)
	if rows != voters {
		t.Fatalf("rows = %d; want %d", rows, voters)
	}
	counts, _ := repo.CountVotes(context.Background(), db, 42)
	if counts.Total != sum {
		t.Fatalf("total = %d; want %d", counts.Total, sum)
	}
}

func TestVoteService_ConcurrentSameVoterSerializes(t *testing.T) {
	s, db := newVoteSvc(t, 8)
	v := domain.AnonVoter("198.51.100.23")
	const n = 20 // even: every insert is matched by a toggle-off

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Cast(context.Background(), 8, v, 1, ""); err != nil {
				t.Errorf("cast: %v", err)
			}
		}()
	}
	wg.Wait()

	rows := voteRows(t, db, 8, v)
	if rows != 0 {
		t.Fatalf("rows = %d; want 0 after %d identical votes", rows, n)
	}
	if s.locks.size() != 0 {
		t.Fatalf("lock entries leaked: %d", s.locks.size())
	}
}

func TestVoteService_StoreErrorLeavesNothing(t *testing.T) {
	s, db := newVoteSvc(t, 4)
	v := domain.UserVoter("u")

	if err := db.Callback().Create().Before("gorm:create").Register("test:fail_create", func(tx *gorm.DB) {
		if tx.Statement.Table == "votes" {
			_ = tx.AddError(errors.New("disk on fire"))
		}
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	before := testutil.ToFloat64(voteFailures.WithLabelValues("store"))
	res, err := s.Cast(context.Background(), 4, v, 1, "")
	if !errors.Is(err, ErrStore) || res != nil {
		t.Fatalf("Cast = %+v, %v; want ErrStore", res, err)
	}
	if got := testutil.ToFloat64(voteFailures.WithLabelValues("store")); got != before+1 {
		t.Fatalf("store failures = %v; want %v", got, before+1)
	}
	if n := voteRows(t, db, 4, v); n != 0 {
		t.Fatalf("rows = %d; want 0", n)
	}
}

func TestVoteService_ReadErrorIsStoreError(t *testing.T) {
	s, db := newVoteSvc(t, 4)
	if err := db.Callback().Query().Before("gorm:query").Register("test:fail_query", func(tx *gorm.DB) {
		_ = tx.AddError(errors.New("read failed"))
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}
	if _, err := s.State(context.Background(), 4, domain.UserVoter("u")); !errors.Is(err, ErrStore) {
		t.Fatalf("State err = %v; want ErrStore", err)
	}
}

func TestVoteService_IdempotentReplay(t *testing.T) {
	s, db := newVoteSvc(t, 6)
	ctx := context.Background()
	v := domain.UserVoter("retry")

	first, err := s.Cast(ctx, 6, v, 1, "req-1")
	if err != nil || first.Replayed {
		t.Fatalf("first = %+v, %v", first, err)
	}
	again, err := s.Cast(ctx, 6, v, 1, "req-1")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !again.Replayed || again.Decision.Op != 0 {
		t.Fatalf("expected replay without decision, got %+v", again)
	}
	wantState(t, again, 1, 0, 1, 1)

	// a fresh key applies the transition again
	off, err := s.Cast(ctx, 6, v, 1, "req-2")
	if err != nil || off.Replayed {
		t.Fatalf("fresh key = %+v, %v", off, err)
	}
	wantState(t, off, 0, 0, 0, 0)

	var recs int64
	db.Model(&domain.Idempotency{}).Count(&recs)
	if recs != 2 {
		t.Fatalf("idempotency records = %d; want 2", recs)
	}
}

func TestVoteService_IdempotencyKeyBoundToValue(t *testing.T) {
	s, db := newVoteSvc(t, 7)
	ctx := context.Background()
	v := domain.AnonVoter("sess-7")

	if _, err := s.Cast(ctx, 7, v, 1, "req-1"); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := s.Cast(ctx, 7, v, -1, "req-1"); !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("opposite value err = %v; want ErrIdempotencyConflict", err)
	}
	st, err := s.State(ctx, 7, v)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	wantState(t, st, 1, 0, 1, 1)
	if rows := voteRows(t, db, 7, v); rows != 1 {
		t.Fatalf("vote rows = %d; want 1", rows)
	}

	// the original value is still a plain replay
	again, err := s.Cast(ctx, 7, v, 1, "req-1")
	if err != nil || !again.Replayed {
		t.Fatalf("replay = %+v, %v", again, err)
	}
}

func TestVoteService_MetricsCountDecisions(t *testing.T) {
	s, _ := newVoteSvc(t, 12)
	v := domain.UserVoter("m")

	ins := testutil.ToFloat64(votesApplied.WithLabelValues("insert"))
	upd := testutil.ToFloat64(votesApplied.WithLabelValues("update"))
	del := testutil.ToFloat64(votesApplied.WithLabelValues("delete"))

	mustCast(t, s, 12, v, 1)
	mustCast(t, s, 12, v, -1)
	mustCast(t, s, 12, v, -1)

	if testutil.ToFloat64(votesApplied.WithLabelValues("insert")) != ins+1 ||
		testutil.ToFloat64(votesApplied.WithLabelValues("update")) != upd+1 ||
		testutil.ToFloat64(votesApplied.WithLabelValues("delete")) != del+1 {
		t.Fatalf("decision counters did not advance by one each")
	}
}

// ---------- State() ----------

func TestVoteService_State(t *testing.T) {
	s, _ := newVoteSvc(t, 2)
	v := domain.UserVoter("reader")

	res, err := s.State(context.Background(), 2, v)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	wantState(t, res, 0, 0, 0, 0)

	mustCast(t, s, 2, v, -1)
	res, _ = s.State(context.Background(), 2, v)
	wantState(t, res, 0, 1, -1, -1)

	if _, err := s.State(context.Background(), 3, v); !errors.Is(err, ErrCommentNotFound) {
		t.Fatalf("unknown comment err = %v", err)
	}
}

func TestVoteResult_UserVoteInt(t *testing.T) {
	var nilRes *VoteResult
	if nilRes.UserVoteInt() != 0 {
		t.Fatalf("nil result should render 0")
	}
	down := domain.Downvote
	if (&VoteResult{UserVote: &down}).UserVoteInt() != -1 {
		t.Fatalf("downvote should render -1")
	}
}
