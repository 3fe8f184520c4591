package services

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// votesApplied counts committed transitions by the op they resolved to.
	votesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comment_votes_total",
			Help: "Vote transitions applied, by decision.",
		},
		[]string{"decision"},
	)

	// voteFailures counts rejected or failed vote requests by error kind.
	voteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comment_vote_failures_total",
			Help: "Vote requests that did not apply, by failure kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(votesApplied, voteFailures)
}

// failureKind buckets err into a bounded label value.
func failureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidVote), errors.Is(err, ErrInvalidCommentID):
		return "validation"
	case errors.Is(err, ErrCommentNotFound):
		return "not_found"
	case errors.Is(err, ErrIdempotencyConflict):
		return "conflict"
	case errors.Is(err, ErrStore):
		return "store"
	}
	return "other"
}
