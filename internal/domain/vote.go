package domain

import (
	"errors"
	"strconv"
)

// VoteValue is a signed unit vote. Only Upvote and Downvote are ever stored.
type VoteValue int

const (
	Downvote VoteValue = -1
	Upvote   VoteValue = 1
)

// ErrInvalidVoteValue is returned for any requested value outside {-1, +1}.
var ErrInvalidVoteValue = errors.New("vote value must be -1 or 1")

// ParseVoteValue converts a raw integer into a VoteValue.
func ParseVoteValue(n int) (VoteValue, error) {
	v := VoteValue(n)
	if !v.Valid() {
		return 0, ErrInvalidVoteValue
	}
	return v, nil
}

// Valid reports whether v is one of the two storable values.
func (v VoteValue) Valid() bool { return v == Upvote || v == Downvote }

func (v VoteValue) String() string {
	switch v {
	case Upvote:
		return "up"
	case Downvote:
		return "down"
	}
	return "invalid(" + strconv.Itoa(int(v)) + ")"
}

// VoterKind discriminates the two identity spaces a voter key can live in.
type VoterKind string

const (
	// VoterUser keys on an authenticated user id.
	VoterUser VoterKind = "user"
	// VoterAnon keys on the request's network address.
	VoterAnon VoterKind = "anon"
)

// VoterKey identifies the holder of one vote per comment.
type VoterKey struct {
	Kind VoterKind
	ID   string
}

// UserVoter returns the key for an authenticated user.
func UserVoter(userID string) VoterKey { return VoterKey{Kind: VoterUser, ID: userID} }

// AnonVoter returns the key for an unauthenticated visitor at addr.
func AnonVoter(addr string) VoterKey { return VoterKey{Kind: VoterAnon, ID: addr} }

// Authenticated reports whether the key belongs to a signed-in user.
func (k VoterKey) Authenticated() bool { return k.Kind == VoterUser }

// String renders the key as "<kind>:<id>", e.g. "user:42" or "anon:203.0.113.7".
func (k VoterKey) String() string { return string(k.Kind) + ":" + k.ID }

// VoteCounts is the derived aggregate for one comment. It is computed from the
// stored votes on every read and never persisted.
type VoteCounts struct {
	Upvotes   int64 `json:"upvotes"   example:"3"`
	Downvotes int64 `json:"downvotes" example:"1"`
	Total     int64 `json:"total"     example:"2"`
}

// NewVoteCounts builds counts from the two tallies; Total is always their difference.
func NewVoteCounts(up, down int64) VoteCounts {
	return VoteCounts{Upvotes: up, Downvotes: down, Total: up - down}
}
