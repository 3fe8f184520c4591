// Package domain defines the persistence models for comments and the votes
// cast on them. These types are mapped with GORM and form the core data layer
// of the comment rating service.
package domain

import "time"

// Comment is the external entity votes point at. The host application owns
// comments; this service only keeps their identifiers so that a vote on an
// unknown comment can be rejected before anything is written.
//
// Fields:
//   - ID: the host's comment identifier (not auto-generated here).
//   - CreatedAt: registration timestamp managed by GORM.
type Comment struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string { return "comments" }

// Vote is a single voter's signed vote on a comment.
//
// A voter holds at most one vote per comment: the unique index spans
// (comment_id, voter_kind, voter_id). The kind column keeps authenticated user
// ids and anonymous network addresses in separate key spaces.
//
// "No vote" is the absence of a row. Rows are hard-deleted on toggle-off, so
// the model carries no soft-delete column that could leave a tombstone behind
// the unique index.
type Vote struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	CommentID int64     `json:"comment_id" gorm:"not null;index;uniqueIndex:ux_votes_comment_voter,priority:1"`
	VoterKind string    `json:"voter_kind" gorm:"type:varchar(8);not null;uniqueIndex:ux_votes_comment_voter,priority:2;check:voter_kind IN ('user','anon')"`
	VoterID   string    `json:"voter_id"   gorm:"type:varchar(100);not null;uniqueIndex:ux_votes_comment_voter,priority:3"`
	Value     int       `json:"value"      gorm:"not null;check:value IN (-1,1)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Comment is the voted comment. Votes are cascade-deleted with it.
	Comment Comment `json:"-" gorm:"foreignKey:CommentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Vote.
func (Vote) TableName() string { return "votes" }

// Voter returns the key the row is stored under.
func (v Vote) Voter() VoterKey {
	return VoterKey{Kind: VoterKind(v.VoterKind), ID: v.VoterID}
}
