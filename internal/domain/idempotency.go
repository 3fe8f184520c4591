package domain

import "time"

// Idempotency records that a vote request carrying an Idempotency-Key has
// already been applied for (voter, comment). A retried request with the same
// key is answered from the current state instead of toggling the vote again.
// Value holds the vote value the key was first sent with (0 on rows written
// before it was recorded, which match any value).
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	VoterKind string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_voter_comment_key,priority:1"`
	VoterID   string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_voter_comment_key,priority:2"`
	CommentID int64     `gorm:"type:INTEGER NOT NULL;uniqueIndex:ux_idem_voter_comment_key,priority:3"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_voter_comment_key,priority:4"`
	Value     int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
