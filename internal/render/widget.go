// Package render produces the vote widget markup for a comment: the two vote
// buttons, the visible total and the nonce the widget posts back. Everything
// shown is derived from the counts and the viewer's own vote.
package render

import (
	"bytes"
	"html/template"
	"io"

	"golang.org/x/text/language"

	"github.com/tbourn/go-comment-rating/internal/domain"
	"github.com/tbourn/go-comment-rating/internal/i18n"
)

// ActiveClass marks the button matching the viewer's current vote.
const ActiveClass = "cr-active"

// Widget is the input to Render.
type Widget struct {
	CommentID int64
	Votes     domain.VoteCounts
	// UserVote is the viewer's vote, nil for none.
	UserVote *domain.VoteValue
	Nonce    string
	Lang     language.Tag
}

type widgetView struct {
	CommentID   int64
	Total       int64
	Nonce       string
	Lang        string
	UpClass     string
	DownClass   string
	UpLabel     string
	DownLabel   string
	ScoreLabel  string
	VotesLabel  string
	UpPressed   bool
	DownPressed bool
}

var widgetTmpl = template.Must(template.New("widget").Parse(
	`<span class="cr-voting-wrapper" data-comment-id="{{.CommentID}}" data-nonce="{{.Nonce}}" lang="{{.Lang}}">` +
		`<button type="button" class="cr-vote-btn cr-upvote{{.UpClass}}" data-vote="1" aria-label="{{.UpLabel}}" aria-pressed="{{.UpPressed}}">&#9650;</button>` +
		`<span class="cr-vote-count" title="{{.VotesLabel}}" aria-label="{{.ScoreLabel}}">{{.Total}}</span>` +
		`<button type="button" class="cr-vote-btn cr-downvote{{.DownClass}}" data-vote="-1" aria-label="{{.DownLabel}}" aria-pressed="{{.DownPressed}}">&#9660;</button>` +
		`</span>`,
))

// Render writes the widget markup for w to out.
func Render(out io.Writer, w Widget) error {
	lang := w.Lang
	if lang == language.Und {
		lang = language.English
	}
	v := widgetView{
		CommentID:  w.CommentID,
		Total:      w.Votes.Total,
		Nonce:      w.Nonce,
		Lang:       lang.String(),
		UpLabel:    i18n.T(lang, i18n.MsgUpvote),
		DownLabel:  i18n.T(lang, i18n.MsgDownvote),
		ScoreLabel: i18n.T(lang, i18n.MsgScore, w.Votes.Total),
		VotesLabel: i18n.T(lang, i18n.MsgVotes, w.Votes.Upvotes+w.Votes.Downvotes),
	}
	if w.UserVote != nil {
		switch *w.UserVote {
		case domain.Upvote:
			v.UpClass, v.UpPressed = " "+ActiveClass, true
		case domain.Downvote:
			v.DownClass, v.DownPressed = " "+ActiveClass, true
		}
	}
	return widgetTmpl.Execute(out, v)
}

// HTML renders w to a string.
func HTML(w Widget) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, w); err != nil {
		return "", err
	}
	return buf.String(), nil
}
