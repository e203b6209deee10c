package eddy

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rivo/uniseg"
)

// Post is the unit of fan-out. DestinationFeedIDs are the feeds explicitly
// chosen by the author (ordered); FeedIntIDs is the full membership the post
// currently occupies, including activity-derived feeds. The former is always
// a subset of the latter.
type Post struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// BumpedAt is the last moment the post should resurface at the top of
	// feeds. Likes never move it, see local bumps.
	BumpedAt time.Time `json:"bumped_at"`

	AuthorID uuid.UUID `json:"author_id"`
	Body     string    `json:"body"`

	// Insertion order of attachments is meaningful.
	AttachmentIDs []uuid.UUID `json:"attachment_ids"`

	CommentsDisabled bool `json:"comments_disabled"`

	// Derived from the destination feeds at creation/update, never set
	// directly by callers.
	IsPrivate    bool `json:"is_private"`
	IsProtected  bool `json:"is_protected"`
	IsPropagable bool `json:"is_propagable"`

	DestinationFeedIDs []int `json:"destination_feed_ids"`
	FeedIntIDs         []int `json:"feed_int_ids"`

	CommentsCount int `json:"comments_count"`
	LikesCount    int `json:"likes_count"`
}

// PostUpdate is the caller-facing edit request. Nil slices mean "leave
// unchanged"; an empty non-nil Attachments clears them.
type PostUpdate struct {
	Body               *string     `json:"body"`
	Attachments        []uuid.UUID `json:"attachments"`
	DestinationFeedIDs []uuid.UUID `json:"destination_feed_ids"`

	// Actor of the edit, for the feeds-changed event. Defaults to the author.
	UpdatedBy *uuid.UUID `json:"-"`
}

func (upd PostUpdate) Empty() bool {
	return upd.Body == nil && upd.Attachments == nil && upd.DestinationFeedIDs == nil
}

// PostRowUpdate is the storage-level payload, already diffed.
type PostRowUpdate struct {
	Body             *string
	CommentsDisabled *bool
	UpdatedAt        *time.Time

	DestinationFeedIDs []int
	FeedIntIDs         []int
}

// Validate checks the post against the configured grapheme limit, counting
// grapheme clusters rather than bytes or runes.
func (p *Post) Validate(attachments []uuid.UUID, maxGraphemes int) error {
	if p.AuthorID == uuid.Nil {
		return ErrAuthorRequired
	}

	body := strings.TrimSpace(p.Body)
	if len(body) == 0 && len(attachments) == 0 {
		return ErrEmptyBody
	}

	if uniseg.GraphemeClusterCount(body) > maxGraphemes {
		return Statusf(400, "Maximum post length is %d graphemes", maxGraphemes)
	}

	return nil
}
