package eddy

import (
	"time"

	"github.com/google/uuid"
)

// FeedKind is a closed tag for the feed types the engine knows about.
// Every owner has at most one feed of each kind.
type FeedKind int8

const (
	FeedInvalid FeedKind = iota
	FeedPosts
	FeedDirects
	FeedLikes
	FeedComments
	FeedRiverOfNews
	FeedMyDiscussions
	FeedHides
	FeedSaves
)

var feedKindNames = map[FeedKind]string{
	FeedPosts:         "Posts",
	FeedDirects:       "Directs",
	FeedLikes:         "Likes",
	FeedComments:      "Comments",
	FeedRiverOfNews:   "RiverOfNews",
	FeedMyDiscussions: "MyDiscussions",
	FeedHides:         "Hides",
	FeedSaves:         "Saves",
}

func (k FeedKind) String() string {
	if name, ok := feedKindNames[k]; ok {
		return name
	}
	return "Invalid"
}

func ParseFeedKind(name string) FeedKind {
	for k, n := range feedKindNames {
		if n == name {
			return k
		}
	}
	return FeedInvalid
}

// Timeline is a delivery destination for posts. The public identity is the
// UUID, but membership rows reference the serial IntID.
type Timeline struct {
	ID        uuid.UUID `json:"id"`
	IntID     int       `json:"int_id"`
	CreatedAt time.Time `json:"created_at"`

	Kind    FeedKind  `json:"kind"`
	OwnerID uuid.UUID `json:"owner_id"`
}

// HomeFeedMode controls how far activity-driven propagation reaches into
// RiverOfNews feeds.
type HomeFeedMode int8

const (
	HomeFeedFriendsOnly HomeFeedMode = iota
	HomeFeedClassic
	HomeFeedFriendsAllActivity
)

// HomeFeedModes lists all modes, narrowest first.
var HomeFeedModes = []HomeFeedMode{
	HomeFeedFriendsOnly,
	HomeFeedClassic,
	HomeFeedFriendsAllActivity,
}

func (m HomeFeedMode) String() string {
	switch m {
	case HomeFeedFriendsOnly:
		return "friends-only"
	case HomeFeedClassic:
		return "classic"
	case HomeFeedFriendsAllActivity:
		return "friends-all-activity"
	}
	return "invalid"
}

func ParseHomeFeedMode(name string) (HomeFeedMode, bool) {
	for _, m := range HomeFeedModes {
		if m.String() == name {
			return m, true
		}
	}
	return HomeFeedClassic, false
}
