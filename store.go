package eddy

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Store is the narrow storage collaborator consumed by the fan-out engine.
// Membership mutations are individually atomic and idempotent; the ones that
// return a bool report whether the call had any effect, and the engine trusts
// that bool for its idempotence decisions.
type Store interface {

	// Posts
	Post(ctx context.Context, id uuid.UUID) (*Post, error)
	// CreatePost persists the post into the given feeds and derives the
	// privacy flags and timestamps from the destination feeds' owners.
	CreatePost(ctx context.Context, post *Post, feedIntIDs []int) (uuid.UUID, error)
	UpdatePost(ctx context.Context, id uuid.UUID, upd PostRowUpdate) error
	DeletePost(ctx context.Context, id uuid.UUID) error

	SetPostBumpedAt(ctx context.Context, id uuid.UUID, at time.Time) error
	SetLocalBumps(ctx context.Context, postID uuid.UUID, userIDs []uuid.UUID) error

	InsertPostIntoFeeds(ctx context.Context, feedIntIDs []int, postID uuid.UUID) error
	WithdrawPostFromFeeds(ctx context.Context, feedIntIDs []int, postID uuid.UUID) error
	InsertPostIntoFeed(ctx context.Context, feedIntID int, postID uuid.UUID) (bool, error)
	WithdrawPostFromFeed(ctx context.Context, feedIntID int, postID uuid.UUID) (bool, error)
	IsPostInFeed(ctx context.Context, feedIntID int, postID uuid.UUID) (bool, error)
	PostFeedIntIDs(ctx context.Context, postID uuid.UUID) ([]int, error)

	LikePost(ctx context.Context, postID, userID uuid.UUID) (bool, error)
	UnlikePost(ctx context.Context, postID, userID uuid.UUID) (bool, error)

	// Timelines
	TimelineByIntID(ctx context.Context, intID int) (*Timeline, error)
	TimelinesByIDs(ctx context.Context, ids []uuid.UUID) ([]*Timeline, error)
	TimelinesByIntIDs(ctx context.Context, intIDs []int) ([]*Timeline, error)
	UserNamedFeed(ctx context.Context, ownerID uuid.UUID, kind FeedKind) (*Timeline, error)
	UsersNamedFeeds(ctx context.Context, ownerIDs []uuid.UUID, kind FeedKind) ([]*Timeline, error)
	UsersNamedFeedIntIDs(ctx context.Context, ownerIDs []uuid.UUID, kind FeedKind) ([]int, error)

	TimelineSubscriberIDs(ctx context.Context, feedID uuid.UUID) ([]uuid.UUID, error)
	UsersSubscribedToFeeds(ctx context.Context, feedIDs []uuid.UUID) ([]uuid.UUID, error)
	// HomeFeedsSubscribedToUsers returns the RiverOfNews feed ids of everyone
	// subscribed to any feed owned by the given users.
	HomeFeedsSubscribedToUsers(ctx context.Context, ownerIDs []uuid.UUID) ([]uuid.UUID, error)
	HomeFeedsHideLists(ctx context.Context, feedIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)

	SetGroupsUpdatedAt(ctx context.Context, ownerIDs []uuid.UUID, at time.Time) error
	GroupsPostedTo(ctx context.Context, postID uuid.UUID) ([]*User, error)

	// Users
	User(ctx context.Context, id uuid.UUID) (*User, error)
	// BansAndBannedBy merges both directions of the ban relation.
	BansAndBannedBy(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	VisiblePrivateFeedIntIDs(ctx context.Context, userID uuid.UUID) ([]int, error)
	UsersWhoCanSeePrivateFeeds(ctx context.Context, feedIntIDs []int) (UserList, error)

	// Comments
	Comment(ctx context.Context, id uuid.UUID) (*Comment, error)
	CreateComment(ctx context.Context, comment *Comment) (uuid.UUID, error)
	DeleteComment(ctx context.Context, id uuid.UUID) error
	PostComments(ctx context.Context, postID uuid.UUID) ([]*Comment, error)
	UserHasCommentsOnPost(ctx context.Context, postID, userID uuid.UUID) (bool, error)

	// Attachments
	PostAttachmentIDs(ctx context.Context, postID uuid.UUID) ([]uuid.UUID, error)
	LinkAttachmentToPost(ctx context.Context, attachmentID, postID uuid.UUID, ord int) error
	UnlinkAttachmentFromPost(ctx context.Context, attachmentID, postID uuid.UUID) error

	// Hashtags
	PostHashtags(ctx context.Context, postID uuid.UUID) ([]string, error)
	LinkPostHashtags(ctx context.Context, names []string, postID uuid.UUID) error
	UnlinkPostHashtags(ctx context.Context, names []string, postID uuid.UUID) error

	// Backlinks
	PostBacklinkTargets(ctx context.Context, postID uuid.UUID) ([]uuid.UUID, error)
	LinkBacklinks(ctx context.Context, postID uuid.UUID, targetIDs []uuid.UUID) error
	UnlinkBacklinks(ctx context.Context, postID uuid.UUID, targetIDs []uuid.UUID) error
	BacklinkCounts(ctx context.Context, postIDs []uuid.UUID, viewerID *uuid.UUID) (map[uuid.UUID]int, error)

	io.Closer
}
