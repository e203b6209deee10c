package eddy

import (
	"context"

	"github.com/google/uuid"
)

// PubSub is the outbound realtime collaborator. Delivery is best-effort and
// fire-and-forget: the engine never inspects the outcome and always publishes
// after the corresponding storage write.
type PubSub interface {
	NewPost(ctx context.Context, postID uuid.UUID)
	// UpdatePost carries the pre-update viewer set so the transport can
	// deliver selectively to clients that could see the old state.
	UpdatePost(ctx context.Context, postID uuid.UUID, rooms []string, viewersBefore UserList)
	DestroyPost(ctx context.Context, postID uuid.UUID, rooms []string)

	NewComment(ctx context.Context, commentID, postID uuid.UUID)
	DestroyComment(ctx context.Context, commentID, postID uuid.UUID, rooms []string)
	NewLike(ctx context.Context, postID, userID uuid.UUID)
	RemoveLike(ctx context.Context, postID, userID uuid.UUID, rooms []string)

	HidePost(ctx context.Context, userID, postID uuid.UUID)
	UnhidePost(ctx context.Context, userID, postID uuid.UUID)
	SavePost(ctx context.Context, userID, postID uuid.UUID)
	UnsavePost(ctx context.Context, userID, postID uuid.UUID)

	UpdateUnreadDirects(ctx context.Context, userID uuid.UUID)
	UpdateGroupTimes(ctx context.Context, groupIDs []uuid.UUID)
}

// NoopPubSub is the test/offline implementation.
type NoopPubSub struct{}

var _ PubSub = NoopPubSub{}

func (NoopPubSub) NewPost(context.Context, uuid.UUID)                             {}
func (NoopPubSub) UpdatePost(context.Context, uuid.UUID, []string, UserList)      {}
func (NoopPubSub) DestroyPost(context.Context, uuid.UUID, []string)               {}
func (NoopPubSub) NewComment(context.Context, uuid.UUID, uuid.UUID)               {}
func (NoopPubSub) DestroyComment(context.Context, uuid.UUID, uuid.UUID, []string) {}
func (NoopPubSub) NewLike(context.Context, uuid.UUID, uuid.UUID)                  {}
func (NoopPubSub) RemoveLike(context.Context, uuid.UUID, uuid.UUID, []string)     {}
func (NoopPubSub) HidePost(context.Context, uuid.UUID, uuid.UUID)                 {}
func (NoopPubSub) UnhidePost(context.Context, uuid.UUID, uuid.UUID)               {}
func (NoopPubSub) SavePost(context.Context, uuid.UUID, uuid.UUID)                 {}
func (NoopPubSub) UnsavePost(context.Context, uuid.UUID, uuid.UUID)               {}
func (NoopPubSub) UpdateUnreadDirects(context.Context, uuid.UUID)                 {}
func (NoopPubSub) UpdateGroupTimes(context.Context, []uuid.UUID)                  {}

// FeedsChangedInfo describes a destination change for the domain-event sink.
type FeedsChangedInfo struct {
	AddedFeeds   []*Timeline
	RemovedFeeds []*Timeline
}

// EventSink receives domain events. Unlike PubSub, sink failures propagate
// to the caller of the triggering operation.
type EventSink interface {
	OnPostCreated(ctx context.Context, post *Post, destFeedIDs []uuid.UUID, author *User) error
	OnPostFeedsChanged(ctx context.Context, post *Post, actor *User, info FeedsChangedInfo) error
	OnPostDestroyed(ctx context.Context, post *Post, actor *User, groups []*User) error
}

type NoopEvents struct{}

var _ EventSink = NoopEvents{}

func (NoopEvents) OnPostCreated(context.Context, *Post, []uuid.UUID, *User) error {
	return nil
}

func (NoopEvents) OnPostFeedsChanged(context.Context, *Post, *User, FeedsChangedInfo) error {
	return nil
}

func (NoopEvents) OnPostDestroyed(context.Context, *Post, *User, []*User) error {
	return nil
}
