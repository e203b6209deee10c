package feedapi

import (
	"context"

	"github.com/EddyProjects/eddy"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// AddLike records a like and puts the post into the liker's Likes feed.
// Likes never move the post globally; instead, users for whom the post is
// NEW (it enters their home feed only because of this like) get a local
// bump, so the post surfaces for them without reordering everyone else's
// feed. Returns false when the user already liked the post.
func (s *BaseAPI) AddLike(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	post, err := s.db.Post(ctx, postID)
	if err != nil {
		return false, WrapError(err, "Couldn't get post")
	}

	liked, err := s.db.LikePost(ctx, postID, userID)
	if err != nil {
		return false, WrapError(err, "Couldn't like post")
	}
	if !liked {
		return false, nil
	}

	likesFeed, err := s.db.UserNamedFeed(ctx, userID, eddy.FeedLikes)
	if err != nil {
		return false, WrapError(err, "Couldn't get likes feed")
	}

	// The prior home feed audience must be computed in the widest mode and
	// before the likes feed membership changes.
	prevRONs, err := s.RiverOfNewsTimelines(ctx, post, eddy.HomeFeedFriendsAllActivity)
	if err != nil {
		return false, WrapError(err, "Couldn't resolve home feeds")
	}
	prevOwners := make([]uuid.UUID, 0, len(prevRONs))
	for _, feed := range prevRONs {
		prevOwners = append(prevOwners, feed.OwnerID)
	}

	subscriberIDs, err := s.db.UsersSubscribedToFeeds(ctx, []uuid.UUID{likesFeed.ID})
	if err != nil {
		return false, WrapError(err, "Couldn't get likes feed subscribers")
	}
	// The liker is implicitly subscribed to their own feeds.
	subscriberIDs = append(subscriberIDs, userID)

	newAudience := subtract(subscriberIDs, prevOwners)
	if err := s.db.SetLocalBumps(ctx, postID, newAudience); err != nil {
		return false, WrapError(err, "Couldn't set local bumps")
	}

	if _, err := s.db.InsertPostIntoFeed(ctx, likesFeed.IntID, postID); err != nil {
		return false, WrapError(err, "Couldn't insert post into likes feed")
	}

	s.pubsub.NewLike(ctx, postID, userID)
	metricLikesCreated.Inc()
	return true, nil
}

// RemoveLike undoes AddLike. Returns false when there was no like to remove.
func (s *BaseAPI) RemoveLike(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	post, err := s.db.Post(ctx, postID)
	if err != nil {
		return false, WrapError(err, "Couldn't get post")
	}

	unliked, err := s.db.UnlikePost(ctx, postID, userID)
	if err != nil {
		return false, WrapError(err, "Couldn't unlike post")
	}
	if !unliked {
		return false, nil
	}

	var (
		rooms     []string
		likesFeed *eddy.Timeline
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rooms, err = s.roomsOf(gctx, post)
		return err
	})
	g.Go(func() (err error) {
		likesFeed, err = s.db.UserNamedFeed(gctx, userID, eddy.FeedLikes)
		return err
	})
	if err := g.Wait(); err != nil {
		return false, WrapError(err, "Couldn't resolve like state")
	}

	if _, err := s.db.WithdrawPostFromFeed(ctx, likesFeed.IntID, postID); err != nil {
		return false, WrapError(err, "Couldn't withdraw post from likes feed")
	}

	s.pubsub.RemoveLike(ctx, postID, userID, rooms)
	metricLikesRemoved.Inc()
	return true, nil
}
