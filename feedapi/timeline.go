package feedapi

import (
	"context"
	"fmt"
	"slices"

	"github.com/EddyProjects/eddy"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RiverOfNewsTimelines resolves the home feeds a post currently belongs to,
// under the given propagation mode. Home feed membership is never
// materialized; it is always computed from the post's current feeds.
//
// Subscribers of the destination feed owners always receive the post.
// Subscribers of activity feed owners (likers/commenters) receive it in
// classic mode when the post is propagable, and always in all-activity mode;
// all-activity mode additionally reaches the author's subscribers. These
// added groups are filtered by hide lists: a home feed whose hide list
// intersects the destination owners is excluded.
func (s *BaseAPI) RiverOfNewsTimelines(ctx context.Context, post *eddy.Post, mode eddy.HomeFeedMode) ([]*eddy.Timeline, error) {
	postFeeds, err := s.timelinesByIntIDs(ctx, post.FeedIntIDs)
	if err != nil {
		return nil, err
	}

	var destOwners, activityOwners []uuid.UUID
	for _, feed := range postFeeds {
		switch feed.Kind {
		case eddy.FeedPosts, eddy.FeedDirects:
			destOwners = append(destOwners, feed.OwnerID)
		case eddy.FeedLikes, eddy.FeedComments:
			activityOwners = append(activityOwners, feed.OwnerID)
		}
	}

	feedIDs, err := s.db.HomeFeedsSubscribedToUsers(ctx, destOwners)
	if err != nil {
		return nil, fmt.Errorf("couldn't get home feeds of destination subscribers: %w", err)
	}

	addWithHideList := func(feedOwners []uuid.UUID) error {
		addIDs, err := s.db.HomeFeedsSubscribedToUsers(ctx, feedOwners)
		if err != nil {
			return fmt.Errorf("couldn't get home feeds: %w", err)
		}
		addIDs = subtract(addIDs, feedIDs)
		if len(addIDs) == 0 {
			return nil
		}

		hideLists, err := s.db.HomeFeedsHideLists(ctx, addIDs)
		if err != nil {
			return fmt.Errorf("couldn't get hide lists: %w", err)
		}
		for _, id := range addIDs {
			if !intersects(hideLists[id], destOwners) {
				feedIDs = append(feedIDs, id)
			}
		}
		return nil
	}

	if mode == eddy.HomeFeedFriendsAllActivity ||
		(mode == eddy.HomeFeedClassic && post.IsPropagable) {
		if err := addWithHideList(uniq(activityOwners)); err != nil {
			return nil, err
		}
	}

	if mode == eddy.HomeFeedFriendsAllActivity {
		if err := addWithHideList([]uuid.UUID{post.AuthorID}); err != nil {
			return nil, err
		}
	}

	feeds, err := s.db.TimelinesByIDs(ctx, uniq(feedIDs))
	if err != nil {
		return nil, fmt.Errorf("couldn't resolve home feeds: %w", err)
	}
	return feeds, nil
}

// DefaultRiverOfNewsTimelines resolves the home feeds under the configured
// default propagation mode.
func (s *BaseAPI) DefaultRiverOfNewsTimelines(ctx context.Context, post *eddy.Post) ([]*eddy.Timeline, error) {
	return s.RiverOfNewsTimelines(ctx, post, s.defaultHomeFeedMode)
}

// RiverOfNewsTimelinesByModes resolves the home feeds for all modes at once.
func (s *BaseAPI) RiverOfNewsTimelinesByModes(ctx context.Context, post *eddy.Post) (map[eddy.HomeFeedMode][]*eddy.Timeline, error) {
	results := make([][]*eddy.Timeline, len(eddy.HomeFeedModes))

	g, gctx := errgroup.WithContext(ctx)
	for i, mode := range eddy.HomeFeedModes {
		g.Go(func() error {
			feeds, err := s.RiverOfNewsTimelines(gctx, post, mode)
			results[i] = feeds
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byMode := make(map[eddy.HomeFeedMode][]*eddy.Timeline, len(eddy.HomeFeedModes))
	for i, mode := range eddy.HomeFeedModes {
		byMode[mode] = results[i]
	}
	return byMode, nil
}

// MyDiscussionsTimelines resolves the MyDiscussions feeds of the author and
// of everyone who liked or commented on the post.
func (s *BaseAPI) MyDiscussionsTimelines(ctx context.Context, post *eddy.Post) ([]*eddy.Timeline, error) {
	postFeeds, err := s.timelinesByIntIDs(ctx, post.FeedIntIDs)
	if err != nil {
		return nil, err
	}

	ownerIDs := []uuid.UUID{post.AuthorID}
	for _, feed := range postFeeds {
		if feed.Kind == eddy.FeedLikes || feed.Kind == eddy.FeedComments {
			ownerIDs = append(ownerIDs, feed.OwnerID)
		}
	}

	feeds, err := s.db.UsersNamedFeeds(ctx, uniq(ownerIDs), eddy.FeedMyDiscussions)
	if err != nil {
		return nil, fmt.Errorf("couldn't get MyDiscussions feeds: %w", err)
	}
	return feeds, nil
}

// friendOfFriendFeedIntIDs computes the feed set a new activity (like or
// comment) by the given user spreads the post into. Posts living only in
// group feeds stay there; posts published to a personal Posts feed also
// propagate to the actor's subscribers.
func (s *BaseAPI) friendOfFriendFeedIntIDs(ctx context.Context, post *eddy.Post, user *eddy.User, kind eddy.FeedKind) ([]int, error) {
	userFeed, err := s.db.UserNamedFeed(ctx, user.ID, kind)
	if err != nil {
		return nil, fmt.Errorf("couldn't get %s feed: %w", kind, err)
	}
	intIDs := []int{userFeed.IntID}

	destFeeds, err := s.timelinesByIntIDs(ctx, post.DestinationFeedIDs)
	if err != nil {
		return nil, err
	}

	groupOnly := true
	for _, feed := range destFeeds {
		owner, err := s.db.User(ctx, feed.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("couldn't get feed owner: %w", err)
		}
		if !owner.IsGroup {
			groupOnly = false
			break
		}
	}

	if !groupOnly {
		subscriberIDs, err := s.db.TimelineSubscriberIDs(ctx, userFeed.ID)
		if err != nil {
			return nil, fmt.Errorf("couldn't get subscribers: %w", err)
		}
		riverIntIDs, err := s.db.UsersNamedFeedIntIDs(ctx, subscriberIDs, eddy.FeedRiverOfNews)
		if err != nil {
			return nil, fmt.Errorf("couldn't get subscribers' home feeds: %w", err)
		}
		intIDs = append(intIDs, riverIntIDs...)
	}

	authorRiver, err := s.db.UserNamedFeed(ctx, post.AuthorID, eddy.FeedRiverOfNews)
	if err != nil {
		return nil, fmt.Errorf("couldn't get author's home feed: %w", err)
	}
	intIDs = append(intIDs, authorRiver.IntID)

	if !groupOnly {
		authorPosts, err := s.db.UserNamedFeed(ctx, post.AuthorID, eddy.FeedPosts)
		if err != nil {
			return nil, fmt.Errorf("couldn't get author's posts feed: %w", err)
		}
		intIDs = append(intIDs, authorPosts.IntID)
	}

	userRiver, err := s.db.UserNamedFeed(ctx, user.ID, eddy.FeedRiverOfNews)
	if err != nil {
		return nil, fmt.Errorf("couldn't get user's home feed: %w", err)
	}
	intIDs = append(intIDs, userRiver.IntID)

	intIDs = append(intIDs, post.FeedIntIDs...)

	return uniq(intIDs), nil
}

// RoomsOfPost lists the realtime rooms a post is currently published to:
// its own room plus every timeline it can show up in, including dynamic
// home and discussion feeds.
func (s *BaseAPI) RoomsOfPost(ctx context.Context, postID uuid.UUID) ([]string, error) {
	post, err := s.db.Post(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("couldn't get post: %w", err)
	}
	return s.roomsOf(ctx, post)
}

func (s *BaseAPI) roomsOf(ctx context.Context, post *eddy.Post) ([]string, error) {
	var materialized, rivers, discussions []*eddy.Timeline

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		materialized, err = s.timelinesByIntIDs(gctx, post.FeedIntIDs)
		return err
	})
	g.Go(func() (err error) {
		rivers, err = s.RiverOfNewsTimelines(gctx, post, eddy.HomeFeedFriendsAllActivity)
		return err
	})
	g.Go(func() (err error) {
		discussions, err = s.MyDiscussionsTimelines(gctx, post)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rooms := []string{"post:" + post.ID.String()}
	for _, feeds := range [][]*eddy.Timeline{materialized, rivers, discussions} {
		for _, feed := range feeds {
			rooms = append(rooms, "timeline:"+feed.ID.String())
		}
	}
	rooms = uniq(rooms)
	slices.Sort(rooms)
	return rooms, nil
}
