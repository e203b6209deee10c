package feedapi

import (
	"context"
	"fmt"

	"github.com/EddyProjects/eddy"
	"github.com/google/uuid"
)

// UsersCanSee computes the full viewer set of a post as a user list, without
// ever enumerating "everyone". Ban relations with the author are excluded in
// both directions.
func (s *BaseAPI) UsersCanSee(ctx context.Context, post *eddy.Post) (eddy.UserList, error) {
	// A post withdrawn from all destinations is visible to nobody.
	if len(post.DestinationFeedIDs) == 0 {
		return eddy.Nobody(), nil
	}

	bans, err := s.db.BansAndBannedBy(ctx, post.AuthorID)
	if err != nil {
		return eddy.Nobody(), fmt.Errorf("couldn't get ban relations: %w", err)
	}

	allExceptBanned := eddy.OpenUserList(bans...)
	if !post.IsPrivate {
		return allExceptBanned, nil
	}

	viewers, err := s.db.UsersWhoCanSeePrivateFeeds(ctx, post.DestinationFeedIDs)
	if err != nil {
		return eddy.Nobody(), fmt.Errorf("couldn't get private feed viewers: %w", err)
	}
	return eddy.IntersectUserLists(viewers, allExceptBanned), nil
}

// IsVisibleFor decides whether a single viewer can see the post. A nil
// viewer is an anonymous reader. Any failure to establish visibility fails
// closed.
func (s *BaseAPI) IsVisibleFor(ctx context.Context, post *eddy.Post, viewerID *uuid.UUID) (bool, error) {
	if len(post.DestinationFeedIDs) == 0 {
		return false, nil
	}

	author, err := s.db.User(ctx, post.AuthorID)
	if err != nil {
		return false, fmt.Errorf("couldn't get author: %w", err)
	}
	if !author.IsActive() {
		return false, nil
	}

	// Private posts always carry the protected flag, so this also covers them.
	if viewerID == nil {
		return !post.IsProtected, nil
	}

	bans, err := s.db.BansAndBannedBy(ctx, *viewerID)
	if err != nil {
		return false, fmt.Errorf("couldn't get ban relations: %w", err)
	}
	for _, id := range bans {
		if id == post.AuthorID {
			return false, nil
		}
	}

	if post.IsPrivate {
		visibleFeeds, err := s.db.VisiblePrivateFeedIntIDs(ctx, *viewerID)
		if err != nil {
			return false, fmt.Errorf("couldn't get visible private feeds: %w", err)
		}
		return intersects(visibleFeeds, post.DestinationFeedIDs), nil
	}

	return true, nil
}

// IsHiddenIn reports whether the post is hidden for the owner of the given
// home feed. Hiding only affects RiverOfNews and Hides feeds.
func (s *BaseAPI) IsHiddenIn(ctx context.Context, post *eddy.Post, feed *eddy.Timeline) (bool, error) {
	if feed.Kind != eddy.FeedRiverOfNews && feed.Kind != eddy.FeedHides {
		return false, nil
	}
	hidesFeed, err := s.db.UserNamedFeed(ctx, feed.OwnerID, eddy.FeedHides)
	if err != nil {
		return false, fmt.Errorf("couldn't get hides feed: %w", err)
	}
	return s.db.IsPostInFeed(ctx, hidesFeed.IntID, post.ID)
}
