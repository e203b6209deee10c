package feedapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/EddyProjects/eddy"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// CreatePostRequest carries everything needed to publish a new post. The
// destination feeds must be Posts or Directs feeds; the caller is expected
// to have checked write permission on them already.
type CreatePostRequest struct {
	AuthorID uuid.UUID
	Body     string

	AttachmentIDs    []uuid.UUID
	CommentsDisabled bool

	DestinationFeedIDs []uuid.UUID
}

func (s *BaseAPI) Post(ctx context.Context, id uuid.UUID) (*eddy.Post, error) {
	post, err := s.db.Post(ctx, id)
	if err != nil {
		return nil, WrapError(err, "Couldn't get post")
	}
	return post, nil
}

// CreatePost persists the post, fans it out to the destination feeds and
// runs the whole post-publish pipeline: attachments, hashtags, backlinks,
// domain events and realtime notifications.
func (s *BaseAPI) CreatePost(ctx context.Context, req CreatePostRequest) (*eddy.Post, error) {
	var (
		destFeeds []*eddy.Timeline
		author    *eddy.User
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		destFeeds, err = s.db.TimelinesByIDs(gctx, req.DestinationFeedIDs)
		return err
	})
	g.Go(func() (err error) {
		author, err = s.db.User(gctx, req.AuthorID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, WrapError(err, "Couldn't resolve post destinations")
	}

	post := &eddy.Post{
		AuthorID:         req.AuthorID,
		Body:             strings.TrimSpace(req.Body),
		CommentsDisabled: req.CommentsDisabled,
	}
	if err := post.Validate(req.AttachmentIDs, s.maxPostLength); err != nil {
		return nil, err
	}

	feedIntIDs := make([]int, 0, len(destFeeds))
	for _, feed := range destFeeds {
		feedIntIDs = append(feedIntIDs, feed.IntID)
	}

	id, err := s.db.CreatePost(ctx, post, feedIntIDs)
	if err != nil {
		return nil, WrapError(err, "Couldn't create post")
	}

	// Re-read to pick up derived flags and timestamps.
	post, err = s.db.Post(ctx, id)
	if err != nil {
		return nil, WrapError(err, "Couldn't read back created post")
	}

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		for ord, attID := range req.AttachmentIDs {
			if err := s.db.LinkAttachmentToPost(gctx, attID, id, ord); err != nil {
				return fmt.Errorf("couldn't link attachment: %w", err)
			}
		}
		return nil
	})
	g.Go(func() error { return s.linkPostHashtags(gctx, id, post.Body) })
	g.Go(func() error { return s.linkBacklinks(gctx, id, post.Body) })
	if err := g.Wait(); err != nil {
		return nil, WrapError(err, "Couldn't link post associations")
	}

	destFeedIDs := make([]uuid.UUID, 0, len(destFeeds))
	destOwnerIDs := make([]uuid.UUID, 0, len(destFeeds))
	for _, feed := range destFeeds {
		destFeedIDs = append(destFeedIDs, feed.ID)
		destOwnerIDs = append(destOwnerIDs, feed.OwnerID)
	}

	if err := s.events.OnPostCreated(ctx, post, destFeedIDs, author); err != nil {
		return nil, WrapError(err, "Couldn't process post creation event")
	}

	for _, feed := range destFeeds {
		if feed.Kind == eddy.FeedDirects {
			s.pubsub.UpdateUnreadDirects(ctx, feed.OwnerID)
		}
	}
	s.pubsub.NewPost(ctx, id)

	if err := s.db.SetGroupsUpdatedAt(ctx, destOwnerIDs, time.Now()); err != nil {
		return nil, WrapError(err, "Couldn't touch group activity times")
	}
	s.notifyBacklinked(ctx, extractPostRefs(post.Body, id))
	s.pubsub.UpdateGroupTimes(ctx, destOwnerIDs)

	metricPostsCreated.Inc()
	return post, nil
}

// UpdatePost applies an edit. Only the fields present in upd change; an
// update with no fields is a no-op. Concurrent edits resolve last-writer-wins.
func (s *BaseAPI) UpdatePost(ctx context.Context, postID uuid.UUID, upd eddy.PostUpdate) (*eddy.Post, error) {
	post, err := s.db.Post(ctx, postID)
	if err != nil {
		return nil, WrapError(err, "Couldn't get post")
	}
	if upd.Empty() {
		return post, nil
	}

	// The realtime envelope must reach clients that saw the post before the
	// edit, so both rooms and the viewer set are captured up front.
	rooms, err := s.roomsOf(ctx, post)
	if err != nil {
		return nil, WrapError(err, "Couldn't resolve realtime rooms")
	}
	viewersBefore, err := s.UsersCanSee(ctx, post)
	if err != nil {
		return nil, WrapError(err, "Couldn't resolve viewers")
	}

	now := time.Now()
	row := eddy.PostRowUpdate{UpdatedAt: &now}
	var afterUpdate []func(context.Context) error

	if upd.Body != nil {
		post.Body = strings.TrimSpace(*upd.Body)
		row.Body = &post.Body

		afterUpdate = append(afterUpdate, func(ctx context.Context) error {
			return s.syncPostHashtags(ctx, postID, post.Body)
		})
		afterUpdate = append(afterUpdate, func(ctx context.Context) error {
			changedTargets, err := s.syncBacklinks(ctx, postID, post.Body)
			if err != nil {
				return err
			}
			s.notifyBacklinked(ctx, changedTargets)
			return nil
		})
	}

	newAttachments := post.AttachmentIDs

	if upd.Attachments != nil {
		oldAttachments, err := s.db.PostAttachmentIDs(ctx, postID)
		if err != nil {
			return nil, WrapError(err, "Couldn't get post attachments")
		}
		newAttachments = upd.Attachments
		removedAttachments := subtract(oldAttachments, newAttachments)

		afterUpdate = append(afterUpdate, func(ctx context.Context) error {
			for ord, attID := range newAttachments {
				if err := s.db.LinkAttachmentToPost(ctx, attID, postID, ord); err != nil {
					return fmt.Errorf("couldn't link attachment: %w", err)
				}
			}
			for _, attID := range removedAttachments {
				if err := s.db.UnlinkAttachmentFromPost(ctx, attID, postID); err != nil {
					return fmt.Errorf("couldn't unlink attachment: %w", err)
				}
			}
			return nil
		})
	}

	if upd.DestinationFeedIDs != nil {
		newDestFeeds, err := s.db.TimelinesByIDs(ctx, upd.DestinationFeedIDs)
		if err != nil {
			return nil, WrapError(err, "Couldn't resolve new destinations")
		}
		newDestIntIDs := make([]int, 0, len(newDestFeeds))
		for _, feed := range newDestFeeds {
			newDestIntIDs = append(newDestIntIDs, feed.IntID)
		}

		addedIntIDs, removedIntIDs := diffSets(post.DestinationFeedIDs, newDestIntIDs)
		if len(addedIntIDs) > 0 || len(removedIntIDs) > 0 {
			post.DestinationFeedIDs = newDestIntIDs
			post.FeedIntIDs = subtract(union(post.FeedIntIDs, newDestIntIDs), removedIntIDs)

			row.DestinationFeedIDs = post.DestinationFeedIDs
			row.FeedIntIDs = post.FeedIntIDs

			actorID := post.AuthorID
			if upd.UpdatedBy != nil {
				actorID = *upd.UpdatedBy
			}

			var (
				actor                    *eddy.User
				addedFeeds, removedFeeds []*eddy.Timeline
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() (err error) {
				actor, err = s.db.User(gctx, actorID)
				return err
			})
			g.Go(func() (err error) {
				addedFeeds, err = s.db.TimelinesByIntIDs(gctx, addedIntIDs)
				return err
			})
			g.Go(func() (err error) {
				removedFeeds, err = s.db.TimelinesByIntIDs(gctx, removedIntIDs)
				return err
			})
			if err := g.Wait(); err != nil {
				return nil, WrapError(err, "Couldn't resolve destination change")
			}

			afterUpdate = append(afterUpdate, func(ctx context.Context) error {
				return s.events.OnPostFeedsChanged(ctx, post, actor, eddy.FeedsChangedInfo{
					AddedFeeds:   addedFeeds,
					RemovedFeeds: removedFeeds,
				})
			})
			// Publish to the old AND new realtime rooms.
			afterUpdate = append(afterUpdate, func(ctx context.Context) error {
				newRooms, err := s.roomsOf(ctx, post)
				if err != nil {
					return err
				}
				rooms = union(rooms, newRooms)
				return nil
			})
		}
	}

	if err := post.Validate(newAttachments, s.maxPostLength); err != nil {
		return nil, err
	}

	if err := s.db.UpdatePost(ctx, postID, row); err != nil {
		return nil, WrapError(err, "Couldn't update post")
	}

	for _, f := range afterUpdate {
		if err := f(ctx); err != nil {
			return nil, WrapError(err, "Couldn't apply post update")
		}
	}

	s.pubsub.UpdatePost(ctx, postID, rooms, viewersBefore)

	post, err = s.db.Post(ctx, postID)
	if err != nil {
		return nil, WrapError(err, "Couldn't read back updated post")
	}
	return post, nil
}

// SetCommentsDisabled flips whether new comments are accepted on the post.
func (s *BaseAPI) SetCommentsDisabled(ctx context.Context, postID uuid.UUID, disabled bool) error {
	post, err := s.db.Post(ctx, postID)
	if err != nil {
		return WrapError(err, "Couldn't get post")
	}

	if err := s.db.UpdatePost(ctx, postID, eddy.PostRowUpdate{CommentsDisabled: &disabled}); err != nil {
		return WrapError(err, "Couldn't update post")
	}

	rooms, err := s.roomsOf(ctx, post)
	if err != nil {
		return WrapError(err, "Couldn't resolve realtime rooms")
	}
	viewers, err := s.UsersCanSee(ctx, post)
	if err != nil {
		return WrapError(err, "Couldn't resolve viewers")
	}
	s.pubsub.UpdatePost(ctx, postID, rooms, viewers)
	return nil
}

// DestroyPost removes the post, its comments and all feed memberships.
// A nil destroyedBy means a system-initiated removal that emits no domain
// event.
func (s *BaseAPI) DestroyPost(ctx context.Context, postID uuid.UUID, destroyedBy *uuid.UUID) error {
	post, err := s.db.Post(ctx, postID)
	if err != nil {
		return WrapError(err, "Couldn't get post")
	}

	// Gather everything that must be known while the post is still stored.
	var (
		rooms           []string
		comments        []*eddy.Comment
		groups          []*eddy.User
		backlinkTargets []uuid.UUID
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rooms, err = s.roomsOf(gctx, post)
		return err
	})
	g.Go(func() (err error) {
		comments, err = s.db.PostComments(gctx, postID)
		return err
	})
	g.Go(func() (err error) {
		groups, err = s.db.GroupsPostedTo(gctx, postID)
		return err
	})
	g.Go(func() (err error) {
		backlinkTargets, err = s.db.PostBacklinkTargets(gctx, postID)
		return err
	})
	if err := g.Wait(); err != nil {
		return WrapError(err, "Couldn't gather post state")
	}

	for _, comment := range comments {
		if err := s.destroyCommentRow(ctx, comment, post, rooms); err != nil {
			return WrapError(err, "Couldn't remove post comments")
		}
	}

	if err := s.db.WithdrawPostFromFeeds(ctx, post.FeedIntIDs, postID); err != nil {
		return WrapError(err, "Couldn't withdraw post from feeds")
	}
	if err := s.db.DeletePost(ctx, postID); err != nil {
		return WrapError(err, "Couldn't delete post")
	}

	s.pubsub.DestroyPost(ctx, postID, rooms)
	if destroyedBy != nil {
		actor, err := s.db.User(ctx, *destroyedBy)
		if err != nil {
			return WrapError(err, "Couldn't get destroying user")
		}
		if err := s.events.OnPostDestroyed(ctx, post, actor, groups); err != nil {
			return WrapError(err, "Couldn't process post destruction event")
		}
	}
	s.notifyBacklinked(ctx, backlinkTargets)

	metricPostsDestroyed.Inc()
	return nil
}

// HidePost puts the post into the user's Hides feed, removing it from their
// home feed view. Returns false when the post was already hidden.
func (s *BaseAPI) HidePost(ctx context.Context, userID, postID uuid.UUID) (bool, error) {
	changed, err := s.postIntoNamedFeed(ctx, userID, postID, eddy.FeedHides, true)
	if err != nil {
		return false, err
	}
	s.pubsub.HidePost(ctx, userID, postID)
	return changed, nil
}

func (s *BaseAPI) UnhidePost(ctx context.Context, userID, postID uuid.UUID) (bool, error) {
	changed, err := s.postIntoNamedFeed(ctx, userID, postID, eddy.FeedHides, false)
	if err != nil {
		return false, err
	}
	s.pubsub.UnhidePost(ctx, userID, postID)
	return changed, nil
}

// SavePost bookmarks the post in the user's Saves feed.
func (s *BaseAPI) SavePost(ctx context.Context, userID, postID uuid.UUID) (bool, error) {
	changed, err := s.postIntoNamedFeed(ctx, userID, postID, eddy.FeedSaves, true)
	if err != nil {
		return false, err
	}
	s.pubsub.SavePost(ctx, userID, postID)
	return changed, nil
}

func (s *BaseAPI) UnsavePost(ctx context.Context, userID, postID uuid.UUID) (bool, error) {
	changed, err := s.postIntoNamedFeed(ctx, userID, postID, eddy.FeedSaves, false)
	if err != nil {
		return false, err
	}
	s.pubsub.UnsavePost(ctx, userID, postID)
	return changed, nil
}

func (s *BaseAPI) postIntoNamedFeed(ctx context.Context, userID, postID uuid.UUID, kind eddy.FeedKind, insert bool) (bool, error) {
	feed, err := s.db.UserNamedFeed(ctx, userID, kind)
	if err != nil {
		return false, WrapError(err, "Couldn't get user feed")
	}
	if insert {
		changed, err := s.db.InsertPostIntoFeed(ctx, feed.IntID, postID)
		if err != nil {
			return false, WrapError(err, "Couldn't insert post into feed")
		}
		return changed, nil
	}
	changed, err := s.db.WithdrawPostFromFeed(ctx, feed.IntID, postID)
	if err != nil {
		return false, WrapError(err, "Couldn't withdraw post from feed")
	}
	return changed, nil
}

// RemoveDirectRecipient withdraws the post from the user's Directs feed.
// Returns false when the user is the author or not a recipient.
func (s *BaseAPI) RemoveDirectRecipient(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	post, err := s.db.Post(ctx, postID)
	if err != nil {
		return false, WrapError(err, "Couldn't get post")
	}
	if post.AuthorID == userID {
		return false, nil
	}

	directsFeed, err := s.db.UserNamedFeed(ctx, userID, eddy.FeedDirects)
	if err != nil {
		return false, WrapError(err, "Couldn't get directs feed")
	}

	changed, err := s.db.WithdrawPostFromFeed(ctx, directsFeed.IntID, postID)
	if err != nil {
		return false, WrapError(err, "Couldn't withdraw post")
	}
	return changed, nil
}

// isStrictlyDirect reports whether every destination is a Directs feed.
// Only subscribers may read such posts, so activity never propagates.
func (s *BaseAPI) isStrictlyDirect(ctx context.Context, post *eddy.Post) (bool, error) {
	destFeeds, err := s.timelinesByIntIDs(ctx, post.DestinationFeedIDs)
	if err != nil {
		return false, err
	}
	for _, feed := range destFeeds {
		if feed.Kind != eddy.FeedDirects {
			return false, nil
		}
	}
	return true, nil
}

// publishChangesToFeeds inserts the post into the feeds it is missing from.
// For non-like activity it also bumps the post globally and touches group
// activity times.
func (s *BaseAPI) publishChangesToFeeds(ctx context.Context, post *eddy.Post, timelines []*eddy.Timeline, isLikeAction bool) error {
	feedIntIDs := make([]int, 0, len(timelines))
	ownerIDs := make([]uuid.UUID, 0, len(timelines))
	for _, t := range timelines {
		feedIntIDs = append(feedIntIDs, t.IntID)
		ownerIDs = append(ownerIDs, t.OwnerID)
	}

	// Diff against the stored membership, not the caller's snapshot.
	currentIntIDs, err := s.db.PostFeedIntIDs(ctx, post.ID)
	if err != nil {
		return fmt.Errorf("couldn't get post memberships: %w", err)
	}

	insertIntoFeedIDs := subtract(feedIntIDs, currentIntIDs)
	if len(insertIntoFeedIDs) > 0 {
		if err := s.db.InsertPostIntoFeeds(ctx, insertIntoFeedIDs, post.ID); err != nil {
			return fmt.Errorf("couldn't insert post into feeds: %w", err)
		}
	}

	if isLikeAction {
		return nil
	}

	now := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.db.SetPostBumpedAt(gctx, post.ID, now) })
	g.Go(func() error { return s.db.SetGroupsUpdatedAt(gctx, ownerIDs, now) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("couldn't bump post: %w", err)
	}

	s.pubsub.UpdateGroupTimes(ctx, ownerIDs)
	return nil
}
