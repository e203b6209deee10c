package feedapi

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/EddyProjects/eddy"
	"github.com/google/uuid"
	"github.com/rivo/uniseg"
)

type AddCommentRequest struct {
	PostID   uuid.UUID
	AuthorID uuid.UUID
	Body     string
}

// AddComment stores the comment and spreads the post to the commenter's
// audience: for non-direct posts the post enters the commenter's Comments
// feed and their subscribers' home feeds; direct posts stay with their
// recipients. Commenting bumps the post globally.
func (s *BaseAPI) AddComment(ctx context.Context, req AddCommentRequest) (*eddy.Comment, error) {
	post, err := s.db.Post(ctx, req.PostID)
	if err != nil {
		return nil, WrapError(err, "Couldn't get post")
	}
	if post.CommentsDisabled {
		return nil, Statusf(403, "Comments are disabled on this post")
	}

	comment := &eddy.Comment{
		CreatedAt: time.Now(),
		PostID:    req.PostID,
		AuthorID:  req.AuthorID,
		Body:      strings.TrimSpace(req.Body),
	}
	if comment.AuthorID == uuid.Nil {
		return nil, eddy.ErrAuthorRequired
	}
	if len(comment.Body) == 0 {
		return nil, eddy.ErrEmptyBody
	}
	if uniseg.GraphemeClusterCount(comment.Body) > s.maxCommentLength {
		return nil, Statusf(400, "Maximum comment length is %d graphemes", s.maxCommentLength)
	}

	user, err := s.db.User(ctx, req.AuthorID)
	if err != nil {
		return nil, WrapError(err, "Couldn't get comment author")
	}

	id, err := s.db.CreateComment(ctx, comment)
	if err != nil {
		return nil, WrapError(err, "Couldn't create comment")
	}
	comment.ID = id

	timelineIntIDs := append([]int(nil), post.DestinationFeedIDs...)

	// Only subscribers are allowed to read direct posts, so commenting on
	// them never expands the audience.
	strictlyDirect, err := s.isStrictlyDirect(ctx, post)
	if err != nil {
		return nil, WrapError(err, "Couldn't check post destinations")
	}
	if !strictlyDirect {
		moreIntIDs, err := s.friendOfFriendFeedIntIDs(ctx, post, user, eddy.FeedComments)
		if err != nil {
			return nil, WrapError(err, "Couldn't expand comment audience")
		}
		timelineIntIDs = uniq(append(timelineIntIDs, moreIntIDs...))
	}

	timelines, err := s.timelinesByIntIDs(ctx, timelineIntIDs)
	if err != nil {
		return nil, WrapError(err, "Couldn't resolve timelines")
	}

	// No updates to the rivers of users in a ban relation with the commenter.
	bans, err := s.db.BansAndBannedBy(ctx, user.ID)
	if err != nil {
		return nil, WrapError(err, "Couldn't get ban relations")
	}
	kept := timelines[:0]
	for _, timeline := range timelines {
		if !slices.Contains(bans, timeline.OwnerID) {
			kept = append(kept, timeline)
		}
	}

	if err := s.publishChangesToFeeds(ctx, post, kept, false); err != nil {
		return nil, WrapError(err, "Couldn't publish comment to feeds")
	}

	s.pubsub.NewComment(ctx, id, req.PostID)
	metricCommentsCreated.Inc()
	return comment, nil
}

// DeleteComment removes a single comment. When it was the author's last
// comment on the post, the post leaves their Comments feed.
func (s *BaseAPI) DeleteComment(ctx context.Context, commentID uuid.UUID) error {
	comment, err := s.db.Comment(ctx, commentID)
	if err != nil {
		return WrapError(err, "Couldn't get comment")
	}
	post, err := s.db.Post(ctx, comment.PostID)
	if err != nil {
		return WrapError(err, "Couldn't get post")
	}
	rooms, err := s.roomsOf(ctx, post)
	if err != nil {
		return WrapError(err, "Couldn't resolve realtime rooms")
	}

	if err := s.destroyCommentRow(ctx, comment, post, rooms); err != nil {
		return WrapError(err, "Couldn't delete comment")
	}
	return nil
}

func (s *BaseAPI) destroyCommentRow(ctx context.Context, comment *eddy.Comment, post *eddy.Post, rooms []string) error {
	if err := s.db.DeleteComment(ctx, comment.ID); err != nil {
		return err
	}

	stillHas, err := s.db.UserHasCommentsOnPost(ctx, post.ID, comment.AuthorID)
	if err != nil {
		return err
	}
	if !stillHas {
		commentsFeed, err := s.db.UserNamedFeed(ctx, comment.AuthorID, eddy.FeedComments)
		if err != nil {
			return err
		}
		if _, err := s.db.WithdrawPostFromFeed(ctx, commentsFeed.IntID, post.ID); err != nil {
			return err
		}
	}

	s.pubsub.DestroyComment(ctx, comment.ID, post.ID, rooms)
	return nil
}
