package feedapi

import (
	"context"
	"log/slog"

	"github.com/EddyProjects/eddy"
	"github.com/google/uuid"
)

// LogEvents records domain events in the structured log. Deployments with a
// notification/digest subsystem plug in their own sink instead.
type LogEvents struct{}

var _ eddy.EventSink = &LogEvents{}

func (*LogEvents) OnPostCreated(ctx context.Context, post *eddy.Post, destFeedIDs []uuid.UUID, author *eddy.User) error {
	slog.InfoContext(ctx, "Post created",
		slog.Any("post_id", post.ID),
		slog.String("author", author.Username),
		slog.Int("destinations", len(destFeedIDs)))
	return nil
}

func (*LogEvents) OnPostFeedsChanged(ctx context.Context, post *eddy.Post, actor *eddy.User, info eddy.FeedsChangedInfo) error {
	slog.InfoContext(ctx, "Post feeds changed",
		slog.Any("post_id", post.ID),
		slog.String("actor", actor.Username),
		slog.Int("added", len(info.AddedFeeds)),
		slog.Int("removed", len(info.RemovedFeeds)))
	return nil
}

func (*LogEvents) OnPostDestroyed(ctx context.Context, post *eddy.Post, actor *eddy.User, groups []*eddy.User) error {
	slog.InfoContext(ctx, "Post destroyed",
		slog.Any("post_id", post.ID),
		slog.String("actor", actor.Username),
		slog.Int("groups", len(groups)))
	return nil
}
