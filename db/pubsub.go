package db

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/EddyProjects/eddy"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const notifyChannel = "eddy_realtime"

// rtEvent is the envelope pushed through Postgres NOTIFY. The realtime
// delivery daemon listens on the channel and routes by rooms.
type rtEvent struct {
	Kind string `json:"kind"`

	PostID    uuid.UUID `json:"post_id,omitempty"`
	CommentID uuid.UUID `json:"comment_id,omitempty"`
	UserID    uuid.UUID `json:"user_id,omitempty"`

	Rooms    []string    `json:"rooms,omitempty"`
	GroupIDs []uuid.UUID `json:"group_ids,omitempty"`

	ViewersInclusive bool        `json:"viewers_inclusive,omitempty"`
	ViewerIDs        []uuid.UUID `json:"viewer_ids,omitempty"`
}

// PgPubSub publishes realtime events through Postgres NOTIFY. Delivery is
// best-effort: failures are logged, never returned.
type PgPubSub struct {
	pgconn *pgxpool.Pool
}

var _ eddy.PubSub = &PgPubSub{}

func NewPgPubSub(pool *pgxpool.Pool) *PgPubSub {
	return &PgPubSub{pgconn: pool}
}

func (p *PgPubSub) publish(ctx context.Context, ev rtEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.WarnContext(ctx, "Could not marshal realtime event", slog.Any("err", err))
		return
	}
	if _, err := p.pgconn.Exec(ctx, "SELECT pg_notify($1, $2)", notifyChannel, string(payload)); err != nil {
		slog.WarnContext(ctx, "Could not publish realtime event", slog.String("kind", ev.Kind), slog.Any("err", err))
	}
}

func (p *PgPubSub) NewPost(ctx context.Context, postID uuid.UUID) {
	p.publish(ctx, rtEvent{Kind: "post:new", PostID: postID})
}

func (p *PgPubSub) UpdatePost(ctx context.Context, postID uuid.UUID, rooms []string, viewersBefore eddy.UserList) {
	p.publish(ctx, rtEvent{
		Kind:   "post:update",
		PostID: postID,
		Rooms:  rooms,

		ViewersInclusive: viewersBefore.Inclusive(),
		ViewerIDs:        viewersBefore.IDs(),
	})
}

func (p *PgPubSub) DestroyPost(ctx context.Context, postID uuid.UUID, rooms []string) {
	p.publish(ctx, rtEvent{Kind: "post:destroy", PostID: postID, Rooms: rooms})
}

func (p *PgPubSub) NewComment(ctx context.Context, commentID, postID uuid.UUID) {
	p.publish(ctx, rtEvent{Kind: "comment:new", CommentID: commentID, PostID: postID})
}

func (p *PgPubSub) DestroyComment(ctx context.Context, commentID, postID uuid.UUID, rooms []string) {
	p.publish(ctx, rtEvent{Kind: "comment:destroy", CommentID: commentID, PostID: postID, Rooms: rooms})
}

func (p *PgPubSub) NewLike(ctx context.Context, postID, userID uuid.UUID) {
	p.publish(ctx, rtEvent{Kind: "like:new", PostID: postID, UserID: userID})
}

func (p *PgPubSub) RemoveLike(ctx context.Context, postID, userID uuid.UUID, rooms []string) {
	p.publish(ctx, rtEvent{Kind: "like:remove", PostID: postID, UserID: userID, Rooms: rooms})
}

func (p *PgPubSub) HidePost(ctx context.Context, userID, postID uuid.UUID) {
	p.publish(ctx, rtEvent{Kind: "post:hide", PostID: postID, UserID: userID})
}

func (p *PgPubSub) UnhidePost(ctx context.Context, userID, postID uuid.UUID) {
	p.publish(ctx, rtEvent{Kind: "post:unhide", PostID: postID, UserID: userID})
}

func (p *PgPubSub) SavePost(ctx context.Context, userID, postID uuid.UUID) {
	p.publish(ctx, rtEvent{Kind: "post:save", PostID: postID, UserID: userID})
}

func (p *PgPubSub) UnsavePost(ctx context.Context, userID, postID uuid.UUID) {
	p.publish(ctx, rtEvent{Kind: "post:unsave", PostID: postID, UserID: userID})
}

func (p *PgPubSub) UpdateUnreadDirects(ctx context.Context, userID uuid.UUID) {
	p.publish(ctx, rtEvent{Kind: "directs:unread", UserID: userID})
}

func (p *PgPubSub) UpdateGroupTimes(ctx context.Context, groupIDs []uuid.UUID) {
	if len(groupIDs) == 0 {
		return
	}
	p.publish(ctx, rtEvent{Kind: "groups:times", GroupIDs: groupIDs})
}

// NotifyListener holds a connection dedicated to LISTEN; the realtime daemon
// uses it to receive what PgPubSub publishes.
type NotifyListener struct {
	conn *pgx.Conn
}

func NewListener(ctx context.Context, originalConf *pgx.ConnConfig) (*NotifyListener, error) {
	conn, err := pgx.ConnectConfig(ctx, originalConf.Copy())
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return &NotifyListener{conn}, nil
}

// WaitForNotification blocks until the next published event; run it in a loop.
func (l *NotifyListener) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	return l.conn.WaitForNotification(ctx)
}

func (l *NotifyListener) Close(ctx context.Context) error {
	return l.conn.Close(ctx)
}
