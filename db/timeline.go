package db

import (
	"context"
	"errors"
	"time"

	"github.com/EddyProjects/eddy"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type dbTimeline struct {
	IntID     int       `db:"int_id"`
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	Kind      int       `db:"kind"`
	OwnerID   uuid.UUID `db:"owner_id"`
}

func (s *DB) TimelineByIntID(ctx context.Context, intID int) (*eddy.Timeline, error) {
	rows, _ := s.pgconn.Query(ctx, "SELECT * FROM feeds WHERE int_id = $1 LIMIT 1", intID)
	return s.collectTimeline(rows)
}

func (s *DB) TimelinesByIDs(ctx context.Context, ids []uuid.UUID) ([]*eddy.Timeline, error) {
	rows, _ := s.pgconn.Query(ctx, "SELECT * FROM feeds WHERE id = ANY($1)", ids)
	return s.collectTimelines(rows)
}

func (s *DB) TimelinesByIntIDs(ctx context.Context, intIDs []int) ([]*eddy.Timeline, error) {
	rows, _ := s.pgconn.Query(ctx, "SELECT * FROM feeds WHERE int_id = ANY($1)", intIDs)
	return s.collectTimelines(rows)
}

func (s *DB) UserNamedFeed(ctx context.Context, ownerID uuid.UUID, kind eddy.FeedKind) (*eddy.Timeline, error) {
	rows, _ := s.pgconn.Query(ctx, "SELECT * FROM feeds WHERE owner_id = $1 AND kind = $2 LIMIT 1", ownerID, int(kind))
	return s.collectTimeline(rows)
}

func (s *DB) UsersNamedFeeds(ctx context.Context, ownerIDs []uuid.UUID, kind eddy.FeedKind) ([]*eddy.Timeline, error) {
	rows, _ := s.pgconn.Query(ctx, "SELECT * FROM feeds WHERE owner_id = ANY($1) AND kind = $2", ownerIDs, int(kind))
	return s.collectTimelines(rows)
}

func (s *DB) UsersNamedFeedIntIDs(ctx context.Context, ownerIDs []uuid.UUID, kind eddy.FeedKind) ([]int, error) {
	rows, _ := s.pgconn.Query(ctx, "SELECT int_id FROM feeds WHERE owner_id = ANY($1) AND kind = $2", ownerIDs, int(kind))
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

func (s *DB) TimelineSubscriberIDs(ctx context.Context, feedID uuid.UUID) ([]uuid.UUID, error) {
	rows, _ := s.pgconn.Query(ctx, "SELECT user_id FROM subscriptions WHERE feed_id = $1", feedID)
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (s *DB) UsersSubscribedToFeeds(ctx context.Context, feedIDs []uuid.UUID) ([]uuid.UUID, error) {
	rows, _ := s.pgconn.Query(ctx, "SELECT DISTINCT user_id FROM subscriptions WHERE feed_id = ANY($1)", feedIDs)
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// HomeFeedsSubscribedToUsers expands "everyone subscribed to any feed of
// these owners" into their RiverOfNews feed ids.
func (s *DB) HomeFeedsSubscribedToUsers(ctx context.Context, ownerIDs []uuid.UUID) ([]uuid.UUID, error) {
	rows, _ := s.pgconn.Query(ctx, `
		SELECT DISTINCT river.id
		FROM feeds owned
		JOIN subscriptions sub ON sub.feed_id = owned.id
		JOIN feeds river ON river.owner_id = sub.user_id AND river.kind = $2
		WHERE owned.owner_id = ANY($1)
	`, ownerIDs, int(eddy.FeedRiverOfNews))
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (s *DB) HomeFeedsHideLists(ctx context.Context, feedIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	rows, _ := s.pgconn.Query(ctx, "SELECT feed_id, hidden_user_id FROM home_feed_hides WHERE feed_id = ANY($1)", feedIDs)
	type hideRow struct {
		FeedID       uuid.UUID `db:"feed_id"`
		HiddenUserID uuid.UUID `db:"hidden_user_id"`
	}
	hides, err := pgx.CollectRows(rows, pgx.RowToStructByName[hideRow])
	if err != nil {
		return nil, err
	}

	// Every requested feed gets an entry, even with an empty hide list.
	lists := make(map[uuid.UUID][]uuid.UUID, len(feedIDs))
	for _, id := range feedIDs {
		lists[id] = []uuid.UUID{}
	}
	for _, h := range hides {
		lists[h.FeedID] = append(lists[h.FeedID], h.HiddenUserID)
	}
	return lists, nil
}

func (s *DB) SetGroupsUpdatedAt(ctx context.Context, ownerIDs []uuid.UUID, at time.Time) error {
	if len(ownerIDs) == 0 {
		return nil
	}
	_, err := s.pgconn.Exec(ctx, "UPDATE users SET updated_at = $2 WHERE id = ANY($1) AND is_group", ownerIDs, at)
	return err
}

func (s *DB) GroupsPostedTo(ctx context.Context, postID uuid.UUID) ([]*eddy.User, error) {
	rows, _ := s.pgconn.Query(ctx, `
		SELECT u.* FROM users u
		JOIN feeds f ON f.owner_id = u.id
		JOIN feed_posts fp ON fp.feed_int_id = f.int_id
		JOIN posts p ON p.id = fp.post_id AND f.int_id = ANY(p.destination_feed_ids)
		WHERE fp.post_id = $1 AND u.is_group
	`, postID)
	users, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[dbUser])
	if err != nil {
		return nil, err
	}
	return mapper(users, s.internalToUser), nil
}

func (s *DB) collectTimeline(rows pgx.Rows) (*eddy.Timeline, error) {
	feed, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[dbTimeline])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eddy.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.internalToTimeline(feed), nil
}

func (s *DB) collectTimelines(rows pgx.Rows) ([]*eddy.Timeline, error) {
	feeds, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[dbTimeline])
	if err != nil {
		return nil, err
	}
	return mapper(feeds, s.internalToTimeline), nil
}

func (s *DB) internalToTimeline(feed *dbTimeline) *eddy.Timeline {
	if feed == nil {
		return nil
	}
	return &eddy.Timeline{
		ID:        feed.ID,
		IntID:     feed.IntID,
		CreatedAt: feed.CreatedAt,
		Kind:      eddy.FeedKind(feed.Kind),
		OwnerID:   feed.OwnerID,
	}
}
