package db

import (
	"context"
	"errors"
	"time"

	"github.com/EddyProjects/eddy"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type dbUser struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	Username string `db:"username"`
	Status   string `db:"status"`
	IsGroup  bool   `db:"is_group"`

	IsPrivate   bool `db:"is_private"`
	IsProtected bool `db:"is_protected"`
}

func (s *DB) User(ctx context.Context, id uuid.UUID) (*eddy.User, error) {
	rows, _ := s.pgconn.Query(ctx, "SELECT * FROM users WHERE id = $1 LIMIT 1", id)
	user, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[dbUser])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eddy.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.internalToUser(user), nil
}

// BansAndBannedBy merges both directions of the ban relation: bans are
// symmetric in effect even though the rows are directed.
func (s *DB) BansAndBannedBy(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, _ := s.pgconn.Query(ctx, `
		SELECT banned_user_id FROM bans WHERE user_id = $1
		UNION
		SELECT user_id FROM bans WHERE banned_user_id = $1
	`, userID)
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// VisiblePrivateFeedIntIDs returns the private destination feeds readable by
// the viewer: Directs feeds and private users' Posts feeds the viewer owns
// or subscribes to.
func (s *DB) VisiblePrivateFeedIntIDs(ctx context.Context, userID uuid.UUID) ([]int, error) {
	rows, _ := s.pgconn.Query(ctx, `
		SELECT DISTINCT f.int_id
		FROM feeds f
		JOIN users u ON u.id = f.owner_id
		LEFT JOIN subscriptions sub ON sub.feed_id = f.id AND sub.user_id = $1
		WHERE ((f.kind = $2 AND u.is_private) OR f.kind = $3)
			AND (sub.user_id IS NOT NULL OR f.owner_id = $1)
	`, userID, int(eddy.FeedPosts), int(eddy.FeedDirects))
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

// UsersWhoCanSeePrivateFeeds returns, as a closed list, the owners and
// subscribers of the given feeds.
func (s *DB) UsersWhoCanSeePrivateFeeds(ctx context.Context, feedIntIDs []int) (eddy.UserList, error) {
	rows, _ := s.pgconn.Query(ctx, `
		SELECT sub.user_id FROM subscriptions sub
		JOIN feeds f ON f.id = sub.feed_id
		WHERE f.int_id = ANY($1)
		UNION
		SELECT owner_id FROM feeds WHERE int_id = ANY($1)
	`, feedIntIDs)
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return eddy.Nobody(), err
	}
	return eddy.ClosedUserList(ids...), nil
}

func (s *DB) internalToUser(user *dbUser) *eddy.User {
	if user == nil {
		return nil
	}
	return &eddy.User{
		ID:        user.ID,
		CreatedAt: user.CreatedAt,

		Username: user.Username,
		Status:   eddy.UserStatus(user.Status),
		IsGroup:  user.IsGroup,

		IsPrivate:   user.IsPrivate,
		IsProtected: user.IsProtected,
	}
}
