package db

import (
	"context"
	"errors"
	"time"

	"github.com/EddyProjects/eddy"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type dbPost struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	BumpedAt  time.Time `db:"bumped_at"`

	AuthorID uuid.UUID `db:"author_id"`
	Body     string    `db:"body"`

	CommentsDisabled bool `db:"comments_disabled"`

	IsPrivate    bool `db:"is_private"`
	IsProtected  bool `db:"is_protected"`
	IsPropagable bool `db:"is_propagable"`

	DestinationFeedIDs []int `db:"destination_feed_ids"`
	FeedIntIDs         []int `db:"feed_int_ids"`

	AttachmentIDs []uuid.UUID `db:"attachment_ids"`

	CommentsCount int `db:"comments_count"`
	LikesCount    int `db:"likes_count"`
}

const postSelect = `
SELECT posts.*,
	COALESCE((SELECT array_agg(fp.feed_int_id) FROM feed_posts fp WHERE fp.post_id = posts.id), '{}') AS feed_int_ids,
	COALESCE((SELECT array_agg(pa.attachment_id ORDER BY pa.ord) FROM post_attachments pa WHERE pa.post_id = posts.id), '{}') AS attachment_ids
FROM posts
`

func (s *DB) Post(ctx context.Context, id uuid.UUID) (*eddy.Post, error) {
	rows, _ := s.pgconn.Query(ctx, postSelect+" WHERE posts.id = $1 LIMIT 1", id)
	post, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[dbPost])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eddy.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.internalToPost(post), nil
}

// destFeedTraits is what flag derivation needs to know about a destination.
type destFeedTraits struct {
	IntID            int  `db:"int_id"`
	Kind             int  `db:"kind"`
	OwnerIsGroup     bool `db:"is_group"`
	OwnerIsPrivate   bool `db:"is_private"`
	OwnerIsProtected bool `db:"is_protected"`
}

func (s *DB) destinationTraits(ctx context.Context, tx pgx.Tx, feedIntIDs []int) ([]*destFeedTraits, error) {
	rows, _ := tx.Query(ctx, `
		SELECT f.int_id, f.kind, u.is_group, u.is_private, u.is_protected
		FROM feeds f JOIN users u ON u.id = f.owner_id
		WHERE f.int_id = ANY($1)
	`, feedIntIDs)
	return pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[destFeedTraits])
}

// derivePostFlags computes the private/protected/propagable triple from the
// destination feeds. A post is private when no destination is publicly
// readable, protected when no destination is readable by anonymous visitors,
// and propagable when at least one destination is the Posts feed of a
// non-private, non-group user.
func derivePostFlags(dests []*destFeedTraits) (isPrivate, isProtected, isPropagable bool) {
	isPrivate, isProtected = true, true
	for _, d := range dests {
		direct := eddy.FeedKind(d.Kind) == eddy.FeedDirects
		if !direct && !d.OwnerIsPrivate {
			isPrivate = false
		}
		if !direct && !d.OwnerIsPrivate && !d.OwnerIsProtected {
			isProtected = false
		}
		if eddy.FeedKind(d.Kind) == eddy.FeedPosts && !d.OwnerIsGroup && !d.OwnerIsPrivate {
			isPropagable = true
		}
	}
	return isPrivate, isProtected, isPropagable
}

func (s *DB) CreatePost(ctx context.Context, post *eddy.Post, feedIntIDs []int) (uuid.UUID, error) {
	if post.AuthorID == uuid.Nil {
		return uuid.Nil, eddy.ErrMissingRequired
	}

	var id uuid.UUID
	err := pgx.BeginFunc(ctx, s.pgconn, func(tx pgx.Tx) error {
		dests, err := s.destinationTraits(ctx, tx, feedIntIDs)
		if err != nil {
			return err
		}
		if len(dests) != len(feedIntIDs) {
			return eddy.ErrNotFound
		}
		isPrivate, isProtected, isPropagable := derivePostFlags(dests)

		err = tx.QueryRow(ctx, `
			INSERT INTO posts (author_id, body, comments_disabled, is_private, is_protected, is_propagable, destination_feed_ids)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, post.AuthorID, post.Body, post.CommentsDisabled, isPrivate, isProtected, isPropagable, feedIntIDs).Scan(&id)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO feed_posts (feed_int_id, post_id)
			SELECT unnest($1::integer[]), $2
			ON CONFLICT DO NOTHING
		`, feedIntIDs, id)
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *DB) UpdatePost(ctx context.Context, id uuid.UUID, upd eddy.PostRowUpdate) error {
	return pgx.BeginFunc(ctx, s.pgconn, func(tx pgx.Tx) error {
		ub := newUpdateBuilder()
		if v := upd.Body; v != nil {
			ub.AddUpdate("body = %s", v)
		}
		if v := upd.CommentsDisabled; v != nil {
			ub.AddUpdate("comments_disabled = %s", v)
		}
		if v := upd.UpdatedAt; v != nil {
			ub.AddUpdate("updated_at = %s", v)
		}
		if v := upd.DestinationFeedIDs; v != nil {
			dests, err := s.destinationTraits(ctx, tx, v)
			if err != nil {
				return err
			}
			if len(dests) != len(v) {
				return eddy.ErrNotFound
			}
			isPrivate, isProtected, isPropagable := derivePostFlags(dests)
			ub.AddUpdate("destination_feed_ids = %s", v)
			ub.AddUpdate("is_private = %s", isPrivate)
			ub.AddUpdate("is_protected = %s", isProtected)
			ub.AddUpdate("is_propagable = %s", isPropagable)
		}
		if err := ub.CheckUpdates(); err != nil && upd.FeedIntIDs == nil {
			return err
		}

		if ub.ToUpdate() != "" {
			fb := ub.MakeFilter()
			fb.AddConstraint("id = %s", id)
			if _, err := tx.Exec(ctx, "UPDATE posts SET "+fb.WithUpdate(), fb.Args()...); err != nil {
				return err
			}
		}

		// Replace the full membership if requested.
		if upd.FeedIntIDs != nil {
			if _, err := tx.Exec(ctx, `
				DELETE FROM feed_posts WHERE post_id = $1 AND NOT (feed_int_id = ANY($2))
			`, id, upd.FeedIntIDs); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO feed_posts (feed_int_id, post_id)
				SELECT unnest($1::integer[]), $2
				ON CONFLICT DO NOTHING
			`, upd.FeedIntIDs, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *DB) DeletePost(ctx context.Context, id uuid.UUID) error {
	_, err := s.pgconn.Exec(ctx, "DELETE FROM posts WHERE id = $1", id)
	return err
}

func (s *DB) SetPostBumpedAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pgconn.Exec(ctx, "UPDATE posts SET bumped_at = $1 WHERE id = $2", at, id)
	return err
}

func (s *DB) SetLocalBumps(ctx context.Context, postID uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := s.pgconn.Exec(ctx, `
		INSERT INTO local_bumps (post_id, user_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING
	`, postID, userIDs)
	return err
}

func (s *DB) InsertPostIntoFeeds(ctx context.Context, feedIntIDs []int, postID uuid.UUID) error {
	if len(feedIntIDs) == 0 {
		return nil
	}
	_, err := s.pgconn.Exec(ctx, `
		INSERT INTO feed_posts (feed_int_id, post_id)
		SELECT unnest($1::integer[]), $2
		ON CONFLICT DO NOTHING
	`, feedIntIDs, postID)
	return err
}

func (s *DB) WithdrawPostFromFeeds(ctx context.Context, feedIntIDs []int, postID uuid.UUID) error {
	if len(feedIntIDs) == 0 {
		return nil
	}
	_, err := s.pgconn.Exec(ctx, "DELETE FROM feed_posts WHERE post_id = $1 AND feed_int_id = ANY($2)", postID, feedIntIDs)
	return err
}

func (s *DB) InsertPostIntoFeed(ctx context.Context, feedIntID int, postID uuid.UUID) (bool, error) {
	tag, err := s.pgconn.Exec(ctx, `
		INSERT INTO feed_posts (feed_int_id, post_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, feedIntID, postID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *DB) WithdrawPostFromFeed(ctx context.Context, feedIntID int, postID uuid.UUID) (bool, error) {
	var effect bool
	err := pgx.BeginFunc(ctx, s.pgconn, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM feed_posts WHERE feed_int_id = $1 AND post_id = $2", feedIntID, postID)
		if err != nil {
			return err
		}
		effect = tag.RowsAffected() > 0
		_, err = tx.Exec(ctx, "UPDATE posts SET destination_feed_ids = array_remove(destination_feed_ids, $1) WHERE id = $2", feedIntID, postID)
		return err
	})
	return effect, err
}

func (s *DB) IsPostInFeed(ctx context.Context, feedIntID int, postID uuid.UUID) (bool, error) {
	var present bool
	err := s.pgconn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM feed_posts WHERE feed_int_id = $1 AND post_id = $2)", feedIntID, postID).Scan(&present)
	return present, err
}

func (s *DB) PostFeedIntIDs(ctx context.Context, postID uuid.UUID) ([]int, error) {
	rows, _ := s.pgconn.Query(ctx, "SELECT feed_int_id FROM feed_posts WHERE post_id = $1", postID)
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *DB) LikePost(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	var liked bool
	err := pgx.BeginFunc(ctx, s.pgconn, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO likes (post_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, postID, userID)
		if err != nil {
			return err
		}
		liked = tag.RowsAffected() > 0
		if !liked {
			return nil
		}
		_, err = tx.Exec(ctx, "UPDATE posts SET likes_count = likes_count + 1 WHERE id = $1", postID)
		return err
	})
	return liked, err
}

func (s *DB) UnlikePost(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	var unliked bool
	err := pgx.BeginFunc(ctx, s.pgconn, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM likes WHERE post_id = $1 AND user_id = $2", postID, userID)
		if err != nil {
			return err
		}
		unliked = tag.RowsAffected() > 0
		if !unliked {
			return nil
		}
		_, err = tx.Exec(ctx, "UPDATE posts SET likes_count = likes_count - 1 WHERE id = $1", postID)
		return err
	})
	return unliked, err
}

func (s *DB) internalToPost(post *dbPost) *eddy.Post {
	if post == nil {
		return nil
	}
	return &eddy.Post{
		ID:        post.ID,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
		BumpedAt:  post.BumpedAt,

		AuthorID: post.AuthorID,
		Body:     post.Body,

		AttachmentIDs:    post.AttachmentIDs,
		CommentsDisabled: post.CommentsDisabled,

		IsPrivate:    post.IsPrivate,
		IsProtected:  post.IsProtected,
		IsPropagable: post.IsPropagable,

		DestinationFeedIDs: post.DestinationFeedIDs,
		FeedIntIDs:         post.FeedIntIDs,

		CommentsCount: post.CommentsCount,
		LikesCount:    post.LikesCount,
	}
}
