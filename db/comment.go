package db

import (
	"context"
	"errors"
	"time"

	"github.com/EddyProjects/eddy"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type dbComment struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	PostID   uuid.UUID `db:"post_id"`
	AuthorID uuid.UUID `db:"author_id"`
	Body     string    `db:"body"`
}

func (s *DB) Comment(ctx context.Context, id uuid.UUID) (*eddy.Comment, error) {
	rows, _ := s.pgconn.Query(ctx, "SELECT * FROM comments WHERE id = $1 LIMIT 1", id)
	comment, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[dbComment])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eddy.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return s.internalToComment(comment), nil
}

func (s *DB) CreateComment(ctx context.Context, comment *eddy.Comment) (uuid.UUID, error) {
	if comment.AuthorID == uuid.Nil || comment.PostID == uuid.Nil {
		return uuid.Nil, eddy.ErrMissingRequired
	}

	var id uuid.UUID
	err := pgx.BeginFunc(ctx, s.pgconn, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO comments (post_id, author_id, body) VALUES ($1, $2, $3) RETURNING id
		`, comment.PostID, comment.AuthorID, comment.Body).Scan(&id)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, "UPDATE posts SET comments_count = comments_count + 1 WHERE id = $1", comment.PostID)
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *DB) DeleteComment(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginFunc(ctx, s.pgconn, func(tx pgx.Tx) error {
		var postID uuid.UUID
		err := tx.QueryRow(ctx, "DELETE FROM comments WHERE id = $1 RETURNING post_id", id).Scan(&postID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, "UPDATE posts SET comments_count = comments_count - 1 WHERE id = $1", postID)
		return err
	})
}

func (s *DB) PostComments(ctx context.Context, postID uuid.UUID) ([]*eddy.Comment, error) {
	rows, _ := s.pgconn.Query(ctx, "SELECT * FROM comments WHERE post_id = $1 ORDER BY created_at ASC", postID)
	comments, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[dbComment])
	if err != nil {
		return nil, err
	}
	return mapper(comments, s.internalToComment), nil
}

func (s *DB) UserHasCommentsOnPost(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	var has bool
	err := s.pgconn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM comments WHERE post_id = $1 AND author_id = $2)", postID, userID).Scan(&has)
	return has, err
}

func (s *DB) internalToComment(comment *dbComment) *eddy.Comment {
	if comment == nil {
		return nil
	}
	return &eddy.Comment{
		ID:        comment.ID,
		CreatedAt: comment.CreatedAt,

		PostID:   comment.PostID,
		AuthorID: comment.AuthorID,
		Body:     comment.Body,
	}
}
