package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *DB) PostHashtags(ctx context.Context, postID uuid.UUID) ([]string, error) {
	rows, _ := s.pgconn.Query(ctx, `
		SELECT h.name FROM hashtags h
		JOIN post_hashtags ph ON ph.hashtag_id = h.id
		WHERE ph.post_id = $1
		ORDER BY h.name ASC
	`, postID)
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *DB) LinkPostHashtags(ctx context.Context, names []string, postID uuid.UUID) error {
	if len(names) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pgconn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO hashtags (name) SELECT unnest($1::text[])
			ON CONFLICT DO NOTHING
		`, names); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO post_hashtags (post_id, hashtag_id)
			SELECT $1, id FROM hashtags WHERE name = ANY($2)
			ON CONFLICT DO NOTHING
		`, postID, names)
		return err
	})
}

func (s *DB) UnlinkPostHashtags(ctx context.Context, names []string, postID uuid.UUID) error {
	if len(names) == 0 {
		return nil
	}
	_, err := s.pgconn.Exec(ctx, `
		DELETE FROM post_hashtags
		WHERE post_id = $1 AND hashtag_id IN (SELECT id FROM hashtags WHERE name = ANY($2))
	`, postID, names)
	return err
}
