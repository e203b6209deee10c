package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *DB) PostBacklinkTargets(ctx context.Context, postID uuid.UUID) ([]uuid.UUID, error) {
	rows, _ := s.pgconn.Query(ctx, "SELECT target_post_id FROM backlinks WHERE post_id = $1", postID)
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (s *DB) LinkBacklinks(ctx context.Context, postID uuid.UUID, targetIDs []uuid.UUID) error {
	if len(targetIDs) == 0 {
		return nil
	}
	// Targets may mention posts that no longer (or never) existed; only
	// resolvable references become rows.
	_, err := s.pgconn.Exec(ctx, `
		INSERT INTO backlinks (post_id, target_post_id)
		SELECT $1, p.id FROM posts p WHERE p.id = ANY($2)
		ON CONFLICT DO NOTHING
	`, postID, targetIDs)
	return err
}

func (s *DB) UnlinkBacklinks(ctx context.Context, postID uuid.UUID, targetIDs []uuid.UUID) error {
	if len(targetIDs) == 0 {
		return nil
	}
	_, err := s.pgconn.Exec(ctx, "DELETE FROM backlinks WHERE post_id = $1 AND target_post_id = ANY($2)", postID, targetIDs)
	return err
}

// BacklinkCounts counts, per target post, the referencing posts the viewer is
// allowed to see. Self-references never count.
func (s *DB) BacklinkCounts(ctx context.Context, postIDs []uuid.UUID, viewerID *uuid.UUID) (map[uuid.UUID]int, error) {
	q := `
		SELECT b.target_post_id AS id, COUNT(*) AS cnt
		FROM backlinks b
		JOIN posts p ON p.id = b.post_id
		JOIN users a ON a.id = p.author_id
		WHERE b.target_post_id = ANY($1)
			AND b.post_id <> b.target_post_id
			AND a.status = 'active'
	`
	args := []any{postIDs}
	if viewerID == nil {
		q += " AND NOT p.is_protected"
	} else {
		q += `
			AND NOT EXISTS (
				SELECT 1 FROM bans
				WHERE (user_id = $2 AND banned_user_id = p.author_id)
					OR (user_id = p.author_id AND banned_user_id = $2)
			)
			AND (NOT p.is_private OR EXISTS (
				SELECT 1 FROM feeds f
				LEFT JOIN subscriptions sub ON sub.feed_id = f.id AND sub.user_id = $2
				WHERE f.int_id = ANY(p.destination_feed_ids)
					AND (sub.user_id IS NOT NULL OR f.owner_id = $2)
			))
		`
		args = append(args, *viewerID)
	}
	q += " GROUP BY b.target_post_id"

	rows, _ := s.pgconn.Query(ctx, q, args...)
	type countRow struct {
		ID  uuid.UUID `db:"id"`
		Cnt int       `db:"cnt"`
	}
	counts, err := pgx.CollectRows(rows, pgx.RowToStructByName[countRow])
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]int, len(counts))
	for _, c := range counts {
		out[c.ID] = c.Cnt
	}
	return out, nil
}
