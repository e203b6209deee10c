package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *DB) PostAttachmentIDs(ctx context.Context, postID uuid.UUID) ([]uuid.UUID, error) {
	rows, _ := s.pgconn.Query(ctx, "SELECT attachment_id FROM post_attachments WHERE post_id = $1 ORDER BY ord ASC", postID)
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (s *DB) LinkAttachmentToPost(ctx context.Context, attachmentID, postID uuid.UUID, ord int) error {
	_, err := s.pgconn.Exec(ctx, `
		INSERT INTO post_attachments (post_id, attachment_id, ord) VALUES ($1, $2, $3)
		ON CONFLICT (post_id, attachment_id) DO UPDATE SET ord = EXCLUDED.ord
	`, postID, attachmentID, ord)
	return err
}

func (s *DB) UnlinkAttachmentFromPost(ctx context.Context, attachmentID, postID uuid.UUID) error {
	_, err := s.pgconn.Exec(ctx, "DELETE FROM post_attachments WHERE post_id = $1 AND attachment_id = $2", postID, attachmentID)
	return err
}
