package feedapi

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Hashtags start with # and run through letters, digits and underscores.
// Names are NFC-normalized and case-folded so "Go" and "GO" link identically.
var hashtagRegex = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

func extractHashtags(body string) []string {
	matches := hashtagRegex.FindAllStringSubmatch(body, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.ToLower(norm.NFC.String(m[1])))
	}
	return uniq(names)
}

func (s *BaseAPI) linkPostHashtags(ctx context.Context, postID uuid.UUID, body string) error {
	names := extractHashtags(body)
	if len(names) == 0 {
		return nil
	}
	if err := s.db.LinkPostHashtags(ctx, names, postID); err != nil {
		return fmt.Errorf("couldn't link hashtags: %w", err)
	}
	return nil
}

// syncPostHashtags diffs the stored hashtag links against the new body and
// applies exactly the additions and removals.
func (s *BaseAPI) syncPostHashtags(ctx context.Context, postID uuid.UUID, newBody string) error {
	present, err := s.db.PostHashtags(ctx, postID)
	if err != nil {
		return fmt.Errorf("couldn't get current hashtags: %w", err)
	}

	added, removed := diffSets(present, extractHashtags(newBody))
	if len(removed) > 0 {
		if err := s.db.UnlinkPostHashtags(ctx, removed, postID); err != nil {
			return fmt.Errorf("couldn't unlink hashtags: %w", err)
		}
	}
	if len(added) > 0 {
		if err := s.db.LinkPostHashtags(ctx, added, postID); err != nil {
			return fmt.Errorf("couldn't link hashtags: %w", err)
		}
	}
	return nil
}
