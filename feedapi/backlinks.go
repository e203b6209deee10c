package feedapi

import (
	"context"
	"fmt"
	"regexp"

	"github.com/EddyProjects/eddy"
	"github.com/google/uuid"
)

var postRefRegex = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// extractPostRefs pulls post UUID mentions out of a body. Self-references
// never count.
func extractPostRefs(body string, selfID uuid.UUID) []uuid.UUID {
	matches := postRefRegex.FindAllString(body, -1)
	refs := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		id, err := uuid.Parse(m)
		if err != nil || id == selfID {
			continue
		}
		refs = append(refs, id)
	}
	return uniq(refs)
}

func (s *BaseAPI) linkBacklinks(ctx context.Context, postID uuid.UUID, body string) error {
	refs := extractPostRefs(body, postID)
	if len(refs) == 0 {
		return nil
	}
	if err := s.db.LinkBacklinks(ctx, postID, refs); err != nil {
		return fmt.Errorf("couldn't link backlinks: %w", err)
	}
	return nil
}

// syncBacklinks reconciles stored backlinks with the new body and returns
// the union of targets whose backlink count changed either way.
func (s *BaseAPI) syncBacklinks(ctx context.Context, postID uuid.UUID, newBody string) ([]uuid.UUID, error) {
	present, err := s.db.PostBacklinkTargets(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("couldn't get current backlinks: %w", err)
	}

	added, removed := diffSets(present, extractPostRefs(newBody, postID))
	if len(removed) > 0 {
		if err := s.db.UnlinkBacklinks(ctx, postID, removed); err != nil {
			return nil, fmt.Errorf("couldn't unlink backlinks: %w", err)
		}
	}
	if len(added) > 0 {
		if err := s.db.LinkBacklinks(ctx, postID, added); err != nil {
			return nil, fmt.Errorf("couldn't link backlinks: %w", err)
		}
	}
	return union(added, removed), nil
}

// notifyBacklinked tells the realtime layer that the given posts' backlink
// counts may have changed, so clients re-render the reference badges.
func (s *BaseAPI) notifyBacklinked(ctx context.Context, targetIDs []uuid.UUID) {
	for _, targetID := range targetIDs {
		rooms, err := s.RoomsOfPost(ctx, targetID)
		if err != nil {
			continue
		}
		s.pubsub.UpdatePost(ctx, targetID, rooms, eddy.Everyone())
	}
}

// BacklinkCounts returns, for each post, how many other posts the viewer can
// see that reference it.
func (s *BaseAPI) BacklinkCounts(ctx context.Context, postIDs []uuid.UUID, viewerID *uuid.UUID) (map[uuid.UUID]int, error) {
	counts, err := s.db.BacklinkCounts(ctx, postIDs, viewerID)
	if err != nil {
		return nil, WrapError(err, "Couldn't get backlink counts")
	}
	return counts, nil
}
