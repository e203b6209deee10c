package feedapi

import (
	"context"
	"sync"
	"testing"

	"github.com/EddyProjects/eddy"
	"github.com/google/uuid"
)

func newTestAPI(t *testing.T, store *memStore, pubsub eddy.PubSub, events eddy.EventSink) *BaseAPI {
	t.Helper()
	base, err := GetBaseAPI(store, pubsub, events)
	if err != nil {
		t.Fatalf("GetBaseAPI: %v", err)
	}
	return base
}

// recPubSub records realtime calls for assertions.
type recPubSub struct {
	eddy.NoopPubSub

	mu    sync.Mutex
	calls []string
}

func (p *recPubSub) record(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, name)
}

func (p *recPubSub) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (p *recPubSub) NewPost(context.Context, uuid.UUID) { p.record("newPost") }
func (p *recPubSub) UpdatePost(context.Context, uuid.UUID, []string, eddy.UserList) {
	p.record("updatePost")
}
func (p *recPubSub) DestroyPost(context.Context, uuid.UUID, []string) { p.record("destroyPost") }
func (p *recPubSub) NewComment(context.Context, uuid.UUID, uuid.UUID) { p.record("newComment") }
func (p *recPubSub) DestroyComment(context.Context, uuid.UUID, uuid.UUID, []string) {
	p.record("destroyComment")
}
func (p *recPubSub) NewLike(context.Context, uuid.UUID, uuid.UUID) { p.record("newLike") }
func (p *recPubSub) RemoveLike(context.Context, uuid.UUID, uuid.UUID, []string) {
	p.record("removeLike")
}

// recEvents records domain events.
type recEvents struct {
	eddy.NoopEvents

	mu           sync.Mutex
	created      int
	feedsChanged []eddy.FeedsChangedInfo
	destroyed    int
}

func (e *recEvents) OnPostCreated(context.Context, *eddy.Post, []uuid.UUID, *eddy.User) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created++
	return nil
}

func (e *recEvents) OnPostFeedsChanged(_ context.Context, _ *eddy.Post, _ *eddy.User, info eddy.FeedsChangedInfo) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feedsChanged = append(e.feedsChanged, info)
	return nil
}

func (e *recEvents) OnPostDestroyed(context.Context, *eddy.Post, *eddy.User, []*eddy.User) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed++
	return nil
}

// feedOwnerIDs extracts owner ids for readable assertions.
func feedOwnerIDs(feeds []*eddy.Timeline) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(feeds))
	for _, feed := range feeds {
		out = append(out, feed.OwnerID)
	}
	return out
}
