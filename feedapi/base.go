package feedapi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/EddyProjects/eddy"
	"github.com/EddyProjects/eddy/db"
	"github.com/EddyProjects/eddy/internal/config"
	"github.com/Yiling-J/theine-go"
)

// BaseAPI is the fan-out engine. It owns no persistent state of its own:
// everything goes through the storage collaborator, and realtime/domain
// events leave through the two ports.
type BaseAPI struct {
	db     eddy.Store
	pubsub eddy.PubSub
	events eddy.EventSink

	// Feed metadata is immutable for this engine (feeds are never deleted
	// and never change kind or owner), so resolving by int id goes through
	// a loading cache.
	feedCache *theine.LoadingCache[int, *eddy.Timeline]

	maxPostLength    int
	maxCommentLength int

	defaultHomeFeedMode eddy.HomeFeedMode
}

func (s *BaseAPI) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("couldn't close DB: %w", err)
	}
	return nil
}

func GetBaseAPI(store eddy.Store, pubsub eddy.PubSub, events eddy.EventSink) (*BaseAPI, error) {
	if pubsub == nil {
		pubsub = eddy.NoopPubSub{}
	}
	if events == nil {
		events = eddy.NoopEvents{}
	}
	mode, ok := eddy.ParseHomeFeedMode(config.C.Feeds.DefaultHomeFeedMode)
	if !ok {
		slog.Warn("Unknown default home feed mode, falling back to classic", slog.String("mode", config.C.Feeds.DefaultHomeFeedMode))
	}

	base := &BaseAPI{
		db:     store,
		pubsub: pubsub,
		events: events,

		maxPostLength:    config.C.Limits.MaxPostLength,
		maxCommentLength: config.C.Limits.MaxCommentLength,

		defaultHomeFeedMode: mode,
	}

	feedCache, err := theine.NewBuilder[int, *eddy.Timeline](10000).BuildWithLoader(func(ctx context.Context, intID int) (theine.Loaded[*eddy.Timeline], error) {
		feed, err := base.db.TimelineByIntID(ctx, intID)
		if err != nil {
			return theine.Loaded[*eddy.Timeline]{}, err
		}
		return theine.Loaded[*eddy.Timeline]{
			Value: feed,
			Cost:  1,
			TTL:   10 * time.Minute,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not build feed cache: %w", err)
	}
	base.feedCache = feedCache

	return base, nil
}

func InitializeBaseAPI(ctx context.Context) (*BaseAPI, error) {
	dbClient, err := db.NewPSQL(ctx, config.C.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("couldn't connect to DB: %w", err)
	}
	slog.InfoContext(ctx, "Connected to DB")

	if config.C.Database.MigrateOnStart {
		if err := dbClient.RunMigrations(ctx); err != nil {
			return nil, fmt.Errorf("couldn't run migrations: %w", err)
		}
	}

	return GetBaseAPI(dbClient, db.NewPgPubSub(dbClient.GetPool()), &LogEvents{})
}

// timelinesByIntIDs resolves feeds through the metadata cache.
func (s *BaseAPI) timelinesByIntIDs(ctx context.Context, intIDs []int) ([]*eddy.Timeline, error) {
	feeds := make([]*eddy.Timeline, 0, len(intIDs))
	for _, intID := range intIDs {
		feed, err := s.feedCache.Get(ctx, intID)
		if err != nil {
			return nil, fmt.Errorf("couldn't resolve feed %d: %w", intID, err)
		}
		feeds = append(feeds, feed)
	}
	return feeds, nil
}
