package feedapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eddy_posts_created_total",
		Help: "Number of posts created",
	})
	metricPostsDestroyed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eddy_posts_destroyed_total",
		Help: "Number of posts destroyed",
	})
	metricCommentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eddy_comments_created_total",
		Help: "Number of comments created",
	})
	metricLikesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eddy_likes_created_total",
		Help: "Number of likes created",
	})
	metricLikesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eddy_likes_removed_total",
		Help: "Number of likes removed",
	})
)
