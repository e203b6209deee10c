package feedapi

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/EddyProjects/eddy"
	"github.com/google/uuid"
)

// memStore is an in-memory Store used to exercise the fan-out engine
// without a database.
type memStore struct {
	mu sync.Mutex

	users map[uuid.UUID]*eddy.User
	feeds map[int]*eddy.Timeline

	posts       map[uuid.UUID]*eddy.Post
	memberships map[int]map[uuid.UUID]bool

	// feed uuid -> subscribed user ids
	subscriptions map[uuid.UUID][]uuid.UUID
	// river feed uuid -> hidden user ids
	hideLists map[uuid.UUID][]uuid.UUID
	// user -> users they banned
	bans map[uuid.UUID][]uuid.UUID

	likes      map[uuid.UUID]map[uuid.UUID]bool
	localBumps map[uuid.UUID][]uuid.UUID

	comments    map[uuid.UUID]*eddy.Comment
	attachments map[uuid.UUID][]uuid.UUID
	hashtags    map[uuid.UUID][]string
	backlinks   map[uuid.UUID][]uuid.UUID

	touchedGroups []uuid.UUID

	// each Link/UnlinkPostHashtags call, for diff assertions
	hashtagLinks   [][]string
	hashtagUnlinks [][]string

	nextIntID int
}

var _ eddy.Store = &memStore{}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[uuid.UUID]*eddy.User),
		feeds:         make(map[int]*eddy.Timeline),
		posts:         make(map[uuid.UUID]*eddy.Post),
		memberships:   make(map[int]map[uuid.UUID]bool),
		subscriptions: make(map[uuid.UUID][]uuid.UUID),
		hideLists:     make(map[uuid.UUID][]uuid.UUID),
		bans:          make(map[uuid.UUID][]uuid.UUID),
		likes:         make(map[uuid.UUID]map[uuid.UUID]bool),
		localBumps:    make(map[uuid.UUID][]uuid.UUID),
		comments:      make(map[uuid.UUID]*eddy.Comment),
		attachments:   make(map[uuid.UUID][]uuid.UUID),
		hashtags:      make(map[uuid.UUID][]string),
		backlinks:     make(map[uuid.UUID][]uuid.UUID),
		nextIntID:     1,
	}
}

var allFeedKinds = []eddy.FeedKind{
	eddy.FeedPosts, eddy.FeedDirects, eddy.FeedLikes, eddy.FeedComments,
	eddy.FeedRiverOfNews, eddy.FeedMyDiscussions, eddy.FeedHides, eddy.FeedSaves,
}

// addUser creates a user together with the full set of named feeds.
func (m *memStore) addUser(username string, mutate ...func(*eddy.User)) *eddy.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := &eddy.User{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		Username:  username,
		Status:    eddy.UserStatusActive,
	}
	for _, f := range mutate {
		f(user)
	}
	m.users[user.ID] = user

	for _, kind := range allFeedKinds {
		feed := &eddy.Timeline{
			ID:        uuid.New(),
			IntID:     m.nextIntID,
			CreatedAt: time.Now(),
			Kind:      kind,
			OwnerID:   user.ID,
		}
		m.nextIntID++
		m.feeds[feed.IntID] = feed
		m.memberships[feed.IntID] = make(map[uuid.UUID]bool)
	}
	return user
}

func (m *memStore) namedFeed(ownerID uuid.UUID, kind eddy.FeedKind) *eddy.Timeline {
	for _, feed := range m.feeds {
		if feed.OwnerID == ownerID && feed.Kind == kind {
			return feed
		}
	}
	return nil
}

// subscribe adds the user to the feed's subscriber list.
func (m *memStore) subscribe(userID uuid.UUID, feed *eddy.Timeline) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[feed.ID] = append(m.subscriptions[feed.ID], userID)
}

func (m *memStore) hideFrom(riverFeed *eddy.Timeline, hiddenUserID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hideLists[riverFeed.ID] = append(m.hideLists[riverFeed.ID], hiddenUserID)
}

func (m *memStore) ban(userID, bannedID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bans[userID] = append(m.bans[userID], bannedID)
}

func (m *memStore) clonePost(post *eddy.Post) *eddy.Post {
	out := *post
	out.DestinationFeedIDs = slices.Clone(post.DestinationFeedIDs)
	out.FeedIntIDs = m.postFeedIntIDs(post.ID)
	out.AttachmentIDs = slices.Clone(m.attachments[post.ID])
	return &out
}

func (m *memStore) postFeedIntIDs(postID uuid.UUID) []int {
	var intIDs []int
	for intID, members := range m.memberships {
		if members[postID] {
			intIDs = append(intIDs, intID)
		}
	}
	slices.Sort(intIDs)
	return intIDs
}

func (m *memStore) deriveFlags(feedIntIDs []int) (isPrivate, isProtected, isPropagable bool) {
	isPrivate, isProtected = true, true
	for _, intID := range feedIntIDs {
		feed := m.feeds[intID]
		owner := m.users[feed.OwnerID]
		direct := feed.Kind == eddy.FeedDirects
		if !direct && !owner.IsPrivate {
			isPrivate = false
		}
		if !direct && !owner.IsPrivate && !owner.IsProtected {
			isProtected = false
		}
		if feed.Kind == eddy.FeedPosts && !owner.IsGroup && !owner.IsPrivate {
			isPropagable = true
		}
	}
	return isPrivate, isProtected, isPropagable
}

func (m *memStore) Post(ctx context.Context, id uuid.UUID) (*eddy.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok {
		return nil, eddy.ErrNotFound
	}
	return m.clonePost(post), nil
}

func (m *memStore) CreatePost(ctx context.Context, post *eddy.Post, feedIntIDs []int) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if post.AuthorID == uuid.Nil {
		return uuid.Nil, eddy.ErrMissingRequired
	}
	for _, intID := range feedIntIDs {
		if _, ok := m.feeds[intID]; !ok {
			return uuid.Nil, eddy.ErrNotFound
		}
	}

	now := time.Now()
	stored := &eddy.Post{
		ID:               uuid.New(),
		CreatedAt:        now,
		UpdatedAt:        now,
		BumpedAt:         now,
		AuthorID:         post.AuthorID,
		Body:             post.Body,
		CommentsDisabled: post.CommentsDisabled,

		DestinationFeedIDs: slices.Clone(feedIntIDs),
	}
	stored.IsPrivate, stored.IsProtected, stored.IsPropagable = m.deriveFlags(feedIntIDs)
	m.posts[stored.ID] = stored
	for _, intID := range feedIntIDs {
		m.memberships[intID][stored.ID] = true
	}
	return stored.ID, nil
}

func (m *memStore) UpdatePost(ctx context.Context, id uuid.UUID, upd eddy.PostRowUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	post, ok := m.posts[id]
	if !ok {
		return eddy.ErrNotFound
	}
	if upd.Body != nil {
		post.Body = *upd.Body
	}
	if upd.CommentsDisabled != nil {
		post.CommentsDisabled = *upd.CommentsDisabled
	}
	if upd.UpdatedAt != nil {
		post.UpdatedAt = *upd.UpdatedAt
	}
	if upd.DestinationFeedIDs != nil {
		post.DestinationFeedIDs = slices.Clone(upd.DestinationFeedIDs)
		post.IsPrivate, post.IsProtected, post.IsPropagable = m.deriveFlags(post.DestinationFeedIDs)
	}
	if upd.FeedIntIDs != nil {
		for _, members := range m.memberships {
			delete(members, id)
		}
		for _, intID := range upd.FeedIntIDs {
			m.memberships[intID][id] = true
		}
	}
	return nil
}

func (m *memStore) DeletePost(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return eddy.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *memStore) SetPostBumpedAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok {
		return eddy.ErrNotFound
	}
	post.BumpedAt = at
	return nil
}

func (m *memStore) SetLocalBumps(ctx context.Context, postID uuid.UUID, userIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, userID := range userIDs {
		if !slices.Contains(m.localBumps[postID], userID) {
			m.localBumps[postID] = append(m.localBumps[postID], userID)
		}
	}
	return nil
}

func (m *memStore) InsertPostIntoFeeds(ctx context.Context, feedIntIDs []int, postID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, intID := range feedIntIDs {
		m.memberships[intID][postID] = true
	}
	return nil
}

func (m *memStore) WithdrawPostFromFeeds(ctx context.Context, feedIntIDs []int, postID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, intID := range feedIntIDs {
		delete(m.memberships[intID], postID)
	}
	return nil
}

func (m *memStore) InsertPostIntoFeed(ctx context.Context, feedIntID int, postID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.memberships[feedIntID][postID] {
		return false, nil
	}
	m.memberships[feedIntID][postID] = true
	return true, nil
}

func (m *memStore) WithdrawPostFromFeed(ctx context.Context, feedIntID int, postID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.memberships[feedIntID][postID] {
		return false, nil
	}
	delete(m.memberships[feedIntID], postID)
	if post, ok := m.posts[postID]; ok {
		if i := slices.Index(post.DestinationFeedIDs, feedIntID); i >= 0 {
			post.DestinationFeedIDs = slices.Delete(post.DestinationFeedIDs, i, i+1)
		}
	}
	return true, nil
}

func (m *memStore) IsPostInFeed(ctx context.Context, feedIntID int, postID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memberships[feedIntID][postID], nil
}

func (m *memStore) PostFeedIntIDs(ctx context.Context, postID uuid.UUID) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.postFeedIntIDs(postID), nil
}

func (m *memStore) LikePost(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.likes[postID] == nil {
		m.likes[postID] = make(map[uuid.UUID]bool)
	}
	if m.likes[postID][userID] {
		return false, nil
	}
	m.likes[postID][userID] = true
	if post, ok := m.posts[postID]; ok {
		post.LikesCount++
	}
	return true, nil
}

func (m *memStore) UnlikePost(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.likes[postID][userID] {
		return false, nil
	}
	delete(m.likes[postID], userID)
	if post, ok := m.posts[postID]; ok {
		post.LikesCount--
	}
	return true, nil
}

func (m *memStore) feedByID(id uuid.UUID) *eddy.Timeline {
	for _, feed := range m.feeds {
		if feed.ID == id {
			return feed
		}
	}
	return nil
}

func (m *memStore) TimelineByIntID(ctx context.Context, intID int) (*eddy.Timeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	feed, ok := m.feeds[intID]
	if !ok {
		return nil, eddy.ErrNotFound
	}
	return feed, nil
}

func (m *memStore) TimelinesByIDs(ctx context.Context, ids []uuid.UUID) ([]*eddy.Timeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*eddy.Timeline, 0, len(ids))
	for _, id := range ids {
		feed := m.feedByID(id)
		if feed == nil {
			return nil, eddy.ErrNotFound
		}
		out = append(out, feed)
	}
	return out, nil
}

func (m *memStore) TimelinesByIntIDs(ctx context.Context, intIDs []int) ([]*eddy.Timeline, error) {
	out := make([]*eddy.Timeline, 0, len(intIDs))
	for _, intID := range intIDs {
		feed, err := m.TimelineByIntID(ctx, intID)
		if err != nil {
			return nil, err
		}
		out = append(out, feed)
	}
	return out, nil
}

func (m *memStore) UserNamedFeed(ctx context.Context, ownerID uuid.UUID, kind eddy.FeedKind) (*eddy.Timeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if feed := m.namedFeed(ownerID, kind); feed != nil {
		return feed, nil
	}
	return nil, eddy.ErrNotFound
}

func (m *memStore) UsersNamedFeeds(ctx context.Context, ownerIDs []uuid.UUID, kind eddy.FeedKind) ([]*eddy.Timeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*eddy.Timeline
	for _, ownerID := range ownerIDs {
		if feed := m.namedFeed(ownerID, kind); feed != nil {
			out = append(out, feed)
		}
	}
	return out, nil
}

func (m *memStore) UsersNamedFeedIntIDs(ctx context.Context, ownerIDs []uuid.UUID, kind eddy.FeedKind) ([]int, error) {
	feeds, err := m.UsersNamedFeeds(ctx, ownerIDs, kind)
	if err != nil {
		return nil, err
	}
	intIDs := make([]int, 0, len(feeds))
	for _, feed := range feeds {
		intIDs = append(intIDs, feed.IntID)
	}
	return intIDs, nil
}

func (m *memStore) TimelineSubscriberIDs(ctx context.Context, feedID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.subscriptions[feedID]), nil
}

func (m *memStore) UsersSubscribedToFeeds(ctx context.Context, feedIDs []uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for _, feedID := range feedIDs {
		for _, userID := range m.subscriptions[feedID] {
			if !slices.Contains(out, userID) {
				out = append(out, userID)
			}
		}
	}
	return out, nil
}

func (m *memStore) HomeFeedsSubscribedToUsers(ctx context.Context, ownerIDs []uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for _, ownerID := range ownerIDs {
		for _, feed := range m.feeds {
			if feed.OwnerID != ownerID {
				continue
			}
			for _, subscriberID := range m.subscriptions[feed.ID] {
				river := m.namedFeed(subscriberID, eddy.FeedRiverOfNews)
				if river != nil && !slices.Contains(out, river.ID) {
					out = append(out, river.ID)
				}
			}
		}
	}
	return out, nil
}

func (m *memStore) HomeFeedsHideLists(ctx context.Context, feedIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID][]uuid.UUID, len(feedIDs))
	for _, feedID := range feedIDs {
		out[feedID] = slices.Clone(m.hideLists[feedID])
	}
	return out, nil
}

func (m *memStore) SetGroupsUpdatedAt(ctx context.Context, ownerIDs []uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ownerID := range ownerIDs {
		if user, ok := m.users[ownerID]; ok && user.IsGroup {
			m.touchedGroups = append(m.touchedGroups, ownerID)
		}
	}
	return nil
}

func (m *memStore) GroupsPostedTo(ctx context.Context, postID uuid.UUID) ([]*eddy.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[postID]
	if !ok {
		return nil, eddy.ErrNotFound
	}
	var out []*eddy.User
	for _, intID := range post.DestinationFeedIDs {
		owner := m.users[m.feeds[intID].OwnerID]
		if owner.IsGroup {
			out = append(out, owner)
		}
	}
	return out, nil
}

func (m *memStore) User(ctx context.Context, id uuid.UUID) (*eddy.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, eddy.ErrNotFound
	}
	return user, nil
}

func (m *memStore) BansAndBannedBy(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.bans[userID])
	for banner, banned := range m.bans {
		if slices.Contains(banned, userID) && !slices.Contains(out, banner) {
			out = append(out, banner)
		}
	}
	return out, nil
}

func (m *memStore) VisiblePrivateFeedIntIDs(ctx context.Context, userID uuid.UUID) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int
	for _, feed := range m.feeds {
		switch feed.Kind {
		case eddy.FeedDirects:
			if feed.OwnerID == userID {
				out = append(out, feed.IntID)
			}
		case eddy.FeedPosts:
			if !m.users[feed.OwnerID].IsPrivate {
				continue
			}
			if feed.OwnerID == userID || slices.Contains(m.subscriptions[feed.ID], userID) {
				out = append(out, feed.IntID)
			}
		}
	}
	return out, nil
}

func (m *memStore) UsersWhoCanSeePrivateFeeds(ctx context.Context, feedIntIDs []int) (eddy.UserList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for _, intID := range feedIntIDs {
		feed, ok := m.feeds[intID]
		if !ok {
			continue
		}
		ids = append(ids, feed.OwnerID)
		ids = append(ids, m.subscriptions[feed.ID]...)
	}
	return eddy.ClosedUserList(ids...), nil
}

func (m *memStore) Comment(ctx context.Context, id uuid.UUID) (*eddy.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment, ok := m.comments[id]
	if !ok {
		return nil, eddy.ErrNotFound
	}
	return comment, nil
}

func (m *memStore) CreateComment(ctx context.Context, comment *eddy.Comment) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *comment
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	m.comments[stored.ID] = &stored
	if post, ok := m.posts[stored.PostID]; ok {
		post.CommentsCount++
	}
	return stored.ID, nil
}

func (m *memStore) DeleteComment(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment, ok := m.comments[id]
	if !ok {
		return eddy.ErrNotFound
	}
	delete(m.comments, id)
	if post, ok := m.posts[comment.PostID]; ok {
		post.CommentsCount--
	}
	return nil
}

func (m *memStore) PostComments(ctx context.Context, postID uuid.UUID) ([]*eddy.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*eddy.Comment
	for _, comment := range m.comments {
		if comment.PostID == postID {
			out = append(out, comment)
		}
	}
	slices.SortFunc(out, func(a, b *eddy.Comment) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (m *memStore) UserHasCommentsOnPost(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, comment := range m.comments {
		if comment.PostID == postID && comment.AuthorID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) PostAttachmentIDs(ctx context.Context, postID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.attachments[postID]), nil
}

func (m *memStore) LinkAttachmentToPost(ctx context.Context, attachmentID, postID uuid.UUID, ord int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.attachments[postID], attachmentID) {
		m.attachments[postID] = append(m.attachments[postID], attachmentID)
	}
	return nil
}

func (m *memStore) UnlinkAttachmentFromPost(ctx context.Context, attachmentID, postID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := slices.Index(m.attachments[postID], attachmentID); i >= 0 {
		m.attachments[postID] = slices.Delete(m.attachments[postID], i, i+1)
	}
	return nil
}

func (m *memStore) PostHashtags(ctx context.Context, postID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.hashtags[postID]), nil
}

func (m *memStore) LinkPostHashtags(ctx context.Context, names []string, postID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashtagLinks = append(m.hashtagLinks, slices.Clone(names))
	for _, name := range names {
		if !slices.Contains(m.hashtags[postID], name) {
			m.hashtags[postID] = append(m.hashtags[postID], name)
		}
	}
	return nil
}

func (m *memStore) UnlinkPostHashtags(ctx context.Context, names []string, postID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashtagUnlinks = append(m.hashtagUnlinks, slices.Clone(names))
	m.hashtags[postID] = slices.DeleteFunc(m.hashtags[postID], func(name string) bool {
		return slices.Contains(names, name)
	})
	return nil
}

func (m *memStore) PostBacklinkTargets(ctx context.Context, postID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.backlinks[postID]), nil
}

func (m *memStore) LinkBacklinks(ctx context.Context, postID uuid.UUID, targetIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, targetID := range targetIDs {
		// only resolvable references are stored
		if _, ok := m.posts[targetID]; !ok {
			continue
		}
		if !slices.Contains(m.backlinks[postID], targetID) {
			m.backlinks[postID] = append(m.backlinks[postID], targetID)
		}
	}
	return nil
}

func (m *memStore) UnlinkBacklinks(ctx context.Context, postID uuid.UUID, targetIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backlinks[postID] = slices.DeleteFunc(m.backlinks[postID], func(id uuid.UUID) bool {
		return slices.Contains(targetIDs, id)
	})
	return nil
}

func (m *memStore) BacklinkCounts(ctx context.Context, postIDs []uuid.UUID, viewerID *uuid.UUID) (map[uuid.UUID]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]int)
	for sourceID, targets := range m.backlinks {
		if _, ok := m.posts[sourceID]; !ok {
			continue
		}
		for _, targetID := range targets {
			if slices.Contains(postIDs, targetID) {
				out[targetID]++
			}
		}
	}
	return out, nil
}

func (m *memStore) Close() error {
	return nil
}
