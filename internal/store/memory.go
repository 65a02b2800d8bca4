package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/vidcatalog/internal/model"
)

// MemoryStore is a process-local Store, used when DB_MEMORY is set and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	videos  map[uint]*model.Video
	actions []*model.UserAction
	views   []*model.VideoView
	nextID  uint
	nextEvt uint
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		videos: make(map[uint]*model.Video),
		now:    time.Now,
	}
}

// WithNowFunc overrides the time source (for tests)
func (s *MemoryStore) WithNowFunc(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func cloneVideo(v *model.Video) *model.Video {
	c := *v
	if v.Tags != nil {
		c.Tags = append([]string(nil), v.Tags...)
	}
	return &c
}

// Insert saves a new video
func (s *MemoryStore) Insert(ctx context.Context, video *model.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.now()
	video.ID = s.nextID
	if video.CreatedAt.IsZero() {
		video.CreatedAt = now
	}
	video.UpdatedAt = now
	s.videos[video.ID] = cloneVideo(video)
	return nil
}

// Update replaces every mutable field of the video and bumps updated_at
func (s *MemoryStore) Update(ctx context.Context, video *model.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.videos[video.ID]
	if !ok {
		return ErrNotFound
	}
	updated := cloneVideo(video)
	updated.Views = existing.Views
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()
	s.videos[video.ID] = updated

	*video = *cloneVideo(updated)
	return nil
}

// FinalizeRemote stores the provider fields of a reconciled upload
func (s *MemoryStore) FinalizeRemote(ctx context.Context, id uint, assetID, embedCode, thumbnailURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.videos[id]
	if !ok {
		return ErrNotFound
	}
	video.VideoID = assetID
	video.EmbedCode = embedCode
	video.ThumbnailURL = thumbnailURL
	video.UpdatedAt = s.now()
	return nil
}

// Delete removes a video and returns the deleted row
func (s *MemoryStore) Delete(ctx context.Context, id uint) (*model.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.videos, id)

	// Mirror the foreign keys: views cascade, actions are detached
	kept := s.views[:0]
	for _, v := range s.views {
		if v.VideoID != id {
			kept = append(kept, v)
		}
	}
	s.views = kept
	for _, a := range s.actions {
		if a.VideoID != nil && *a.VideoID == id {
			a.VideoID = nil
		}
	}
	return video, nil
}

// GetByID retrieves a video regardless of its finished flag
func (s *MemoryStore) GetByID(ctx context.Context, id uint) (*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	video, ok := s.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneVideo(video), nil
}

// filter returns clones of the videos accepted by keep, ordered by field/dir
func (s *MemoryStore) filter(keep func(*model.Video) bool, field SortField, dir SortDirection) []*model.Video {
	var out []*model.Video
	for _, v := range s.videos {
		if keep(v) {
			out = append(out, cloneVideo(v))
		}
	}
	sortVideos(out, field, dir)
	return out
}

func sortVideos(videos []*model.Video, field SortField, dir SortDirection) {
	cmp := func(a, b *model.Video) int {
		switch field.Column() {
		case string(SortTitle):
			return strings.Compare(a.Title, b.Title)
		case string(SortModelName):
			return strings.Compare(a.ModelName, b.ModelName)
		case string(SortViews):
			return compareInt64(a.Views, b.Views)
		case string(SortUpdatedAt):
			return a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(videos, func(i, j int) bool {
		c := cmp(videos[i], videos[j])
		if dir.Descending() {
			c = -c
		}
		if c == 0 {
			return videos[i].ID > videos[j].ID
		}
		return c < 0
	})
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func paginateSlice(videos []*model.Video, page Page) []*model.Video {
	offset := page.Offset()
	if offset >= len(videos) {
		return []*model.Video{}
	}
	end := offset + page.Limit()
	if end > len(videos) {
		end = len(videos)
	}
	return videos[offset:end]
}

func limitSlice[T any](items []T, limit int) []T {
	if limit >= 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func matchesSearch(v *model.Video, search string) bool {
	if search == "" {
		return true
	}
	term := strings.ToLower(search)
	return strings.Contains(strings.ToLower(v.Title), term) ||
		strings.Contains(strings.ToLower(v.ModelName), term) ||
		strings.Contains(strings.ToLower(strings.Join(v.Tags, ",")), term)
}

func hasTag(v *model.Video, tag string) bool {
	for _, t := range v.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ListPublished returns one page of published videos, optionally filtered by a search term
func (s *MemoryStore) ListPublished(ctx context.Context, q ListQuery) ([]*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.filter(func(v *model.Video) bool {
		return v.Finished && matchesSearch(v, q.Search)
	}, q.Sort, q.Direction)
	return paginateSlice(all, q.Page), nil
}

// CountPublished counts published videos matching search ("" matches all)
func (s *MemoryStore) CountPublished(ctx context.Context, search string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, v := range s.videos {
		if v.Finished && matchesSearch(v, search) {
			n++
		}
	}
	return n, nil
}

// ListByModel returns published videos whose model matches case-insensitively
func (s *MemoryStore) ListByModel(ctx context.Context, modelName string, page Page) ([]*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.filter(func(v *model.Video) bool {
		return v.Finished && strings.EqualFold(v.ModelName, modelName)
	}, SortCreatedAt, SortDesc)
	return paginateSlice(all, page), nil
}

// CountByModel counts published videos of a model
func (s *MemoryStore) CountByModel(ctx context.Context, modelName string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, v := range s.videos {
		if v.Finished && strings.EqualFold(v.ModelName, modelName) {
			n++
		}
	}
	return n, nil
}

// ListByTag returns published videos carrying tag
func (s *MemoryStore) ListByTag(ctx context.Context, tag string, page Page) ([]*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.filter(func(v *model.Video) bool {
		return v.Finished && hasTag(v, tag)
	}, SortCreatedAt, SortDesc)
	return paginateSlice(all, page), nil
}

// CountByTag counts published videos carrying tag
func (s *MemoryStore) CountByTag(ctx context.Context, tag string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, v := range s.videos {
		if v.Finished && hasTag(v, tag) {
			n++
		}
	}
	return n, nil
}

// ListNew returns published videos created within the last week, newest first
func (s *MemoryStore) ListNew(ctx context.Context, limit int) ([]*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-Window)
	all := s.filter(func(v *model.Video) bool {
		return v.Finished && !v.CreatedAt.Before(cutoff)
	}, SortCreatedAt, SortDesc)
	return limitSlice(all, limit), nil
}

// ListMostViewedThisWeek ranks published videos by views recorded in the last week,
// then by all-time views
func (s *MemoryStore) ListMostViewedThisWeek(ctx context.Context, limit int) ([]*model.RankedVideo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-Window)
	weekly := make(map[uint]int64)
	for _, view := range s.views {
		if !view.CreatedAt.Before(cutoff) {
			weekly[view.VideoID]++
		}
	}

	var ranked []*model.RankedVideo
	for _, v := range s.videos {
		if v.Finished {
			ranked = append(ranked, &model.RankedVideo{Video: *cloneVideo(v), WeeklyViews: weekly[v.ID]})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.WeeklyViews != b.WeeklyViews {
			return a.WeeklyViews > b.WeeklyViews
		}
		if a.Views != b.Views {
			return a.Views > b.Views
		}
		return a.ID > b.ID
	})
	return limitSlice(ranked, limit), nil
}

// ListUnfinished returns every unpublished video, newest first
func (s *MemoryStore) ListUnfinished(ctx context.Context) ([]*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(v *model.Video) bool { return !v.Finished }, SortCreatedAt, SortDesc), nil
}

// ListPendingRemote returns unfinished videos still waiting for embed markup, oldest first
func (s *MemoryStore) ListPendingRemote(ctx context.Context) ([]*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(v *model.Video) bool {
		return !v.Finished && v.VideoID != "" && v.EmbedCode == ""
	}, SortCreatedAt, SortAsc), nil
}

// CountUnfinished counts unpublished videos
func (s *MemoryStore) CountUnfinished(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, v := range s.videos {
		if !v.Finished {
			n++
		}
	}
	return n, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DistinctModels returns the sorted model names of published videos
func (s *MemoryStore) DistinctModels(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]struct{})
	for _, v := range s.videos {
		if v.Finished && v.ModelName != "" {
			set[v.ModelName] = struct{}{}
		}
	}
	return sortedKeys(set), nil
}

// DistinctTags returns the flattened, deduplicated, sorted tags of published videos
func (s *MemoryStore) DistinctTags(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]struct{})
	for _, v := range s.videos {
		if !v.Finished {
			continue
		}
		for _, t := range v.Tags {
			set[t] = struct{}{}
		}
	}
	return sortedKeys(set), nil
}

// TotalViews sums views across published videos
func (s *MemoryStore) TotalViews(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, v := range s.videos {
		if v.Finished {
			total += v.Views
		}
	}
	return total, nil
}

// InsertAction appends a user action
func (s *MemoryStore) InsertAction(ctx context.Context, action *model.UserAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if action.VideoID != nil {
		if _, ok := s.videos[*action.VideoID]; !ok {
			return ErrNotFound
		}
	}
	s.nextEvt++
	action.ID = s.nextEvt
	action.CreatedAt = s.now()
	c := *action
	s.actions = append(s.actions, &c)
	return nil
}

// RecordView appends a view and increments the owning video's counter under one lock
func (s *MemoryStore) RecordView(ctx context.Context, view *model.VideoView) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.videos[view.VideoID]
	if !ok {
		return ErrNotFound
	}
	s.nextEvt++
	view.ID = s.nextEvt
	view.CreatedAt = s.now()
	c := *view
	s.views = append(s.views, &c)
	video.Views++
	return nil
}

// ActionStats counts user actions per type since the given time
func (s *MemoryStore) ActionStats(ctx context.Context, since time.Time) ([]model.ActionStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, a := range s.actions {
		if !a.CreatedAt.Before(since) {
			counts[a.ActionType]++
		}
	}
	stats := make([]model.ActionStat, 0, len(counts))
	for t, n := range counts {
		stats = append(stats, model.ActionStat{ActionType: t, Count: n})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].ActionType < stats[j].ActionType
	})
	return stats, nil
}

// DailyViews counts views per calendar day since the given time, newest day first
func (s *MemoryStore) DailyViews(ctx context.Context, since time.Time) ([]model.DailyViews, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[time.Time]int64)
	for _, v := range s.views {
		if v.CreatedAt.Before(since) {
			continue
		}
		y, m, d := v.CreatedAt.Date()
		counts[time.Date(y, m, d, 0, 0, 0, 0, v.CreatedAt.Location())]++
	}
	days := make([]model.DailyViews, 0, len(counts))
	for day, n := range counts {
		days = append(days, model.DailyViews{Date: day, Views: n})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.After(days[j].Date) })
	return days, nil
}

// TopVideos returns published videos ranked by all-time views
func (s *MemoryStore) TopVideos(ctx context.Context, limit int) ([]model.TopVideo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ranked := s.filter(func(v *model.Video) bool { return v.Finished }, SortViews, SortDesc)
	ranked = limitSlice(ranked, limit)
	top := make([]model.TopVideo, 0, len(ranked))
	for _, v := range ranked {
		top = append(top, model.TopVideo{ID: v.ID, Title: v.Title, Views: v.Views})
	}
	return top, nil
}

// ViewCount returns how many view rows are stored for a video
func (s *MemoryStore) ViewCount(videoID uint) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, v := range s.views {
		if v.VideoID == videoID {
			n++
		}
	}
	return n
}

// Actions returns a copy of the recorded user actions
func (s *MemoryStore) Actions() []model.UserAction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.UserAction, 0, len(s.actions))
	for _, a := range s.actions {
		out = append(out, *a)
	}
	return out
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
