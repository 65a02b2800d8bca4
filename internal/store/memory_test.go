package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/user/vidcatalog/internal/model"
)

var baseTime = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

// clock is a test time source that moves forward one second per call
type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestMemoryStore() (*MemoryStore, *clock) {
	c := &clock{t: baseTime}
	return NewMemoryStore().WithNowFunc(c.now), c
}

func mustInsert(t *testing.T, s *MemoryStore, v *model.Video) *model.Video {
	t.Helper()
	if err := s.Insert(context.Background(), v); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return v
}

func ids(videos []*model.Video) []uint {
	out := make([]uint, 0, len(videos))
	for _, v := range videos {
		out = append(out, v.ID)
	}
	return out
}

// Feature: vidcatalog, Property: unfinished videos stay hidden
// For any mix of finished and unfinished videos, no public listing returns an unfinished row.
func TestProperty_UnfinishedVideosNeverListed(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("public queries only return finished videos", prop.ForAll(
		func(flags []bool, tag string) bool {
			ctx := context.Background()
			s, _ := newTestMemoryStore()
			for i, finished := range flags {
				v := &model.Video{
					Title:     fmt.Sprintf("clip %d %s", i, tag),
					ModelName: "Model",
					Tags:      []string{tag},
					Finished:  finished,
				}
				if err := s.Insert(ctx, v); err != nil {
					return false
				}
				if err := s.RecordView(ctx, &model.VideoView{VideoID: v.ID}); err != nil {
					return false
				}
			}

			var lists [][]*model.Video
			l, _ := s.ListPublished(ctx, ListQuery{Page: NewPage(1, MaxPageSize)})
			lists = append(lists, l)
			l, _ = s.ListPublished(ctx, ListQuery{Page: NewPage(1, MaxPageSize), Search: tag})
			lists = append(lists, l)
			l, _ = s.ListByModel(ctx, "model", NewPage(1, MaxPageSize))
			lists = append(lists, l)
			l, _ = s.ListByTag(ctx, tag, NewPage(1, MaxPageSize))
			lists = append(lists, l)
			l, _ = s.ListNew(ctx, MaxPageSize)
			lists = append(lists, l)
			ranked, _ := s.ListMostViewedThisWeek(ctx, MaxPageSize)
			for _, r := range ranked {
				lists = append(lists, []*model.Video{&r.Video})
			}

			for _, list := range lists {
				for _, v := range list {
					if !v.Finished {
						return false
					}
				}
			}

			finishedCount := int64(0)
			for _, f := range flags {
				if f {
					finishedCount++
				}
			}
			count, _ := s.CountPublished(ctx, "")
			total, _ := s.TotalViews(ctx)
			return count == finishedCount && total == finishedCount
		},
		gen.SliceOfN(20, gen.Bool()),
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 }),
	))

	properties.TestingRun(t)
}

// Feature: vidcatalog, Property: view counting
// Recording N views increases views by exactly N and stores exactly N view rows.
func TestProperty_RecordViewCountsExactly(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("N views add N to the counter and N rows", prop.ForAll(
		func(n int) bool {
			ctx := context.Background()
			s, _ := newTestMemoryStore()
			v := &model.Video{Title: "counted", Finished: true}
			if err := s.Insert(ctx, v); err != nil {
				return false
			}
			for i := 0; i < n; i++ {
				if err := s.RecordView(ctx, &model.VideoView{VideoID: v.ID, UserAgent: "ua"}); err != nil {
					return false
				}
			}
			got, err := s.GetByID(ctx, v.ID)
			if err != nil {
				return false
			}
			return got.Views == int64(n) && s.ViewCount(v.ID) == n
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}

func TestMemoryStore_RecordViewUnknownVideo(t *testing.T) {
	s, _ := newTestMemoryStore()
	err := s.RecordView(context.Background(), &model.VideoView{VideoID: 42})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("RecordView() error = %v, want ErrNotFound", err)
	}
	if s.ViewCount(42) != 0 {
		t.Fatalf("view row stored for unknown video")
	}
}

func TestMemoryStore_ListPublishedSearchAndPaging(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()

	for i := 1; i <= 30; i++ {
		mustInsert(t, s, &model.Video{Title: fmt.Sprintf("video %02d", i), Finished: true})
	}
	mustInsert(t, s, &model.Video{Title: "Sunset Beach", ModelName: "Alice", Finished: true})
	mustInsert(t, s, &model.Video{Title: "Other", ModelName: "Bob", Tags: []string{"beach", "summer"}, Finished: true})
	mustInsert(t, s, &model.Video{Title: "Hidden beach", Finished: false})

	page2, err := s.ListPublished(ctx, ListQuery{Page: NewPage(2, 12)})
	if err != nil {
		t.Fatalf("ListPublished() error = %v", err)
	}
	if len(page2) != 12 {
		t.Fatalf("page 2 has %d items, want 12", len(page2))
	}
	// newest first: 32 published ids 1..32, page 2 starts at the 13th newest
	if page2[0].ID != 20 {
		t.Errorf("page 2 starts at id %d, want 20", page2[0].ID)
	}

	found, err := s.ListPublished(ctx, ListQuery{Page: NewPage(1, 12), Search: "BEACH"})
	if err != nil {
		t.Fatalf("ListPublished() error = %v", err)
	}
	if got, want := ids(found), []uint{32, 31}; !reflect.DeepEqual(got, want) {
		t.Errorf("search ids = %v, want %v", got, want)
	}

	byModel, _ := s.ListPublished(ctx, ListQuery{Page: NewPage(1, 12), Search: "alic"})
	if got, want := ids(byModel), []uint{31}; !reflect.DeepEqual(got, want) {
		t.Errorf("model search ids = %v, want %v", got, want)
	}

	count, _ := s.CountPublished(ctx, "beach")
	if count != 2 {
		t.Errorf("CountPublished(beach) = %d, want 2", count)
	}
}

func TestMemoryStore_SortByTitleAscending(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()
	mustInsert(t, s, &model.Video{Title: "charlie", Finished: true})
	mustInsert(t, s, &model.Video{Title: "alpha", Finished: true})
	mustInsert(t, s, &model.Video{Title: "bravo", Finished: true})

	videos, err := s.ListPublished(ctx, ListQuery{Page: NewPage(1, 12), Sort: SortTitle, Direction: SortAsc})
	if err != nil {
		t.Fatalf("ListPublished() error = %v", err)
	}
	var titles []string
	for _, v := range videos {
		titles = append(titles, v.Title)
	}
	if want := []string{"alpha", "bravo", "charlie"}; !reflect.DeepEqual(titles, want) {
		t.Errorf("titles = %v, want %v", titles, want)
	}
}

func TestMemoryStore_ByModelAndTag(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()
	a := mustInsert(t, s, &model.Video{Title: "a", ModelName: "Alice", Tags: []string{"beach"}, Finished: true})
	mustInsert(t, s, &model.Video{Title: "b", ModelName: "Alicia", Tags: []string{"beaches"}, Finished: true})
	mustInsert(t, s, &model.Video{Title: "c", ModelName: "alice", Tags: []string{"beach"}, Finished: false})

	videos, _ := s.ListByModel(ctx, "ALICE", NewPage(1, 12))
	if got, want := ids(videos), []uint{a.ID}; !reflect.DeepEqual(got, want) {
		t.Errorf("ListByModel ids = %v, want %v", got, want)
	}
	videos, _ = s.ListByTag(ctx, "beach", NewPage(1, 12))
	if got, want := ids(videos), []uint{a.ID}; !reflect.DeepEqual(got, want) {
		t.Errorf("ListByTag ids = %v, want %v", got, want)
	}
	if n, _ := s.CountByModel(ctx, "alice"); n != 1 {
		t.Errorf("CountByModel = %d, want 1", n)
	}
	if n, _ := s.CountByTag(ctx, "beach"); n != 1 {
		t.Errorf("CountByTag = %d, want 1", n)
	}
}

func TestMemoryStore_NewAndMostViewed(t *testing.T) {
	ctx := context.Background()
	s, c := newTestMemoryStore()

	old := mustInsert(t, s, &model.Video{Title: "old", Finished: true, CreatedAt: baseTime.Add(-10 * 24 * time.Hour)})
	fresh := mustInsert(t, s, &model.Video{Title: "fresh", Finished: true})
	popular := mustInsert(t, s, &model.Video{Title: "popular", Finished: true})

	// views outside the window only count towards all-time views
	for i := 0; i < 5; i++ {
		if err := s.RecordView(ctx, &model.VideoView{VideoID: old.ID}); err != nil {
			t.Fatalf("RecordView() error = %v", err)
		}
	}
	c.t = c.t.Add(8 * 24 * time.Hour)
	for i := 0; i < 2; i++ {
		_ = s.RecordView(ctx, &model.VideoView{VideoID: popular.ID})
	}
	_ = s.RecordView(ctx, &model.VideoView{VideoID: fresh.ID})

	ranked, err := s.ListMostViewedThisWeek(ctx, 8)
	if err != nil {
		t.Fatalf("ListMostViewedThisWeek() error = %v", err)
	}
	var order []uint
	for _, r := range ranked {
		order = append(order, r.ID)
	}
	if want := []uint{popular.ID, fresh.ID, old.ID}; !reflect.DeepEqual(order, want) {
		t.Errorf("most viewed order = %v, want %v", order, want)
	}
	if ranked[0].WeeklyViews != 2 || ranked[2].WeeklyViews != 0 {
		t.Errorf("weekly views = %d/%d, want 2/0", ranked[0].WeeklyViews, ranked[2].WeeklyViews)
	}

	// fresh and popular were created 8 days before "now" as well
	recent, _ := s.ListNew(ctx, 8)
	if len(recent) != 0 {
		t.Errorf("ListNew returned %d videos, want 0", len(recent))
	}
}

func TestMemoryStore_DistinctModelsAndTags(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()
	mustInsert(t, s, &model.Video{Title: "1", ModelName: "Bob", Tags: []string{"b", "a"}, Finished: true})
	mustInsert(t, s, &model.Video{Title: "2", ModelName: "Alice", Tags: []string{"c", "a"}, Finished: true})
	mustInsert(t, s, &model.Video{Title: "3", ModelName: "", Tags: nil, Finished: true})
	mustInsert(t, s, &model.Video{Title: "4", ModelName: "Zed", Tags: []string{"secret"}, Finished: false})

	models, _ := s.DistinctModels(ctx)
	if want := []string{"Alice", "Bob"}; !reflect.DeepEqual(models, want) {
		t.Errorf("DistinctModels = %v, want %v", models, want)
	}
	tags, _ := s.DistinctTags(ctx)
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(tags, want) {
		t.Errorf("DistinctTags = %v, want %v", tags, want)
	}
}

func TestMemoryStore_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()
	v := mustInsert(t, s, &model.Video{Title: "before", Tags: []string{"x"}})
	_ = s.RecordView(ctx, &model.VideoView{VideoID: v.ID})
	_ = s.InsertAction(ctx, &model.UserAction{ActionType: model.ActionVideoView, VideoID: &v.ID})
	createdAt, updatedAt := v.CreatedAt, v.UpdatedAt

	edit := &model.Video{ID: v.ID, Title: "after", Finished: true}
	if err := s.Update(ctx, edit); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if edit.Views != 1 || !edit.CreatedAt.Equal(createdAt) || !edit.UpdatedAt.After(updatedAt) {
		t.Errorf("Update() did not preserve counters or bump updated_at: %+v", edit)
	}
	if len(edit.Tags) != 0 {
		t.Errorf("Update() kept tags %v, want full replace", edit.Tags)
	}

	if err := s.Update(ctx, &model.Video{ID: 999, Title: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}

	deleted, err := s.Delete(ctx, v.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deleted.Title != "after" {
		t.Errorf("Delete() returned %q, want %q", deleted.Title, "after")
	}
	if _, err := s.GetByID(ctx, v.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after delete error = %v, want ErrNotFound", err)
	}
	if s.ViewCount(v.ID) != 0 {
		t.Errorf("views of deleted video kept")
	}
	if actions := s.Actions(); len(actions) != 1 || actions[0].VideoID != nil {
		t.Errorf("action not detached from deleted video: %+v", actions)
	}
	if _, err := s.Delete(ctx, v.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_FinalizeRemoteWritesOnlyProviderFields(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()
	v := mustInsert(t, s, &model.Video{Title: "Admin title", ModelName: "Alice", Tags: []string{"beach"}, VideoID: "job-1", Finished: true})

	if err := s.FinalizeRemote(ctx, v.ID, "asset-1", "<iframe></iframe>", "https://img.example.com/1.jpg"); err != nil {
		t.Fatalf("FinalizeRemote() error = %v", err)
	}
	got, _ := s.GetByID(ctx, v.ID)
	if got.VideoID != "asset-1" || got.EmbedCode != "<iframe></iframe>" || got.ThumbnailURL != "https://img.example.com/1.jpg" {
		t.Errorf("provider fields = %q %q %q", got.VideoID, got.EmbedCode, got.ThumbnailURL)
	}
	if got.Title != "Admin title" || got.ModelName != "Alice" || len(got.Tags) != 1 || !got.Finished {
		t.Errorf("FinalizeRemote() touched editorial fields: %+v", got)
	}
	if !got.UpdatedAt.After(v.UpdatedAt) {
		t.Errorf("FinalizeRemote() did not bump updated_at")
	}

	if err := s.FinalizeRemote(ctx, 999, "a", "b", "c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FinalizeRemote(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_PendingRemoteAndUnfinished(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()
	pending := mustInsert(t, s, &model.Video{Title: "pending", VideoID: "job-1"})
	mustInsert(t, s, &model.Video{Title: "uploaded", VideoID: "asset-2", EmbedCode: "<div></div>"})
	mustInsert(t, s, &model.Video{Title: "manual"})
	mustInsert(t, s, &model.Video{Title: "live", VideoID: "asset-3", Finished: true})

	got, _ := s.ListPendingRemote(ctx)
	if want := []uint{pending.ID}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("ListPendingRemote ids = %v, want %v", ids(got), want)
	}
	unfinished, _ := s.ListUnfinished(ctx)
	if want := []uint{3, 2, 1}; !reflect.DeepEqual(ids(unfinished), want) {
		t.Errorf("ListUnfinished ids = %v, want %v", ids(unfinished), want)
	}
	if n, _ := s.CountUnfinished(ctx); n != 3 {
		t.Errorf("CountUnfinished = %d, want 3", n)
	}
}

func TestMemoryStore_AdminStatistics(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()
	a := mustInsert(t, s, &model.Video{Title: "a", Finished: true})
	b := mustInsert(t, s, &model.Video{Title: "b", Finished: true})
	for i := 0; i < 3; i++ {
		_ = s.RecordView(ctx, &model.VideoView{VideoID: b.ID})
	}
	_ = s.RecordView(ctx, &model.VideoView{VideoID: a.ID})
	_ = s.InsertAction(ctx, &model.UserAction{ActionType: model.ActionHomePageView})
	_ = s.InsertAction(ctx, &model.UserAction{ActionType: model.ActionHomePageView})
	_ = s.InsertAction(ctx, &model.UserAction{ActionType: model.ActionTagView})

	stats, _ := s.ActionStats(ctx, baseTime)
	want := []model.ActionStat{{ActionType: model.ActionHomePageView, Count: 2}, {ActionType: model.ActionTagView, Count: 1}}
	if !reflect.DeepEqual(stats, want) {
		t.Errorf("ActionStats = %v, want %v", stats, want)
	}

	days, _ := s.DailyViews(ctx, baseTime)
	if len(days) != 1 || days[0].Views != 4 {
		t.Errorf("DailyViews = %v, want one day with 4 views", days)
	}

	top, _ := s.TopVideos(ctx, 10)
	if len(top) != 2 || top[0].ID != b.ID || top[0].Views != 3 {
		t.Errorf("TopVideos = %v, want %q first with 3 views", top, "b")
	}

	if err := s.InsertAction(ctx, &model.UserAction{ActionType: "x", VideoID: new(uint)}); !errors.Is(err, ErrNotFound) {
		t.Errorf("InsertAction with dangling video id error = %v, want ErrNotFound", err)
	}
}
