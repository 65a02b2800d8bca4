package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/user/vidcatalog/internal/model"
	"github.com/user/vidcatalog/internal/store"
	"golang.org/x/sync/errgroup"
)

// statsWindow bounds the admin statistics page
const statsWindow = 30 * 24 * time.Hour

// VideoPage is one page of a listing together with its pagination state
type VideoPage struct {
	Videos      []*model.Video `json:"videos"`
	CurrentPage int            `json:"currentPage"`
	TotalPages  int            `json:"totalPages"`
	Total       int64          `json:"total"`
}

func newVideoPage(videos []*model.Video, page store.Page, total int64) *VideoPage {
	if videos == nil {
		videos = []*model.Video{}
	}
	return &VideoPage{
		Videos:      videos,
		CurrentPage: page.Number,
		TotalPages:  store.TotalPages(total, page.Size),
		Total:       total,
	}
}

// ListVideos returns a page of published videos, filtered and sorted as requested
func (s *Service) ListVideos(ctx context.Context, q store.ListQuery) (*VideoPage, error) {
	q.Page = store.NewPage(q.Page.Number, q.Page.Size)
	q.Search = strings.TrimSpace(q.Search)

	var (
		videos []*model.Video
		total  int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		videos, err = s.store.ListPublished(gctx, q)
		return wrap(err, "failed to list videos")
	})
	g.Go(func() (err error) {
		total, err = s.store.CountPublished(gctx, q.Search)
		return wrap(err, "failed to count videos")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return newVideoPage(videos, q.Page, total), nil
}

// ListByModel returns a page of published videos of one model
func (s *Service) ListByModel(ctx context.Context, modelName string, page store.Page) (*VideoPage, error) {
	page = store.NewPage(page.Number, page.Size)
	videos, err := s.store.ListByModel(ctx, modelName, page)
	if err != nil {
		return nil, wrap(err, "failed to list videos by model")
	}
	total, err := s.store.CountByModel(ctx, modelName)
	if err != nil {
		return nil, wrap(err, "failed to count videos by model")
	}
	return newVideoPage(videos, page, total), nil
}

// ListByTag returns a page of published videos carrying a tag
func (s *Service) ListByTag(ctx context.Context, tag string, page store.Page) (*VideoPage, error) {
	page = store.NewPage(page.Number, page.Size)
	videos, err := s.store.ListByTag(ctx, tag, page)
	if err != nil {
		return nil, wrap(err, "failed to list videos by tag")
	}
	total, err := s.store.CountByTag(ctx, tag)
	if err != nil {
		return nil, wrap(err, "failed to count videos by tag")
	}
	return newVideoPage(videos, page, total), nil
}

// Search returns the first page of published videos matching q. An empty query matches nothing.
func (s *Service) Search(ctx context.Context, q string) ([]*model.Video, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []*model.Video{}, nil
	}
	videos, err := s.store.ListPublished(ctx, store.ListQuery{
		Page:   store.NewPage(1, SearchPageSize),
		Search: q,
	})
	if err != nil {
		return nil, wrap(err, "failed to search videos")
	}
	if videos == nil {
		videos = []*model.Video{}
	}
	return videos, nil
}

// Models returns every model name with a published video
func (s *Service) Models(ctx context.Context) ([]string, error) {
	models, err := s.store.DistinctModels(ctx)
	if models == nil {
		models = []string{}
	}
	return models, wrap(err, "failed to list models")
}

// Tags returns every tag used by a published video
func (s *Service) Tags(ctx context.Context) ([]string, error) {
	tags, err := s.store.DistinctTags(ctx)
	if tags == nil {
		tags = []string{}
	}
	return tags, wrap(err, "failed to list tags")
}

// GetStatistics gathers the catalog snapshot concurrently
func (s *Service) GetStatistics(ctx context.Context) (*model.Statistics, error) {
	stats := &model.Statistics{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalVideos, err = s.store.CountPublished(gctx, "")
		return wrap(err, "failed to count videos")
	})
	g.Go(func() (err error) {
		stats.TotalViews, err = s.store.TotalViews(gctx)
		return wrap(err, "failed to sum views")
	})
	g.Go(func() (err error) {
		stats.NewVideos, err = s.store.ListNew(gctx, StatsListSize)
		return wrap(err, "failed to list new videos")
	})
	g.Go(func() (err error) {
		stats.MostViewed, err = s.store.ListMostViewedThisWeek(gctx, StatsListSize)
		return wrap(err, "failed to list most viewed videos")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// Home is the data shown on the landing page
type Home struct {
	NewVideos  []*model.Video       `json:"newVideos"`
	MostViewed []*model.RankedVideo `json:"mostViewed"`
	Statistics *model.Statistics    `json:"statistics"`
}

// Home gathers the landing page lists and statistics
func (s *Service) Home(ctx context.Context) (*Home, error) {
	home := &Home{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		home.NewVideos, err = s.store.ListNew(gctx, HomeListSize)
		return wrap(err, "failed to list new videos")
	})
	g.Go(func() (err error) {
		home.MostViewed, err = s.store.ListMostViewedThisWeek(gctx, HomeListSize)
		return wrap(err, "failed to list most viewed videos")
	})
	g.Go(func() (err error) {
		home.Statistics, err = s.GetStatistics(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return home, nil
}

// Dashboard is the admin overview
type Dashboard struct {
	UnfinishedVideos []*model.Video    `json:"unfinishedVideos"`
	Statistics       *model.Statistics `json:"statistics"`
}

// Dashboard gathers the unpublished videos and catalog statistics
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	dash := &Dashboard{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		dash.UnfinishedVideos, err = s.store.ListUnfinished(gctx)
		return wrap(err, "failed to list unfinished videos")
	})
	g.Go(func() (err error) {
		dash.Statistics, err = s.GetStatistics(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if dash.UnfinishedVideos == nil {
		dash.UnfinishedVideos = []*model.Video{}
	}
	return dash, nil
}

// AdminStatistics covers visitor activity over the last 30 days
type AdminStatistics struct {
	ActionStats []model.ActionStat `json:"actionStats"`
	DailyViews  []model.DailyViews `json:"dailyViews"`
	TopVideos   []model.TopVideo   `json:"topVideos"`
}

// AdminStatistics gathers action counts, daily views and the most viewed videos
func (s *Service) AdminStatistics(ctx context.Context) (*AdminStatistics, error) {
	since := s.now().Add(-statsWindow)
	stats := &AdminStatistics{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.ActionStats, err = s.store.ActionStats(gctx, since)
		return wrap(err, "failed to aggregate actions")
	})
	g.Go(func() (err error) {
		stats.DailyViews, err = s.store.DailyViews(gctx, since)
		return wrap(err, "failed to aggregate daily views")
	})
	g.Go(func() (err error) {
		stats.TopVideos, err = s.store.TopVideos(gctx, 10)
		return wrap(err, "failed to list top videos")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}
