package store

import (
	"context"
	"errors"
	"time"

	"github.com/user/vidcatalog/internal/model"
)

// ErrNotFound is returned when a row addressed by id does not exist
var ErrNotFound = errors.New("record not found")

// Window is the look-back period for "new" and "this week" listings
const Window = 7 * 24 * time.Hour

// VideoStore defines catalog persistence operations.
// Every public listing only ever returns published (finished) videos.
type VideoStore interface {
	Insert(ctx context.Context, video *model.Video) error
	Update(ctx context.Context, video *model.Video) error
	Delete(ctx context.Context, id uint) (*model.Video, error)
	// FinalizeRemote writes only the provider fields of a reconciled upload
	FinalizeRemote(ctx context.Context, id uint, assetID, embedCode, thumbnailURL string) error
	GetByID(ctx context.Context, id uint) (*model.Video, error)

	ListPublished(ctx context.Context, q ListQuery) ([]*model.Video, error)
	CountPublished(ctx context.Context, search string) (int64, error)
	ListByModel(ctx context.Context, modelName string, page Page) ([]*model.Video, error)
	CountByModel(ctx context.Context, modelName string) (int64, error)
	ListByTag(ctx context.Context, tag string, page Page) ([]*model.Video, error)
	CountByTag(ctx context.Context, tag string) (int64, error)
	ListNew(ctx context.Context, limit int) ([]*model.Video, error)
	ListMostViewedThisWeek(ctx context.Context, limit int) ([]*model.RankedVideo, error)

	// Admin views
	ListUnfinished(ctx context.Context) ([]*model.Video, error)
	ListPendingRemote(ctx context.Context) ([]*model.Video, error)
	CountUnfinished(ctx context.Context) (int64, error)

	DistinctModels(ctx context.Context) ([]string, error)
	DistinctTags(ctx context.Context) ([]string, error)
	TotalViews(ctx context.Context) (int64, error)
}

// EventStore defines the append-only activity tables
type EventStore interface {
	InsertAction(ctx context.Context, action *model.UserAction) error
	// RecordView inserts the view row and increments the video's counter atomically
	RecordView(ctx context.Context, view *model.VideoView) error
}

// StatsStore defines the admin statistics aggregates
type StatsStore interface {
	ActionStats(ctx context.Context, since time.Time) ([]model.ActionStat, error)
	DailyViews(ctx context.Context, since time.Time) ([]model.DailyViews, error)
	TopVideos(ctx context.Context, limit int) ([]model.TopVideo, error)
}

// Store defines the interface for data persistence operations
type Store interface {
	VideoStore
	EventStore
	StatsStore

	// Health check
	Ping(ctx context.Context) error
	Close() error
}
