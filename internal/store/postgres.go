package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/vidcatalog/internal/config"
	"github.com/user/vidcatalog/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// PostgresStore implements Store interface using PostgreSQL
type PostgresStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store instance
func NewPostgresStore(cfg *config.DBConfig) (*PostgresStore, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Auto migrate tables
	if err := db.AutoMigrate(&model.Video{}, &model.UserAction{}, &model.VideoView{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return NewPostgresStoreFromDB(db), nil
}

// NewPostgresStoreFromDB wraps an already opened gorm handle
func NewPostgresStoreFromDB(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func published(db *gorm.DB) *gorm.DB {
	return db.Where("finished = ?", true)
}

func matching(search string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if search == "" {
			return db
		}
		pattern := "%" + escapeLike(search) + "%"
		return db.Where("(title ILIKE ? OR model_name ILIKE ? OR array_to_string(tags, ',') ILIKE ?)",
			pattern, pattern, pattern)
	}
}

func byModel(modelName string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("LOWER(model_name) = LOWER(?)", modelName)
	}
}

func byTag(tag string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("? = ANY(tags)", tag)
	}
}

func paginate(page Page) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(page.Limit()).Offset(page.Offset())
	}
}

// orderBy resolves the allow-listed sort to a quoted column, id breaks ties
func orderBy(field SortField, dir SortDirection) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Order(clause.OrderByColumn{Column: clause.Column{Name: field.Column()}, Desc: dir.Descending()}).
			Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true})
	}
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return orderBy(SortCreatedAt, SortDesc)(db)
}

// publishedQuery builds the ListPublished statement
func (s *PostgresStore) publishedQuery(ctx context.Context, q ListQuery) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&model.Video{}).
		Scopes(published, matching(q.Search), orderBy(q.Sort, q.Direction), paginate(q.Page))
}

// Insert saves a new video
func (s *PostgresStore) Insert(ctx context.Context, video *model.Video) error {
	if err := s.db.WithContext(ctx).Create(video).Error; err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}
	return nil
}

// Update replaces every mutable field of the video and bumps updated_at
func (s *PostgresStore) Update(ctx context.Context, video *model.Video) error {
	video.UpdatedAt = s.now()
	result := s.db.WithContext(ctx).
		Model(video).
		Select("title", "description", "model_name", "tags", "embed_code",
			"video_id", "thumbnail_url", "finished", "updated_at").
		Updates(video)
	if result.Error != nil {
		return fmt.Errorf("failed to update video: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	// Reload so counters and created_at reflect the stored row
	if err := s.db.WithContext(ctx).First(video, video.ID).Error; err != nil {
		return fmt.Errorf("failed to reload video: %w", err)
	}
	return nil
}

// FinalizeRemote stores the final asset id, embed markup and thumbnail of a
// reconciled upload. Other columns are left as they are.
func (s *PostgresStore) FinalizeRemote(ctx context.Context, id uint, assetID, embedCode, thumbnailURL string) error {
	result := s.db.WithContext(ctx).
		Model(&model.Video{ID: id}).
		Select("video_id", "embed_code", "thumbnail_url", "updated_at").
		Updates(&model.Video{
			VideoID:      assetID,
			EmbedCode:    embedCode,
			ThumbnailURL: thumbnailURL,
			UpdatedAt:    s.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to finalize remote upload: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a video and returns the deleted row
func (s *PostgresStore) Delete(ctx context.Context, id uint) (*model.Video, error) {
	var video model.Video
	result := s.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Delete(&video)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to delete video: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &video, nil
}

// GetByID retrieves a video regardless of its finished flag
func (s *PostgresStore) GetByID(ctx context.Context, id uint) (*model.Video, error) {
	var video model.Video
	result := s.db.WithContext(ctx).Where("id = ?", id).First(&video)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get video by id: %w", result.Error)
	}
	return &video, nil
}

// ListPublished returns one page of published videos, optionally filtered by a search term
func (s *PostgresStore) ListPublished(ctx context.Context, q ListQuery) ([]*model.Video, error) {
	var videos []*model.Video
	if err := s.publishedQuery(ctx, q).Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	return videos, nil
}

// CountPublished counts published videos matching search ("" matches all)
func (s *PostgresStore) CountPublished(ctx context.Context, search string) (int64, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&model.Video{}).Scopes(published, matching(search)).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count videos: %w", result.Error)
	}
	return count, nil
}

// ListByModel returns published videos whose model matches case-insensitively
func (s *PostgresStore) ListByModel(ctx context.Context, modelName string, page Page) ([]*model.Video, error) {
	var videos []*model.Video
	result := s.db.WithContext(ctx).
		Scopes(published, byModel(modelName), newestFirst, paginate(page)).
		Find(&videos)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list videos by model: %w", result.Error)
	}
	return videos, nil
}

// CountByModel counts published videos of a model
func (s *PostgresStore) CountByModel(ctx context.Context, modelName string) (int64, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&model.Video{}).Scopes(published, byModel(modelName)).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count videos by model: %w", result.Error)
	}
	return count, nil
}

// ListByTag returns published videos carrying tag
func (s *PostgresStore) ListByTag(ctx context.Context, tag string, page Page) ([]*model.Video, error) {
	var videos []*model.Video
	result := s.db.WithContext(ctx).
		Scopes(published, byTag(tag), newestFirst, paginate(page)).
		Find(&videos)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list videos by tag: %w", result.Error)
	}
	return videos, nil
}

// CountByTag counts published videos carrying tag
func (s *PostgresStore) CountByTag(ctx context.Context, tag string) (int64, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&model.Video{}).Scopes(published, byTag(tag)).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count videos by tag: %w", result.Error)
	}
	return count, nil
}

// ListNew returns published videos created within the last week, newest first
func (s *PostgresStore) ListNew(ctx context.Context, limit int) ([]*model.Video, error) {
	var videos []*model.Video
	result := s.db.WithContext(ctx).
		Scopes(published, newestFirst).
		Where("created_at >= ?", s.now().Add(-Window)).
		Limit(limit).
		Find(&videos)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list new videos: %w", result.Error)
	}
	return videos, nil
}

// ListMostViewedThisWeek ranks published videos by views recorded in the last week,
// then by all-time views
func (s *PostgresStore) ListMostViewedThisWeek(ctx context.Context, limit int) ([]*model.RankedVideo, error) {
	var videos []*model.RankedVideo
	result := s.db.WithContext(ctx).
		Table("videos AS v").
		Select("v.*, COUNT(vv.id) AS weekly_views").
		Joins("LEFT JOIN video_views vv ON vv.video_id = v.id AND vv.created_at >= ?", s.now().Add(-Window)).
		Where("v.finished = ?", true).
		Group("v.id").
		Order("weekly_views DESC, v.views DESC, v.id DESC").
		Limit(limit).
		Scan(&videos)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list most viewed videos: %w", result.Error)
	}
	return videos, nil
}

// ListUnfinished returns every unpublished video, newest first
func (s *PostgresStore) ListUnfinished(ctx context.Context) ([]*model.Video, error) {
	var videos []*model.Video
	result := s.db.WithContext(ctx).
		Where("finished = ?", false).
		Scopes(newestFirst).
		Find(&videos)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list unfinished videos: %w", result.Error)
	}
	return videos, nil
}

// ListPendingRemote returns unfinished videos still waiting for embed markup, oldest first
func (s *PostgresStore) ListPendingRemote(ctx context.Context) ([]*model.Video, error) {
	var videos []*model.Video
	result := s.db.WithContext(ctx).
		Where("finished = ? AND video_id <> '' AND (embed_code IS NULL OR embed_code = '')", false).
		Order("created_at ASC").
		Find(&videos)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list pending remote uploads: %w", result.Error)
	}
	return videos, nil
}

// CountUnfinished counts unpublished videos
func (s *PostgresStore) CountUnfinished(ctx context.Context) (int64, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&model.Video{}).Where("finished = ?", false).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count unfinished videos: %w", result.Error)
	}
	return count, nil
}

// DistinctModels returns the sorted model names of published videos
func (s *PostgresStore) DistinctModels(ctx context.Context) ([]string, error) {
	var models []string
	result := s.db.WithContext(ctx).
		Model(&model.Video{}).
		Scopes(published).
		Where("model_name IS NOT NULL AND model_name <> ''").
		Distinct().
		Order("model_name").
		Pluck("model_name", &models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list models: %w", result.Error)
	}
	return models, nil
}

// DistinctTags returns the flattened, deduplicated, sorted tags of published videos
func (s *PostgresStore) DistinctTags(ctx context.Context) ([]string, error) {
	var tags []string
	result := s.db.WithContext(ctx).
		Raw("SELECT DISTINCT unnest(tags) AS tag FROM videos WHERE finished = ? AND tags IS NOT NULL ORDER BY tag", true).
		Scan(&tags)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list tags: %w", result.Error)
	}
	return tags, nil
}

// TotalViews sums views across published videos
func (s *PostgresStore) TotalViews(ctx context.Context) (int64, error) {
	var total int64
	result := s.db.WithContext(ctx).
		Model(&model.Video{}).
		Scopes(published).
		Select("COALESCE(SUM(views), 0)").
		Scan(&total)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sum views: %w", result.Error)
	}
	return total, nil
}

// InsertAction appends a user action
func (s *PostgresStore) InsertAction(ctx context.Context, action *model.UserAction) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(action).Error; err != nil {
		return fmt.Errorf("failed to insert user action: %w", err)
	}
	return nil
}

// RecordView appends a view and increments the owning video's counter in one transaction
func (s *PostgresStore) RecordView(ctx context.Context, view *model.VideoView) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(view).Error; err != nil {
			return fmt.Errorf("failed to insert video view: %w", err)
		}

		result := tx.Model(&model.Video{}).
			Where("id = ?", view.VideoID).
			UpdateColumn("views", gorm.Expr("views + ?", 1))
		if result.Error != nil {
			return fmt.Errorf("failed to increment views: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ActionStats counts user actions per type since the given time
func (s *PostgresStore) ActionStats(ctx context.Context, since time.Time) ([]model.ActionStat, error) {
	var stats []model.ActionStat
	result := s.db.WithContext(ctx).
		Model(&model.UserAction{}).
		Select("action_type, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("action_type").
		Order("count DESC").
		Scan(&stats)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to aggregate user actions: %w", result.Error)
	}
	return stats, nil
}

// DailyViews counts views per calendar day since the given time, newest day first
func (s *PostgresStore) DailyViews(ctx context.Context, since time.Time) ([]model.DailyViews, error) {
	var days []model.DailyViews
	result := s.db.WithContext(ctx).
		Model(&model.VideoView{}).
		Select("DATE(created_at) AS date, COUNT(*) AS views").
		Where("created_at >= ?", since).
		Group("DATE(created_at)").
		Order("date DESC").
		Scan(&days)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to aggregate daily views: %w", result.Error)
	}
	return days, nil
}

// TopVideos returns published videos ranked by all-time views
func (s *PostgresStore) TopVideos(ctx context.Context, limit int) ([]model.TopVideo, error) {
	var top []model.TopVideo
	result := s.db.WithContext(ctx).
		Model(&model.Video{}).
		Scopes(published).
		Select("id, title, views").
		Order("views DESC").
		Limit(limit).
		Scan(&top)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list top videos: %w", result.Error)
	}
	return top, nil
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.Close()
}

// DB returns the underlying gorm.DB instance (for testing purposes)
func (s *PostgresStore) DB() *gorm.DB {
	return s.db
}
