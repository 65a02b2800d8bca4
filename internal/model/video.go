package model

import (
	"time"

	"github.com/lib/pq"
)

// Video represents a catalog entry backed by a provider-hosted asset
type Video struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Title        string         `gorm:"size:255;not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	ModelName    string         `gorm:"size:255;index" json:"model_name"`
	Tags         pq.StringArray `gorm:"type:text[]" json:"tags"`
	EmbedCode    string         `gorm:"type:text" json:"embed_code"`
	VideoID      string         `gorm:"column:video_id;size:255" json:"video_id"`
	ThumbnailURL string         `gorm:"size:500" json:"thumbnail_url"`
	Views        int64          `gorm:"default:0" json:"views"`
	Finished     bool           `gorm:"default:false;index" json:"finished"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName returns the table name for Video
func (Video) TableName() string {
	return "videos"
}

// HasProviderID reports whether the video references a provider job or asset
func (v *Video) HasProviderID() bool {
	return v != nil && v.VideoID != ""
}

// Published reports whether the video is visible on public listings
func (v *Video) Published() bool {
	return v != nil && v.Finished
}

// RankedVideo is a published video together with its view count over the last week
type RankedVideo struct {
	Video
	WeeklyViews int64 `json:"weekly_views"`
}
