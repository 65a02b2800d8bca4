package model

import (
	"time"
)

// Well-known action types recorded by the public routes
const (
	ActionHomePageView  = "home_page_view"
	ActionVideoListView = "video_list_view"
	ActionVideoView     = "video_view"
	ActionModelView     = "model_view"
	ActionTagView       = "tag_view"
)

// UserAction is an append-only record of a visitor action
type UserAction struct {
	ID         uint   `gorm:"primaryKey"`
	ActionType string `gorm:"size:100;not null;index"`
	VideoID    *uint  `gorm:"index"`
	Video      *Video `gorm:"constraint:OnDelete:SET NULL"`
	UserAgent  string `gorm:"type:text"`
	Referrer   string `gorm:"size:500"`
	CreatedAt  time.Time
}

// TableName returns the table name for UserAction
func (UserAction) TableName() string {
	return "user_actions"
}

// VideoView is an append-only record of a single video view
type VideoView struct {
	ID        uint      `gorm:"primaryKey"`
	VideoID   uint      `gorm:"not null;index"`
	Video     *Video    `gorm:"constraint:OnDelete:CASCADE"`
	UserAgent string    `gorm:"type:text"`
	Referrer  string    `gorm:"size:500"`
	CreatedAt time.Time `gorm:"index"`
}

// TableName returns the table name for VideoView
func (VideoView) TableName() string {
	return "video_views"
}
