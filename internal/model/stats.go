package model

import (
	"time"
)

// Statistics is the read-only snapshot shown on the home page and dashboard
type Statistics struct {
	TotalVideos int64          `json:"totalVideos"`
	TotalViews  int64          `json:"totalViews"`
	NewVideos   []*Video       `json:"newVideos"`
	MostViewed  []*RankedVideo `json:"mostViewed"`
}

// ActionStat counts recorded actions of one type
type ActionStat struct {
	ActionType string `json:"action_type"`
	Count      int64  `json:"count"`
}

// DailyViews counts video views recorded on one calendar day
type DailyViews struct {
	Date  time.Time `json:"date"`
	Views int64     `json:"views"`
}

// TopVideo is a published video ranked by all-time views
type TopVideo struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
	Views int64  `json:"views"`
}
