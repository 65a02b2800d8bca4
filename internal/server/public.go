package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/user/vidcatalog/internal/activity"
	"github.com/user/vidcatalog/internal/catalog"
	"github.com/user/vidcatalog/internal/model"
	"github.com/user/vidcatalog/internal/store"
)

type videoListResponse struct {
	*catalog.VideoPage
	Search    string `json:"search"`
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`
}

type filteredListResponse struct {
	*catalog.VideoPage
	FilterType  string `json:"filterType"`
	FilterValue string `json:"filterValue"`
}

func requestInfo(c *gin.Context) activity.RequestInfo {
	return activity.RequestInfo{
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	}
}

func (s *Server) recordAction(c *gin.Context, actionType string, videoID *uint) {
	s.deps.Recorder.GoAction(c.Request.Context(), actionType, videoID, requestInfo(c))
}

func (s *Server) handleHome(c *gin.Context) {
	home, err := s.deps.Catalog.Home(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	s.recordAction(c, model.ActionHomePageView, nil)
	c.JSON(http.StatusOK, home)
}

func (s *Server) handleVideos(c *gin.Context) {
	q := store.ListQuery{
		Page:      store.NewPage(pageParam(c), PublicPageSize),
		Search:    strings.TrimSpace(c.Query("search")),
		Sort:      store.ParseSortField(c.Query("sort")),
		Direction: store.ParseSortDirection(c.Query("order")),
	}

	page, err := s.deps.Catalog.ListVideos(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	s.recordAction(c, model.ActionVideoListView, nil)
	c.JSON(http.StatusOK, videoListResponse{
		VideoPage: page,
		Search:    q.Search,
		SortBy:    string(q.Sort),
		SortOrder: string(q.Direction),
	})
}

func (s *Server) handleVideo(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, catalog.ErrNotFound)
		return
	}

	video, err := s.deps.Catalog.GetPublishedVideo(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	info := requestInfo(c)
	s.deps.Recorder.GoView(c.Request.Context(), id, info)
	s.deps.Recorder.GoAction(c.Request.Context(), model.ActionVideoView, &id, info)
	c.JSON(http.StatusOK, gin.H{"video": video})
}

func (s *Server) handleModel(c *gin.Context) {
	name := c.Param("modelName")
	page, err := s.deps.Catalog.ListByModel(c.Request.Context(), name, store.NewPage(pageParam(c), PublicPageSize))
	if err != nil {
		respondError(c, err)
		return
	}
	s.recordAction(c, model.ActionModelView, nil)
	c.JSON(http.StatusOK, filteredListResponse{VideoPage: page, FilterType: "model", FilterValue: name})
}

func (s *Server) handleTag(c *gin.Context) {
	tag := c.Param("tag")
	page, err := s.deps.Catalog.ListByTag(c.Request.Context(), tag, store.NewPage(pageParam(c), PublicPageSize))
	if err != nil {
		respondError(c, err)
		return
	}
	s.recordAction(c, model.ActionTagView, nil)
	c.JSON(http.StatusOK, filteredListResponse{VideoPage: page, FilterType: "tag", FilterValue: tag})
}

func (s *Server) handleSearch(c *gin.Context) {
	videos, err := s.deps.Catalog.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos})
}

func (s *Server) handleModels(c *gin.Context) {
	models, err := s.deps.Catalog.Models(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

func (s *Server) handleTags(c *gin.Context) {
	tags, err := s.deps.Catalog.Tags(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}
