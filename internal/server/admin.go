package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/user/vidcatalog/internal/auth"
	"github.com/user/vidcatalog/internal/catalog"
	"github.com/user/vidcatalog/internal/staging"
	"github.com/user/vidcatalog/internal/store"
)

const (
	dashboardPath   = "/admin/dashboard"
	adminVideosPath = "/admin/videos"
)

func (s *Server) hasSession(c *gin.Context) bool {
	token, err := c.Cookie(auth.SessionCookie)
	if err != nil || token == "" {
		return false
	}
	_, err = s.deps.Auth.ParseToken(token)
	return err == nil
}

func (s *Server) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.SessionCookie, token, maxAge, "/", "", s.deps.SecureCookie, true)
}

func (s *Server) handleLoginPage(c *gin.Context) {
	if s.hasSession(c) {
		c.Redirect(http.StatusFound, dashboardPath)
		return
	}
	c.JSON(http.StatusOK, gin.H{"error": nil})
}

func (s *Server) handleLogin(c *gin.Context) {
	if !s.deps.Limiter.Allow(c.ClientIP()) {
		log.Warn().Str("client_ip", c.ClientIP()).Msg("Admin login rate limited")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many login attempts, try again later"})
		return
	}

	if !s.deps.Auth.CheckCredentials(c.PostForm("username"), c.PostForm("password")) {
		log.Warn().Str("client_ip", c.ClientIP()).Msg("Admin login failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := s.deps.Auth.IssueToken()
	if err != nil {
		respondError(c, err)
		return
	}
	s.setSessionCookie(c, token, int(s.deps.Auth.TTL().Seconds()))
	log.Info().Str("client_ip", c.ClientIP()).Msg("Admin logged in")
	c.Redirect(http.StatusFound, dashboardPath)
}

func (s *Server) handleLogout(c *gin.Context) {
	s.setSessionCookie(c, "", -1)
	c.Redirect(http.StatusFound, auth.LoginPath)
}

func (s *Server) handleDashboard(c *gin.Context) {
	dash, err := s.deps.Catalog.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (s *Server) handleAdminVideos(c *gin.Context) {
	page, err := s.deps.Catalog.ListVideos(c.Request.Context(), store.ListQuery{
		Page:      store.NewPage(pageParam(c), catalog.AdminPageSize),
		Sort:      store.SortCreatedAt,
		Direction: store.SortDesc,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) handleAddPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"error":  nil,
		"fields": []string{"url", "title", "description", "model_name", "tags"},
	})
}

func (s *Server) handleMassUploadPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"error":             nil,
		"field":             "videos",
		"allowedExtensions": staging.Extensions(),
		"maxFileSize":       s.deps.Stager.MaxSize(),
	})
}

func (s *Server) handleAddVideo(c *gin.Context) {
	video, err := s.deps.Catalog.SubmitRemoteUpload(c.Request.Context(), catalog.RemoteUpload{
		URL:         c.PostForm("url"),
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		ModelName:   c.PostForm("model_name"),
		Tags:        catalog.ParseTags(c.PostForm("tags")),
	})
	if err != nil {
		RecordUpload("remote", "error")
		respondError(c, err)
		return
	}

	RecordUpload("remote", "submitted")
	log.Info().Uint("videoID", video.ID).Msg("Admin added remote video")
	c.Redirect(http.StatusFound, adminVideosPath)
}

func (s *Server) handleMassUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, &catalog.ValidationError{Field: "videos", Message: "must be a multipart upload"})
		return
	}
	defer form.RemoveAll()

	headers := form.File["videos"]
	if len(headers) == 0 {
		respondError(c, &catalog.ValidationError{Message: "No files uploaded"})
		return
	}

	files, rejected := s.deps.Stager.SaveAll(headers)
	result := s.deps.Catalog.ProcessMassUpload(c.Request.Context(), files)
	for _, r := range rejected {
		result.Errors = append(result.Errors, catalog.FileError{File: r.Name, Message: r.Err.Error()})
	}

	uploadsTotal.WithLabelValues("mass", "created").Add(float64(len(result.Created)))
	uploadsTotal.WithLabelValues("mass", "error").Add(float64(len(result.Errors)))

	c.JSON(http.StatusOK, gin.H{
		"success": fmt.Sprintf("Successfully uploaded %d videos", len(result.Created)),
		"created": result.Created,
		"errors":  result.Errors,
	})
}

func (s *Server) handleEditPage(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	video, err := s.deps.Catalog.GetVideo(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": video})
}

func (s *Server) handleEditVideo(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	_, err = s.deps.Catalog.EditVideo(c.Request.Context(), id, catalog.Edit{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		ModelName:   c.PostForm("model_name"),
		Tags:        catalog.ParseTags(c.PostForm("tags")),
		Finished:    c.PostForm("finished") == "true",
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, adminVideosPath)
}

func (s *Server) handlePublish(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := s.deps.Catalog.Publish(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, adminVideosPath)
}

func (s *Server) handleDeleteVideo(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := s.deps.Catalog.DeleteVideo(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, adminVideosPath)
}

func (s *Server) handleUploadStatus(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	status, err := s.deps.Catalog.ReconcileRemoteUpload(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleStatistics(c *gin.Context) {
	stats, err := s.deps.Catalog.AdminStatistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
