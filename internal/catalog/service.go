package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/vidcatalog/internal/model"
	"github.com/user/vidcatalog/internal/provider"
	"github.com/user/vidcatalog/internal/store"
)

// Page sizes used by the public and admin listings
const (
	AdminPageSize  = 20
	SearchPageSize = 10
	HomeListSize   = 8
	StatsListSize  = 5
)

// Store is the persistence the catalog needs
type Store interface {
	store.VideoStore
	store.StatsStore
}

// Provider is the subset of the hosting provider client the catalog uses
type Provider interface {
	SubmitRemoteFetch(ctx context.Context, sourceURL string) (*provider.RemoteJob, error)
	PollRemoteFetch(ctx context.Context, jobID string) (*provider.RemoteStatus, error)
	FetchAssetInfo(ctx context.Context, assetID string) (*provider.AssetInfo, error)
	UploadLocalFile(ctx context.Context, path string) (*provider.Asset, error)
	DeleteAsset(ctx context.Context, assetID string) error
	RenameAsset(ctx context.Context, assetID, name string) error
	EmbedCode(assetID string) string
}

var _ Provider = (*provider.Client)(nil)

// Service implements the catalog operations on top of a store and the provider
type Service struct {
	store    Store
	provider Provider
	now      func() time.Time
}

// NewService creates a catalog service
func NewService(st Store, p Provider) *Service {
	return &Service{
		store:    st,
		provider: p,
		now:      time.Now,
	}
}

// VideoInput carries every mutable field of a video
type VideoInput struct {
	Title        string   `json:"title" validate:"required,max=255"`
	Description  string   `json:"description"`
	ModelName    string   `json:"model_name" validate:"max=255"`
	Tags         []string `json:"tags" validate:"dive,max=100"`
	EmbedCode    string   `json:"embed_code"`
	VideoID      string   `json:"video_id" validate:"max=255"`
	ThumbnailURL string   `json:"thumbnail_url" validate:"omitempty,url,max=500"`
	Finished     bool     `json:"finished"`
}

func (in VideoInput) apply(v *model.Video) {
	v.Title = in.Title
	v.Description = in.Description
	v.ModelName = in.ModelName
	v.Tags = normalizeTags(in.Tags)
	v.EmbedCode = in.EmbedCode
	v.VideoID = in.VideoID
	v.ThumbnailURL = in.ThumbnailURL
	v.Finished = in.Finished
}

func inputFrom(v *model.Video) VideoInput {
	return VideoInput{
		Title:        v.Title,
		Description:  v.Description,
		ModelName:    v.ModelName,
		Tags:         v.Tags,
		EmbedCode:    v.EmbedCode,
		VideoID:      v.VideoID,
		ThumbnailURL: v.ThumbnailURL,
		Finished:     v.Finished,
	}
}

// ParseTags splits a comma separated tag list, trimming blanks
func ParseTags(s string) []string {
	return normalizeTags(strings.Split(s, ","))
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// CreateVideo validates and stores a new video
func (s *Service) CreateVideo(ctx context.Context, in VideoInput) (*model.Video, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	video := &model.Video{}
	in.apply(video)
	if err := s.store.Insert(ctx, video); err != nil {
		return nil, err
	}
	return video, nil
}

// UpdateVideo replaces every mutable field of an existing video
func (s *Service) UpdateVideo(ctx context.Context, id uint, in VideoInput) (*model.Video, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	video := &model.Video{ID: id}
	in.apply(video)
	if err := s.store.Update(ctx, video); err != nil {
		return nil, err
	}
	return video, nil
}

// Edit holds the fields an admin can change from the edit form
type Edit struct {
	Title       string
	Description string
	ModelName   string
	Tags        []string
	Finished    bool
}

// EditVideo applies an admin edit on top of the stored row. Provider-side
// fields are kept, and a renamed asset is renamed at the provider too.
func (s *Service) EditVideo(ctx context.Context, id uint, edit Edit) (*model.Video, error) {
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	in := inputFrom(existing)
	in.Title = edit.Title
	in.Description = edit.Description
	in.ModelName = edit.ModelName
	in.Tags = edit.Tags
	in.Finished = edit.Finished

	updated, err := s.UpdateVideo(ctx, id, in)
	if err != nil {
		return nil, err
	}
	if updated.Title != existing.Title {
		s.RenameRemoteAsset(ctx, updated)
	}
	return updated, nil
}

// Publish makes a video visible on public listings
func (s *Service) Publish(ctx context.Context, id uint) (*model.Video, error) {
	video, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if video.Finished {
		return video, nil
	}

	in := inputFrom(video)
	in.Finished = true
	return s.UpdateVideo(ctx, id, in)
}

// RenameRemoteAsset keeps the provider-side asset name in step with the title.
// Only finalized assets are renamed; failures are logged.
func (s *Service) RenameRemoteAsset(ctx context.Context, video *model.Video) {
	if !finalized(video) {
		return
	}
	if err := s.provider.RenameAsset(ctx, video.VideoID, video.Title); err != nil {
		log.Warn().
			Err(err).
			Uint("videoID", video.ID).
			Str("assetID", video.VideoID).
			Msg("Failed to rename provider asset")
	}
}

// DeleteVideo removes a video. The provider asset is deleted best-effort:
// a provider failure is logged and the row is removed regardless.
func (s *Service) DeleteVideo(ctx context.Context, id uint) (*model.Video, error) {
	video, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if video.HasProviderID() {
		if err := s.provider.DeleteAsset(ctx, video.VideoID); err != nil {
			log.Warn().
				Err(err).
				Uint("videoID", id).
				Str("assetID", video.VideoID).
				Msg("Failed to delete provider asset, deleting catalog row anyway")
		}
	}

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Info().Uint("videoID", id).Str("title", deleted.Title).Msg("Video deleted")
	return deleted, nil
}

// GetVideo returns any video, published or not
func (s *Service) GetVideo(ctx context.Context, id uint) (*model.Video, error) {
	return s.store.GetByID(ctx, id)
}

// GetPublishedVideo returns a video only when it is published
func (s *Service) GetPublishedVideo(ctx context.Context, id uint) (*model.Video, error) {
	video, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !video.Published() {
		return nil, ErrNotFound
	}
	return video, nil
}

// finalized reports whether the stored embed markup points at the stored asset id
func finalized(v *model.Video) bool {
	if !v.HasProviderID() {
		return false
	}
	id, ok := provider.EmbeddedAssetID(v.EmbedCode)
	return ok && id == v.VideoID
}

// wrap annotates store failures but keeps not-found recognizable
func wrap(err error, msg string) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
