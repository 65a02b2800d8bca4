package catalog

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/user/vidcatalog/internal/model"
	"github.com/user/vidcatalog/internal/provider"
	"github.com/user/vidcatalog/internal/staging"
)

// PlaceholderTitle names a remote upload until an admin gives it a title
const PlaceholderTitle = "Uploading..."

// RemoteUpload describes a video to be fetched by the provider from a URL
type RemoteUpload struct {
	URL         string   `json:"url" validate:"required,url"`
	Title       string   `json:"title" validate:"max=255"`
	Description string   `json:"description"`
	ModelName   string   `json:"model_name" validate:"max=255"`
	Tags        []string `json:"tags" validate:"dive,max=100"`
}

// SubmitRemoteUpload asks the provider to fetch a video and records it as unfinished.
// When the provider rejects the submission no row is created.
func (s *Service) SubmitRemoteUpload(ctx context.Context, req RemoteUpload) (*model.Video, error) {
	req.URL = strings.TrimSpace(req.URL)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	job, err := s.provider.SubmitRemoteFetch(ctx, req.URL)
	if err != nil {
		return nil, &UploadSubmissionError{URL: req.URL, Err: err}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = PlaceholderTitle
	}
	video := &model.Video{
		Title:       title,
		Description: req.Description,
		ModelName:   req.ModelName,
		Tags:        normalizeTags(req.Tags),
		VideoID:     job.ID.String(),
		Finished:    false,
	}
	if err := s.store.Insert(ctx, video); err != nil {
		return nil, wrap(err, "failed to save remote upload")
	}

	log.Info().
		Uint("videoID", video.ID).
		Str("jobID", video.VideoID).
		Msg("Remote upload submitted")
	return video, nil
}

// ReconcileRemoteUpload polls the provider for a remote upload and, once the job
// has finished, stores the final asset id with its embed markup and thumbnail.
// Pending and failed jobs are reported without touching the row. The video is
// never published here.
func (s *Service) ReconcileRemoteUpload(ctx context.Context, id uint) (*provider.RemoteStatus, error) {
	video, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !video.HasProviderID() {
		return nil, ErrNotFound
	}

	// Already reconciled: video_id now holds the asset id, not the job id
	if finalized(video) {
		return &provider.RemoteStatus{Status: provider.StatusFinished, VideoID: provider.ID(video.VideoID)}, nil
	}

	status, err := s.provider.PollRemoteFetch(ctx, video.VideoID)
	if err != nil {
		return nil, err
	}
	if !status.Finished() {
		log.Debug().
			Uint("videoID", id).
			Str("status", status.Status).
			Msg("Remote upload not finished")
		return status, nil
	}

	assetID := status.VideoID.String()
	info, err := s.provider.FetchAssetInfo(ctx, assetID)
	if err != nil {
		return nil, err
	}

	// Field-level write: an admin edit made while polling must survive
	embed := s.provider.EmbedCode(assetID)
	if err := s.store.FinalizeRemote(ctx, id, assetID, embed, info.Thumbnail); err != nil {
		return nil, wrap(err, "failed to store reconciled upload")
	}

	log.Info().
		Uint("videoID", id).
		Str("assetID", assetID).
		Msg("Remote upload reconciled")
	return status, nil
}

// FileError is a per-file failure in a mass upload
type FileError struct {
	File    string `json:"file"`
	Message string `json:"error"`
}

// MassUploadResult reports the outcome of every file in a mass upload
type MassUploadResult struct {
	Created []*model.Video `json:"created"`
	Errors  []FileError    `json:"errors"`
}

// ProcessMassUpload uploads staged files one at a time. A failing file never stops
// the batch, and every staged file is removed once its upload was attempted.
func (s *Service) ProcessMassUpload(ctx context.Context, files []staging.File) *MassUploadResult {
	result := &MassUploadResult{
		Created: []*model.Video{},
		Errors:  []FileError{},
	}

	for _, file := range files {
		video, err := s.uploadStaged(ctx, file)
		if err != nil {
			log.Warn().Err(err).Str("file", file.OriginalName).Msg("Mass upload file failed")
			result.Errors = append(result.Errors, FileError{File: file.OriginalName, Message: err.Error()})
			continue
		}
		result.Created = append(result.Created, video)
	}

	log.Info().
		Int("created", len(result.Created)).
		Int("failed", len(result.Errors)).
		Msg("Mass upload processed")
	return result
}

func (s *Service) uploadStaged(ctx context.Context, file staging.File) (*model.Video, error) {
	defer func() {
		if err := file.Remove(); err != nil {
			log.Error().Err(err).Str("path", file.Path).Msg("Failed to remove staged file")
		}
	}()

	asset, err := s.provider.UploadLocalFile(ctx, file.Path)
	if err != nil {
		return nil, err
	}

	assetID := asset.ID.String()
	video := &model.Video{
		Title:     titleFromFileName(file.OriginalName),
		VideoID:   assetID,
		EmbedCode: s.provider.EmbedCode(assetID),
		Tags:      []string{},
		Finished:  false,
	}
	if err := s.store.Insert(ctx, video); err != nil {
		return nil, wrap(err, "failed to save uploaded video")
	}
	return video, nil
}

// titleFromFileName strips directories and the extension from an uploaded file name
func titleFromFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	title := strings.TrimSuffix(base, filepath.Ext(base))
	if title == "" || title == "." || title == "/" {
		return base
	}
	if r := []rune(title); len(r) > 255 {
		title = string(r[:255])
	}
	return title
}
