package provider

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/user/vidcatalog/internal/config"
	"golang.org/x/time/rate"
)

const (
	uploadServerPath = "/v1/upload/server"
	remoteUploadPath = "/v1/remote/upload"
	remoteStatusPath = "/v1/remote/get"
	videoInfoPath    = "/v1/video/info"
	videoRenamePath  = "/v1/video/rename"
	videoDeletePath  = "/v1/video/delete"
	videoListPath    = "/v1/video/list"
	folderNewPath    = "/v1/folder/new"
	folderListPath   = "/v1/folder/list"
)

// Client talks to the video-hosting provider API
type Client struct {
	http        *resty.Client
	upload      *http.Client
	limiter     *rate.Limiter
	apiKey      string
	folderID    string
	embedDomain string
	maxRetries  int
	backoff     func(attempt int) time.Duration
}

// New creates a provider client from configuration
func New(cfg *config.ProviderConfig) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "vidcatalog/1.0")

	return &Client{
		http: client,
		// Uploads are bounded by the caller's context only
		upload:      &http.Client{},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		apiKey:      cfg.APIKey,
		folderID:    cfg.FolderID,
		embedDomain: cfg.EmbedDomain,
		maxRetries:  cfg.MaxRetries,
		backoff:     exponentialBackoff,
	}
}

// exponentialBackoff waits 1s, 2s, 4s, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// FolderID returns the default folder new uploads are placed in
func (c *Client) FolderID() string {
	return c.folderID
}

// EmbedCode returns the player markup for assetID on the configured domain
func (c *Client) EmbedCode(assetID string) string {
	return EmbedCode(c.embedDomain, assetID)
}

// request issues a call, retrying transport errors and 5xx responses with
// exponential backoff when retry is set. Every attempt waits on the limiter.
func (c *Client) request(ctx context.Context, op string, retry bool, send func(r *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	attempts := 1
	if retry {
		attempts += c.maxRetries
	}

	var lastErr *Error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Op: op, Message: "rate limiter: " + err.Error(), Err: err}
		}

		r := c.http.R().
			SetContext(ctx).
			SetQueryParam("key", c.apiKey)
		resp, err := send(r)

		switch {
		case err != nil:
			lastErr = &Error{Op: op, Message: err.Error(), Err: err}
		case resp.IsError():
			lastErr = &Error{Op: op, StatusCode: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
		default:
			return resp, nil
		}

		if ctx.Err() != nil || !lastErr.Temporary() || attempt == attempts-1 {
			break
		}

		wait := c.backoff(attempt)
		log.Warn().
			Err(lastErr).
			Str("op", op).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Msg("Provider call failed, retrying")

		select {
		case <-ctx.Done():
			return nil, &Error{Op: op, Message: ctx.Err().Error(), Err: ctx.Err()}
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

// decode unmarshals a response body, whatever content type the provider labels it with
func decode(op string, resp *resty.Response, out any) error {
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode(), Message: "invalid response: " + err.Error(), Err: err}
	}
	return nil
}

// decodeList accepts a bare array or an object wrapping it in "result"
func decodeList[T any](op string, resp *resty.Response) ([]T, error) {
	body := resp.Body()
	var items []T
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}
	var wrapped struct {
		Result []T `json:"result"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode(), Message: "invalid response: " + err.Error(), Err: err}
	}
	return wrapped.Result, nil
}

// RequestUploadServer asks for an upload endpoint
func (c *Client) RequestUploadServer(ctx context.Context) (*UploadServer, error) {
	const op = "upload server"
	resp, err := c.request(ctx, op, true, func(r *resty.Request) (*resty.Response, error) {
		return r.Get(uploadServerPath)
	})
	if err != nil {
		return nil, err
	}

	var server UploadServer
	if err := decode(op, resp, &server); err != nil {
		return nil, err
	}
	if server.URL == "" {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode(), Message: "no upload url in response"}
	}
	return &server, nil
}

// SubmitRemoteFetch asks the provider to fetch sourceURL into a new asset.
// Never retried: a duplicate submission would create a duplicate job.
func (c *Client) SubmitRemoteFetch(ctx context.Context, sourceURL string) (*RemoteJob, error) {
	const op = "remote upload"
	form := map[string]string{
		"key": c.apiKey,
		"url": sourceURL,
	}
	if c.folderID != "" {
		form["folder"] = c.folderID
	}

	resp, err := c.request(ctx, op, false, func(r *resty.Request) (*resty.Response, error) {
		return r.SetFormData(form).Post(remoteUploadPath)
	})
	if err != nil {
		return nil, err
	}

	var job RemoteJob
	if err := decode(op, resp, &job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode(), Message: "no job id in response"}
	}

	log.Info().Str("jobID", job.ID.String()).Str("url", sourceURL).Msg("Remote fetch submitted")
	return &job, nil
}

// PollRemoteFetch reports the state of a remote fetch job
func (c *Client) PollRemoteFetch(ctx context.Context, jobID string) (*RemoteStatus, error) {
	const op = "remote status"
	resp, err := c.request(ctx, op, true, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("id", jobID).Get(remoteStatusPath)
	})
	if err != nil {
		return nil, err
	}

	var status RemoteStatus
	if err := decode(op, resp, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// FetchAssetInfo returns details about a hosted asset
func (c *Client) FetchAssetInfo(ctx context.Context, assetID string) (*AssetInfo, error) {
	const op = "video info"
	resp, err := c.request(ctx, op, true, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("id", assetID).Get(videoInfoPath)
	})
	if err != nil {
		return nil, err
	}

	var info AssetInfo
	if err := decode(op, resp, &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		info.ID = ID(assetID)
	}
	return &info, nil
}

// RenameAsset changes the provider-side name of an asset
func (c *Client) RenameAsset(ctx context.Context, assetID, name string) error {
	_, err := c.request(ctx, "video rename", true, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParams(map[string]string{"id": assetID, "name": name}).Get(videoRenamePath)
	})
	return err
}

// DeleteAsset removes an asset from the provider
func (c *Client) DeleteAsset(ctx context.Context, assetID string) error {
	_, err := c.request(ctx, "video delete", true, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("id", assetID).Get(videoDeletePath)
	})
	return err
}

// ListAssets pages through hosted assets, optionally within a folder
func (c *Client) ListAssets(ctx context.Context, folderID string, offset, limit int) ([]Asset, error) {
	const op = "video list"
	params := map[string]string{
		"offset": strconv.Itoa(offset),
		"limit":  strconv.Itoa(limit),
	}
	if folderID != "" {
		params["folder"] = folderID
	}

	resp, err := c.request(ctx, op, true, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParams(params).Get(videoListPath)
	})
	if err != nil {
		return nil, err
	}
	return decodeList[Asset](op, resp)
}

// CreateFolder creates a folder, under parentID when set
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (*Folder, error) {
	const op = "folder new"
	params := map[string]string{"name": name}
	if parentID != "" {
		params["folder"] = parentID
	}

	// Not retried: a lost response would otherwise create the folder twice
	resp, err := c.request(ctx, op, false, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParams(params).Get(folderNewPath)
	})
	if err != nil {
		return nil, err
	}

	folder := Folder{Name: name}
	if err := decode(op, resp, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// ListFolders lists folders, under parentID when set
func (c *Client) ListFolders(ctx context.Context, parentID string) ([]Folder, error) {
	const op = "folder list"
	resp, err := c.request(ctx, op, true, func(r *resty.Request) (*resty.Response, error) {
		if parentID != "" {
			r.SetQueryParam("folder", parentID)
		}
		return r.Get(folderListPath)
	})
	if err != nil {
		return nil, err
	}
	return decodeList[Folder](op, resp)
}

// IsNotFound reports whether err is a provider 404
func IsNotFound(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.StatusCode == http.StatusNotFound
}
