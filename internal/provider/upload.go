package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// UploadLocalFile sends a staged file to a freshly requested upload server.
// The body is streamed from disk; the POST itself is never retried.
func (c *Client) UploadLocalFile(ctx context.Context, path string) (*Asset, error) {
	const op = "upload"

	server, err := c.RequestUploadServer(ctx)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, &Error{Op: op, Message: err.Error(), Err: err}
	}
	defer file.Close()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Op: op, Message: "rate limiter: " + err.Error(), Err: err}
	}

	body, contentType := c.multipartBody(file, filepath.Base(path))
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server.URL, body)
	if err != nil {
		return nil, &Error{Op: op, Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.upload.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	var asset Asset
	if err := json.Unmarshal(data, &asset); err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: "invalid response: " + err.Error(), Err: err}
	}
	if asset.ID == "" {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: "no asset id in response"}
	}

	log.Info().
		Str("assetID", asset.ID.String()).
		Str("file", filepath.Base(path)).
		Msg("File uploaded to provider")
	return &asset, nil
}

// multipartBody streams the form through a pipe so the file is never held in memory
func (c *Client) multipartBody(file io.Reader, name string) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(c.writeForm(mw, file, name))
	}()
	return pr, mw.FormDataContentType()
}

func (c *Client) writeForm(mw *multipart.Writer, file io.Reader, name string) error {
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}
	if err := mw.WriteField("key", c.apiKey); err != nil {
		return err
	}
	if c.folderID != "" {
		if err := mw.WriteField("folder", c.folderID); err != nil {
			return err
		}
	}
	return mw.Close()
}
