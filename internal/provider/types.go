package provider

import (
	"bytes"
	"encoding/json"
)

// Remote fetch job states
const (
	StatusPending  = "pending"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// ID is a provider identifier. The API sends ids as strings or numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// UploadServer is the upload endpoint handed out for a single local upload
type UploadServer struct {
	URL string `json:"url"`
}

// Asset is a hosted video
type Asset struct {
	ID        ID     `json:"id"`
	Name      string `json:"name,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	URL       string `json:"url,omitempty"`
}

// AssetInfo describes a hosted video
type AssetInfo struct {
	ID        ID     `json:"id"`
	Thumbnail string `json:"thumbnail"`
	URL       string `json:"url"`
}

// RemoteJob is an accepted remote fetch
type RemoteJob struct {
	ID ID `json:"id"`
}

// RemoteStatus is the state of a remote fetch job. VideoID is set once finished.
type RemoteStatus struct {
	Status  string `json:"status"`
	VideoID ID     `json:"video_id"`
}

// Finished reports whether the job produced an asset
func (s *RemoteStatus) Finished() bool {
	return s.Status == StatusFinished && s.VideoID != ""
}

// Folder is a provider-side folder
type Folder struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}
