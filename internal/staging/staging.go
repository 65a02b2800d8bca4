package staging

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/user/vidcatalog/internal/config"
)

// sniffLen is how much of a file is read to detect its type
const sniffLen = 3072

var (
	ErrUnsupportedType = errors.New("only video files are allowed")
	ErrTooLarge        = errors.New("file exceeds the maximum upload size")
)

var allowedExtensions = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".mkv":  {},
	".wmv":  {},
	".flv":  {},
	".webm": {},
}

// Extensions lists the accepted file extensions, sorted
func Extensions() []string {
	exts := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// File is an upload written to the staging directory
type File struct {
	Path         string
	OriginalName string
	Size         int64
	ContentType  string
}

// Remove deletes the staged copy. A file that is already gone is not an error.
func (f File) Remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Rejection is an upload that was not staged
type Rejection struct {
	Name string
	Err  error
}

// Stager writes incoming video uploads to local disk
type Stager struct {
	dir     string
	maxSize int64
}

// New creates a stager, making sure the staging directory exists
func New(cfg *config.UploadConfig) (*Stager, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Stager{dir: cfg.Dir, maxSize: cfg.MaxFileSize}, nil
}

// Dir returns the staging directory
func (s *Stager) Dir() string {
	return s.dir
}

// MaxSize returns the per-file size limit in bytes
func (s *Stager) MaxSize() int64 {
	return s.maxSize
}

// Save stages one multipart upload
func (s *Stager) Save(fh *multipart.FileHeader) (File, error) {
	ext, err := s.check(fh.Filename, fh.Size)
	if err != nil {
		return File{}, err
	}

	src, err := fh.Open()
	if err != nil {
		return File{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	return s.write(src, fh.Filename, ext)
}

// SaveAll stages every upload it can. Rejected files are reported individually.
func (s *Stager) SaveAll(headers []*multipart.FileHeader) ([]File, []Rejection) {
	var (
		files    []File
		rejected []Rejection
	)
	for _, fh := range headers {
		f, err := s.Save(fh)
		if err != nil {
			log.Warn().Err(err).Str("file", fh.Filename).Msg("Upload rejected")
			rejected = append(rejected, Rejection{Name: fh.Filename, Err: err})
			continue
		}
		files = append(files, f)
	}
	return files, rejected
}

func (s *Stager) check(name string, size int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", ErrUnsupportedType
	}
	if size > s.maxSize {
		return "", ErrTooLarge
	}
	return ext, nil
}

func (s *Stager) write(src io.Reader, name, ext string) (File, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	mtype := mimetype.Detect(head)
	if !strings.HasPrefix(mtype.String(), "video/") {
		return File{}, ErrUnsupportedType
	}

	path := filepath.Join(s.dir, uuid.NewString()+ext)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return File{}, fmt.Errorf("failed to create staged file: %w", err)
	}

	// One byte past the limit tells an oversized stream apart from an exact fit
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), src), s.maxSize+1)
	written, copyErr := io.Copy(dst, body)
	closeErr := dst.Close()

	switch {
	case copyErr != nil:
		err = fmt.Errorf("failed to write staged file: %w", copyErr)
	case closeErr != nil:
		err = fmt.Errorf("failed to write staged file: %w", closeErr)
	case written > s.maxSize:
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(path)
		return File{}, err
	}

	return File{
		Path:         path,
		OriginalName: name,
		Size:         written,
		ContentType:  mtype.String(),
	}, nil
}
