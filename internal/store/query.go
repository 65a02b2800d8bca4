package store

import (
	"strings"
)

const (
	// DefaultPageSize is used when a caller passes a non-positive page size
	DefaultPageSize = 12
	// MaxPageSize caps page sizes supplied by callers
	MaxPageSize = 100
)

// Page addresses one page of a listing; numbering starts at 1
type Page struct {
	Number int
	Size   int
}

// NewPage builds a normalized page
func NewPage(number, size int) Page {
	return Page{Number: number, Size: size}.normalize()
}

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns (number-1)*size
func (p Page) Offset() int {
	n := p.normalize()
	return (n.Number - 1) * n.Size
}

// Limit returns the page size
func (p Page) Limit() int {
	return p.normalize().Size
}

// TotalPages returns ceil(count/size), 0 when there is nothing to show
func TotalPages(count int64, size int) int {
	if count <= 0 || size <= 0 {
		return 0
	}
	return int((count + int64(size) - 1) / int64(size))
}

// SortField is a column public listings may be ordered by
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortUpdatedAt SortField = "updated_at"
	SortTitle     SortField = "title"
	SortViews     SortField = "views"
	SortModelName SortField = "model_name"
)

var sortFields = map[SortField]struct{}{
	SortCreatedAt: {},
	SortUpdatedAt: {},
	SortTitle:     {},
	SortViews:     {},
	SortModelName: {},
}

// ParseSortField resolves user input against the allow-list, falling back to created_at
func ParseSortField(s string) SortField {
	f := SortField(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := sortFields[f]; ok {
		return f
	}
	return SortCreatedAt
}

// Valid reports whether f is on the allow-list
func (f SortField) Valid() bool {
	_, ok := sortFields[f]
	return ok
}

// Column returns the column name for f, or created_at when f is not allowed
func (f SortField) Column() string {
	if !f.Valid() {
		return string(SortCreatedAt)
	}
	return string(f)
}

// SortDirection is ASC or DESC
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// ParseSortDirection resolves user input to ASC or DESC, falling back to DESC
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(s), string(SortAsc)) {
		return SortAsc
	}
	return SortDesc
}

// Descending reports whether d orders descending; anything but ASC is descending
func (d SortDirection) Descending() bool {
	return d != SortAsc
}

// ListQuery parameterizes ListPublished
type ListQuery struct {
	Page      Page
	Search    string
	Sort      SortField
	Direction SortDirection
}

// escapeLike makes s match literally inside a LIKE pattern
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
