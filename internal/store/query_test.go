package store

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPage_Offset(t *testing.T) {
	tests := []struct {
		name       string
		page       Page
		wantOffset int
		wantLimit  int
	}{
		{"first page", NewPage(1, 12), 0, 12},
		{"second page", NewPage(2, 12), 12, 12},
		{"admin page size", NewPage(3, 20), 40, 20},
		{"zero page clamps to first", NewPage(0, 12), 0, 12},
		{"negative page clamps to first", NewPage(-4, 12), 0, 12},
		{"zero size uses default", NewPage(2, 0), DefaultPageSize, DefaultPageSize},
		{"oversized page is capped", NewPage(2, 1000), MaxPageSize, MaxPageSize},
		{"zero value page", Page{}, 0, DefaultPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.page.Offset(); got != tt.wantOffset {
				t.Errorf("Offset() = %d, want %d", got, tt.wantOffset)
			}
			if got := tt.page.Limit(); got != tt.wantLimit {
				t.Errorf("Limit() = %d, want %d", got, tt.wantLimit)
			}
		})
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		count int64
		size  int
		want  int
	}{
		{0, 12, 0},
		{1, 12, 1},
		{12, 12, 1},
		{13, 12, 2},
		{24, 12, 2},
		{25, 12, 3},
		{100, 20, 5},
		{5, 0, 0},
	}

	for _, tt := range tests {
		if got := TotalPages(tt.count, tt.size); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.count, tt.size, got, tt.want)
		}
	}
}

// For any count and page size, TotalPages is the smallest page count covering every row.
func TestProperty_TotalPagesIsCeiling(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("pages cover count exactly", prop.ForAll(
		func(count int64, size int) bool {
			pages := int64(TotalPages(count, size))
			if count == 0 {
				return pages == 0
			}
			return pages*int64(size) >= count && (pages-1)*int64(size) < count
		},
		gen.Int64Range(0, 1_000_000),
		gen.IntRange(1, 100),
	))

	properties.Property("offset of page n is (n-1)*size", prop.ForAll(
		func(n int, size int) bool {
			return NewPage(n, size).Offset() == (n-1)*size
		},
		gen.IntRange(1, 10_000),
		gen.IntRange(1, MaxPageSize),
	))

	properties.TestingRun(t)
}

func TestParseSortField(t *testing.T) {
	tests := []struct {
		input string
		want  SortField
	}{
		{"created_at", SortCreatedAt},
		{"updated_at", SortUpdatedAt},
		{"title", SortTitle},
		{"TITLE", SortTitle},
		{" views ", SortViews},
		{"model_name", SortModelName},
		{"", SortCreatedAt},
		{"id", SortCreatedAt},
		{"created_at; DROP TABLE videos", SortCreatedAt},
		{"(SELECT 1)", SortCreatedAt},
	}

	for _, tt := range tests {
		if got := ParseSortField(tt.input); got != tt.want {
			t.Errorf("ParseSortField(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseSortDirection(t *testing.T) {
	tests := []struct {
		input string
		want  SortDirection
	}{
		{"ASC", SortAsc},
		{"asc", SortAsc},
		{"DESC", SortDesc},
		{"desc", SortDesc},
		{"", SortDesc},
		{"ASC; DELETE FROM videos", SortDesc},
	}

	for _, tt := range tests {
		if got := ParseSortDirection(tt.input); got != tt.want {
			t.Errorf("ParseSortDirection(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// Whatever the caller sends, the resolved column and direction come from the allow-list.
func TestProperty_SortInputIsAlwaysAllowListed(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("parsed sort field is allow-listed", prop.ForAll(
		func(input string) bool {
			return ParseSortField(input).Valid()
		},
		gen.AnyString(),
	))

	properties.Property("unparsed sort field never leaks into the column", prop.ForAll(
		func(input string) bool {
			col := SortField(input).Column()
			return SortField(col).Valid()
		},
		gen.AnyString(),
	))

	properties.Property("parsed direction is ASC or DESC", prop.ForAll(
		func(input string) bool {
			d := ParseSortDirection(input)
			return d == SortAsc || d == SortDesc
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
	}

	for _, tt := range tests {
		if got := escapeLike(tt.input); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
