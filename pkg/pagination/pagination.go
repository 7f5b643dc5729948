// Package pagination holds the offset paging used by catalog and admin
// listings and the keyset cursors used by the order history.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 9
	DefaultLimit    = 25
	MaxLimit        = 100
)

type Page struct {
	Page     int
	PageSize int
}

// NewPage clamps page to at least 1 and pageSize to [1, MaxLimit], using
// DefaultPageSize when pageSize is unset.
func NewPage(page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Page{Page: max(page, 1), PageSize: min(pageSize, MaxLimit)}
}

func (p Page) Offset() int { return (p.Page - 1) * p.PageSize }

type Meta struct {
	TotalCount  int64 `json:"totalCount"`
	PageCount   int   `json:"pageCount"`
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
}

func NewMeta(p Page, total int64) Meta {
	meta := Meta{TotalCount: total, CurrentPage: p.Page, PageSize: p.PageSize}
	if total > 0 && p.PageSize > 0 {
		size := int64(p.PageSize)
		meta.PageCount = int((total + size - 1) / size)
	}
	return meta
}

// Params is a keyset page request. An empty Cursor starts from the newest row.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the (created_at, id) position of the last row a page returned.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// Split trims rows fetched with limit+1 down to limit and reports whether
// another page follows.
func Split[T any](rows []T, limit int) ([]T, bool) {
	if len(rows) > limit {
		return rows[:limit], true
	}
	return rows, false
}

const cursorSep = "|"

var errCursorFormat = errors.New("invalid cursor format")

// EncodeCursor produces a URL-safe opaque token.
func EncodeCursor(c Cursor) string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + cursorSep + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor returns nil for a blank value.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	stamp, id, ok := strings.Cut(string(raw), cursorSep)
	if !ok {
		return nil, errCursorFormat
	}
	c := &Cursor{}
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, stamp); err != nil {
		return nil, fmt.Errorf("cursor timestamp: %w", err)
	}
	if c.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("cursor id: %w", err)
	}
	return c, nil
}
