package wiki

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultDisplayOrder is assumed for records that carry no explicit order.
const DefaultDisplayOrder = 999

// DefaultBannerVerticalOffset centers the banner crop when no offset is stored.
const DefaultBannerVerticalOffset = 50

const maxIdentifierLength = 190

var (
	// ErrInvalidSlug indicates that a page slug is empty, too long or not URL safe.
	ErrInvalidSlug = errors.New("wiki: invalid slug")
	// ErrInvalidTitle indicates that a page title is empty or exceeds storage bounds.
	ErrInvalidTitle = errors.New("wiki: invalid title")
	// ErrPageNotFound indicates that no page matches the requested slug or id.
	ErrPageNotFound = errors.New("wiki: page not found")
	// ErrValidation indicates that submitted page fields failed validation.
	ErrValidation = errors.New("wiki: validation failed")
)

// Slug represents a validated URL-safe page slug.
type Slug string

// NewSlug validates raw input and returns a Slug.
func NewSlug(rawInput string) (Slug, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSlug)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidSlug, maxIdentifierLength)
	}
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return "", fmt.Errorf("%w: character %q not allowed", ErrInvalidSlug, r)
		}
	}
	return Slug(trimmed), nil
}

// String returns the underlying slug value.
func (s Slug) String() string {
	return string(s)
}

// PageTitle represents a validated page display title.
type PageTitle string

// NewPageTitle validates raw input and returns a PageTitle.
func NewPageTitle(rawInput string) (PageTitle, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTitle)
	}
	return PageTitle(trimmed), nil
}

// String returns the underlying title value.
func (t PageTitle) String() string {
	return string(t)
}

// Page models one persisted knowledge-base page. ParentID is nullable; a nil
// parent marks a root page. DisplayOrder is nullable so that an absent order
// can fall back to DefaultDisplayOrder at derivation time.
type Page struct {
	ID                   int64   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ParentID             *int64  `gorm:"column:parent_id;index" json:"parent_id"`
	Slug                 string  `gorm:"column:slug;size:190;uniqueIndex;not null" json:"slug"`
	Title                string  `gorm:"column:title;size:320;not null" json:"title"`
	DisplayOrder         *int    `gorm:"column:display_order" json:"order"`
	Content              string  `gorm:"column:content;type:text;not null;default:''" json:"content"`
	IsPublic             bool    `gorm:"column:is_public;not null;default:false" json:"is_public"`
	StaffOnly            bool    `gorm:"column:staff_only;not null;default:false" json:"staff_only"`
	BannerImageRef       *string `gorm:"column:banner_image_ref;size:512" json:"banner_image_ref"`
	BannerVerticalOffset int     `gorm:"column:banner_vertical_offset;not null;default:50" json:"banner_vertical_offset"`
	CreatedAtSeconds     int64   `gorm:"column:created_at_s;not null" json:"created_at_s"`
	UpdatedAtSeconds     int64   `gorm:"column:updated_at_s;not null" json:"updated_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Page) TableName() string {
	return "wiki_pages"
}

// EffectiveOrder returns the sort order, substituting the default for records
// that carry none.
func (p Page) EffectiveOrder() int {
	if p.DisplayOrder == nil {
		return DefaultDisplayOrder
	}
	return *p.DisplayOrder
}

// ChangeOperation enumerates audited page mutations.
type ChangeOperation string

const (
	// ChangeOperationCreate records a page creation.
	ChangeOperationCreate ChangeOperation = "create"
	// ChangeOperationUpdate records a page update.
	ChangeOperationUpdate ChangeOperation = "update"
)

// PageChange captures an append-only audit trail for page modifications.
type PageChange struct {
	ChangeID         string          `gorm:"column:change_id;primaryKey;size:190;not null"`
	PageID           int64           `gorm:"column:page_id;not null;index:idx_page_changes_page_time,priority:1"`
	EditorID         string          `gorm:"column:editor_id;size:190;not null"`
	Operation        ChangeOperation `gorm:"column:op;not null"`
	AppliedAtSeconds int64           `gorm:"column:applied_at_s;not null;index:idx_page_changes_page_time,priority:2"`
	TitleAfter       string          `gorm:"column:title_after;size:320;not null"`
}

// TableName provides the explicit table binding for GORM.
func (PageChange) TableName() string {
	return "wiki_page_changes"
}

// PageFields carries the caller-supplied values for a create or update call.
// Nil pointer fields keep their stored value on update.
type PageFields struct {
	ParentID             *int64
	Slug                 string
	Title                string
	DisplayOrder         *int
	Content              string
	IsPublic             bool
	StaffOnly            bool
	BannerImageRef       *string
	BannerVerticalOffset *int
}
