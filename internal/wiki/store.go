package wiki

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingEditorID   = errors.New("editor identifier is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries a dotted operation code alongside the causing error.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opStoreNew    = "wiki.store.new"
	opListPages   = "wiki.list_pages"
	opGetPage     = "wiki.get_page"
	opCreatePage  = "wiki.create_page"
	opUpdatePage  = "wiki.update_page"
	opListChanges = "wiki.list_changes"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues identifiers for audit records.
type IDProvider interface {
	NewID() (string, error)
}

// StoreConfig describes the dependencies required by the page store.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Store persists pages and their change audit trail.
type Store struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewStore constructs a page store from its configuration.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opStoreNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opStoreNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// ListPages returns the full flat page set in stable id order. This is the
// snapshot source for tree and search derivations.
func (s *Store) ListPages(ctx context.Context) ([]Page, error) {
	var pages []Page
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&pages).Error; err != nil {
		s.logError(opListPages, "query_failed", err)
		return nil, newServiceError(opListPages, "query_failed", err)
	}
	return pages, nil
}

// GetPageBySlug returns the page with the given slug. A missing slug yields
// ErrPageNotFound, distinguishable from transport failures.
func (s *Store) GetPageBySlug(ctx context.Context, slug string) (Page, error) {
	var page Page
	err := s.db.WithContext(ctx).Where("slug = ?", slug).Take(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Page{}, fmt.Errorf("%w: %s", ErrPageNotFound, slug)
	}
	if err != nil {
		s.logError(opGetPage, "query_failed", err, zap.String("slug", slug))
		return Page{}, newServiceError(opGetPage, "query_failed", err)
	}
	return page, nil
}

// CreatePage validates the submitted fields, persists a new page and appends
// an audit record in one transaction. Validation failures are reported before
// any persistence is attempted.
func (s *Store) CreatePage(ctx context.Context, editorID string, fields PageFields) (Page, error) {
	if editorID == "" {
		return Page{}, newServiceError(opCreatePage, "missing_editor_id", errMissingEditorID)
	}
	title, err := NewPageTitle(fields.Title)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	slug, err := NewSlug(fields.Slug)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := s.clock().UTC().Unix()
	page := Page{
		ParentID:             fields.ParentID,
		Slug:                 slug.String(),
		Title:                title.String(),
		DisplayOrder:         fields.DisplayOrder,
		Content:              fields.Content,
		IsPublic:             fields.IsPublic,
		StaffOnly:            fields.StaffOnly,
		BannerImageRef:       fields.BannerImageRef,
		BannerVerticalOffset: clampBannerOffset(fields.BannerVerticalOffset),
		CreatedAtSeconds:     now,
		UpdatedAtSeconds:     now,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&page).Error; err != nil {
			return newServiceError(opCreatePage, "page_insert_failed", err)
		}
		return s.appendChange(tx, page, editorID, ChangeOperationCreate)
	})
	if txErr != nil {
		s.logError(opCreatePage, "transaction_failed", txErr, zap.String("slug", page.Slug))
		return Page{}, txErr
	}
	return page, nil
}

// UpdatePage applies the submitted fields to an existing page and appends an
// audit record. Missing pages yield ErrPageNotFound.
func (s *Store) UpdatePage(ctx context.Context, editorID string, pageID int64, fields PageFields) (Page, error) {
	if editorID == "" {
		return Page{}, newServiceError(opUpdatePage, "missing_editor_id", errMissingEditorID)
	}
	title, err := NewPageTitle(fields.Title)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	slug, err := NewSlug(fields.Slug)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var updated Page
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Page
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", pageID).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", ErrPageNotFound, pageID)
		}
		if err != nil {
			return newServiceError(opUpdatePage, "page_select_failed", err)
		}

		existing.ParentID = fields.ParentID
		existing.Slug = slug.String()
		existing.Title = title.String()
		existing.DisplayOrder = fields.DisplayOrder
		existing.Content = fields.Content
		existing.IsPublic = fields.IsPublic
		existing.StaffOnly = fields.StaffOnly
		existing.BannerImageRef = fields.BannerImageRef
		if fields.BannerVerticalOffset != nil {
			existing.BannerVerticalOffset = clampBannerOffset(fields.BannerVerticalOffset)
		}
		existing.UpdatedAtSeconds = s.clock().UTC().Unix()

		if err := tx.Save(&existing).Error; err != nil {
			return newServiceError(opUpdatePage, "page_save_failed", err)
		}
		updated = existing
		return s.appendChange(tx, existing, editorID, ChangeOperationUpdate)
	})
	if txErr != nil {
		if !errors.Is(txErr, ErrPageNotFound) {
			s.logError(opUpdatePage, "transaction_failed", txErr, zap.Int64("page_id", pageID))
		}
		return Page{}, txErr
	}
	return updated, nil
}

// ListChanges returns the audit trail for one page, most recent first.
func (s *Store) ListChanges(ctx context.Context, pageID int64) ([]PageChange, error) {
	var changes []PageChange
	if err := s.db.WithContext(ctx).
		Where("page_id = ?", pageID).
		Order("applied_at_s DESC").
		Find(&changes).Error; err != nil {
		s.logError(opListChanges, "query_failed", err, zap.Int64("page_id", pageID))
		return nil, newServiceError(opListChanges, "query_failed", err)
	}
	return changes, nil
}

func (s *Store) appendChange(tx *gorm.DB, page Page, editorID string, operation ChangeOperation) error {
	changeID, err := s.idProvider.NewID()
	if err != nil {
		return newServiceError(opCreatePage, "id_generation_failed", err)
	}
	change := PageChange{
		ChangeID:         changeID,
		PageID:           page.ID,
		EditorID:         editorID,
		Operation:        operation,
		AppliedAtSeconds: s.clock().UTC().Unix(),
		TitleAfter:       page.Title,
	}
	if err := tx.Create(&change).Error; err != nil {
		return newServiceError(opCreatePage, "audit_insert_failed", err)
	}
	return nil
}

func clampBannerOffset(offset *int) int {
	if offset == nil {
		return DefaultBannerVerticalOffset
	}
	if *offset < 0 {
		return 0
	}
	if *offset > 100 {
		return 100
	}
	return *offset
}

func (s *Store) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("wiki store error", attrs...)
}
