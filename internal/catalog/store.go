package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/allanon74/kor35-app-sub002/internal/relation"
	"github.com/allanon74/kor35-app-sub002/internal/widget"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
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
	opStoreNew         = "catalog.store.new"
	opListTiers        = "catalog.list_tiers"
	opListAbilities    = "catalog.list_abilities"
	opGetAbility       = "catalog.get_ability"
	opListWidgets      = "catalog.list_widget_targets"
	opListTierLinks    = "catalog.list_tier_links"
	opReplaceTierLinks = "catalog.replace_tier_links"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// StoreConfig describes the dependencies required by the catalog store.
type StoreConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Store persists tiers, abilities, their junction rows and the widget lookup
// collections.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore constructs a catalog store from its configuration.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opStoreNew, "missing_database", errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{db: cfg.Database, logger: logger}, nil
}

// ListTiers returns all tiers in stable id order.
func (s *Store) ListTiers(ctx context.Context) ([]Tier, error) {
	var tiers []Tier
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&tiers).Error; err != nil {
		s.logError(opListTiers, "query_failed", err)
		return nil, newServiceError(opListTiers, "query_failed", err)
	}
	return tiers, nil
}

// ListAbilities returns all abilities in stable id order.
func (s *Store) ListAbilities(ctx context.Context) ([]Ability, error) {
	var abilities []Ability
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&abilities).Error; err != nil {
		s.logError(opListAbilities, "query_failed", err)
		return nil, newServiceError(opListAbilities, "query_failed", err)
	}
	return abilities, nil
}

// GetAbility returns the ability with the given id, or ErrAbilityNotFound.
func (s *Store) GetAbility(ctx context.Context, abilityID int64) (Ability, error) {
	var ability Ability
	err := s.db.WithContext(ctx).Where("id = ?", abilityID).Take(&ability).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Ability{}, fmt.Errorf("%w: id %d", ErrAbilityNotFound, abilityID)
	}
	if err != nil {
		s.logError(opGetAbility, "query_failed", err, zap.Int64("ability_id", abilityID))
		return Ability{}, newServiceError(opGetAbility, "query_failed", err)
	}
	return ability, nil
}

// ListImages returns all insertable image assets in stable id order.
func (s *Store) ListImages(ctx context.Context) ([]ImageAsset, error) {
	var images []ImageAsset
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&images).Error; err != nil {
		s.logError(opListWidgets, "query_failed", err)
		return nil, newServiceError(opListWidgets, "query_failed", err)
	}
	return images, nil
}

// ListButtonWidgets returns all insertable button groups in stable id order.
func (s *Store) ListButtonWidgets(ctx context.Context) ([]ButtonWidget, error) {
	var buttons []ButtonWidget
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&buttons).Error; err != nil {
		s.logError(opListWidgets, "query_failed", err)
		return nil, newServiceError(opListWidgets, "query_failed", err)
	}
	return buttons, nil
}

// List implements widget.CatalogLister: the insertable targets per widget
// kind, in stable id order.
func (s *Store) List(ctx context.Context, kind widget.Kind) ([]widget.CatalogEntry, error) {
	switch kind {
	case widget.KindTier:
		tiers, err := s.ListTiers(ctx)
		if err != nil {
			return nil, err
		}
		entries := make([]widget.CatalogEntry, 0, len(tiers))
		for _, tier := range tiers {
			entries = append(entries, widget.CatalogEntry{ID: tier.ID, Label: tier.Name})
		}
		return entries, nil
	case widget.KindImage:
		images, err := s.ListImages(ctx)
		if err != nil {
			return nil, err
		}
		entries := make([]widget.CatalogEntry, 0, len(images))
		for _, image := range images {
			entries = append(entries, widget.CatalogEntry{ID: image.ID, Label: image.Label})
		}
		return entries, nil
	case widget.KindButtons:
		buttons, err := s.ListButtonWidgets(ctx)
		if err != nil {
			return nil, err
		}
		entries := make([]widget.CatalogEntry, 0, len(buttons))
		for _, button := range buttons {
			entries = append(entries, widget.CatalogEntry{ID: button.ID, Label: button.Label})
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("%w: %q", widget.ErrUnknownKind, kind)
	}
}

// ListTierLinks returns the persisted link set for one tier, ascending by
// display order.
func (s *Store) ListTierLinks(ctx context.Context, tierID int64) ([]TierAbilityLink, error) {
	var links []TierAbilityLink
	if err := s.db.WithContext(ctx).
		Where("tier_id = ?", tierID).
		Order("display_order ASC").
		Find(&links).Error; err != nil {
		s.logError(opListTierLinks, "query_failed", err, zap.Int64("tier_id", tierID))
		return nil, newServiceError(opListTierLinks, "query_failed", err)
	}
	return links, nil
}

// ReplaceTierLinks atomically replaces the tier's entire link set with the
// submitted payload. Display names are refreshed from the ability catalog
// inside the same transaction; a duplicate ability in the payload or an
// unresolvable id fails validation before anything is written.
func (s *Store) ReplaceTierLinks(ctx context.Context, tierID int64, payload []relation.LinkPayload) error {
	seen := make(map[int64]bool, len(payload))
	for _, link := range payload {
		if seen[link.AbilityID] {
			return fmt.Errorf("%w: duplicate ability id %d", ErrValidation, link.AbilityID)
		}
		seen[link.AbilityID] = true
	}

	ordered := make([]relation.LinkPayload, len(payload))
	copy(ordered, payload)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Order < ordered[j].Order
	})

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tier Tier
		err := tx.Where("id = ?", tierID).Take(&tier).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", ErrTierNotFound, tierID)
		}
		if err != nil {
			return newServiceError(opReplaceTierLinks, "tier_select_failed", err)
		}

		rows := make([]TierAbilityLink, 0, len(ordered))
		for _, link := range ordered {
			var ability Ability
			err := tx.Where("id = ?", link.AbilityID).Take(&ability).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrAbilityNotFound, link.AbilityID)
			}
			if err != nil {
				return newServiceError(opReplaceTierLinks, "ability_select_failed", err)
			}
			rows = append(rows, TierAbilityLink{
				TierID:       tierID,
				AbilityID:    link.AbilityID,
				DisplayName:  ability.Name,
				DisplayOrder: link.Order,
			})
		}

		if err := tx.Where("tier_id = ?", tierID).Delete(&TierAbilityLink{}).Error; err != nil {
			return newServiceError(opReplaceTierLinks, "link_delete_failed", err)
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return newServiceError(opReplaceTierLinks, "link_insert_failed", err)
			}
		}
		return nil
	})
	if txErr != nil {
		if !errors.Is(txErr, ErrTierNotFound) && !errors.Is(txErr, ErrAbilityNotFound) {
			s.logError(opReplaceTierLinks, "transaction_failed", txErr, zap.Int64("tier_id", tierID))
		}
		return txErr
	}
	return nil
}

// AbilityNames loads the full ability catalog as a relation.NameLookup for
// hydrating an editor session.
func (s *Store) AbilityNames(ctx context.Context) (relation.NameLookup, error) {
	abilities, err := s.ListAbilities(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(abilities))
	for _, ability := range abilities {
		names[ability.ID] = ability.Name
	}
	return func(abilityID int64) (string, bool) {
		name, ok := names[abilityID]
		return name, ok
	}, nil
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
	s.loggerOrDefault().Error("catalog store error", attrs...)
}
