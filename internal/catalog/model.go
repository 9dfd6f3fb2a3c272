// Package catalog persists the tier and ability collections and the ordered
// junction between them, plus the image and button-group lookups offered to
// the widget insertion dialog.
package catalog

import "errors"

var (
	// ErrTierNotFound indicates that no tier matches the requested id.
	ErrTierNotFound = errors.New("catalog: tier not found")
	// ErrAbilityNotFound indicates that no ability matches the requested id.
	ErrAbilityNotFound = errors.New("catalog: ability not found")
	// ErrValidation indicates that a submitted link payload is invalid.
	ErrValidation = errors.New("catalog: validation failed")
)

// Tier is a named catalog entry owning an ordered set of linked abilities.
type Tier struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;size:320;not null" json:"name"`
}

// TableName provides the explicit table binding for GORM.
func (Tier) TableName() string {
	return "tiers"
}

// Ability is a named catalog entry linkable to zero or more tiers.
type Ability struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;size:320;not null" json:"name"`
}

// TableName provides the explicit table binding for GORM.
func (Ability) TableName() string {
	return "abilities"
}

// TierAbilityLink is one persisted junction row. DisplayName denormalizes the
// ability name at link time; the (tier, ability) pair is unique.
type TierAbilityLink struct {
	TierID       int64  `gorm:"column:tier_id;primaryKey;not null" json:"tier_id"`
	AbilityID    int64  `gorm:"column:ability_id;primaryKey;not null" json:"ability_id"`
	DisplayName  string `gorm:"column:display_name;size:320;not null" json:"display_name"`
	DisplayOrder int    `gorm:"column:display_order;not null" json:"order"`
}

// TableName provides the explicit table binding for GORM.
func (TierAbilityLink) TableName() string {
	return "tier_ability_links"
}

// ImageAsset is one insertable image offered by the widget catalog.
type ImageAsset struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Label string `gorm:"column:label;size:320;not null" json:"label"`
	Ref   string `gorm:"column:ref;size:512;not null" json:"ref"`
}

// TableName provides the explicit table binding for GORM.
func (ImageAsset) TableName() string {
	return "image_assets"
}

// ButtonWidget is one insertable button group offered by the widget catalog.
type ButtonWidget struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Label string `gorm:"column:label;size:320;not null" json:"label"`
}

// TableName provides the explicit table binding for GORM.
func (ButtonWidget) TableName() string {
	return "button_widgets"
}
