package users

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allanon74/kor35-app-sub002/internal/auth"
	"gorm.io/gorm"
)

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// Editor is the resolved view of an authenticated editor.
type Editor struct {
	UserID      string
	DisplayName string
	IsStaff     bool
}

// ServiceConfig describes the dependencies required for editor resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service manages persisted editor identities and their staff capability.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	cache sync.Map
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:    cfg.Database,
		now:   clock,
		cache: sync.Map{},
	}, nil
}

// ResolveEditor returns the persisted editor for the provided session claims,
// creating the identity on first sight. Token roles seed the staff flag only
// at creation; afterwards the stored flag wins.
func (s *Service) ResolveEditor(claims auth.SessionClaims) (Editor, error) {
	subject := normalize(claims.Subject)
	if subject == "" {
		return Editor{}, ErrInvalidIdentity
	}

	if cached, ok := s.cache.Load(subject); ok {
		if editor, ok := cached.(Editor); ok {
			return editor, nil
		}
	}

	var identity Identity
	err := s.db.Where("user_id = ?", subject).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		identity = Identity{
			UserID:      subject,
			Email:       normalize(claims.Email),
			DisplayName: normalize(claims.DisplayName),
			IsStaff:     claims.IsStaff(),
			LastSeenAt:  s.now(),
		}
		if err := s.db.Create(&identity).Error; err != nil {
			return Editor{}, err
		}
	} else if err != nil {
		return Editor{}, err
	} else {
		updates := map[string]interface{}{}
		if email := normalize(claims.Email); email != "" && email != identity.Email {
			updates["user_email"] = email
		}
		if display := normalize(claims.DisplayName); display != "" && display != identity.DisplayName {
			updates["user_display_name"] = display
		}
		updates["last_seen_at"] = s.now()
		if len(updates) > 0 {
			_ = s.db.Model(&Identity{}).
				Where("user_id = ?", subject).
				Updates(updates).
				Error
		}
	}

	editor := Editor{
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		IsStaff:     identity.IsStaff,
	}
	s.cache.Store(subject, editor)
	return editor, nil
}
