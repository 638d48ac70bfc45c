package model

import (
	"time"

	"gorm.io/datatypes"
)

// Session is one signed-in browser or CLI. The upstream bearer token is
// stored sealed; Profile caches the last /auth/me snapshot.
type Session struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	UserID        string         `gorm:"index:idx_session_user;size:64;not null" json:"user_id"`
	SealedToken   []byte         `gorm:"not null" json:"-"`
	Profile       datatypes.JSON `json:"profile"`
	JustOnboarded bool           `gorm:"not null;default:false" json:"just_onboarded"`
	ExpiresAt     time.Time      `gorm:"index:idx_session_expires;not null" json:"expires_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
