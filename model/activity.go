package model

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog records XP-relevant user actions performed through the BFF.
type ActivityLog struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID   string         `gorm:"index:idx_activity_trace;size:36" json:"trace_id"`
	SessionID string         `gorm:"size:36" json:"session_id"`
	UserID    string         `gorm:"index:idx_activity_user;size:64;not null" json:"user_id"`
	Action    string         `gorm:"size:64;not null" json:"action"`
	Pillar    string         `gorm:"size:32" json:"pillar,omitempty"`
	XP        int            `json:"xp"`
	Payload   datatypes.JSON `json:"payload,omitempty"`
	Error     string         `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time      `gorm:"index:idx_activity_created" json:"created_at"`
}
