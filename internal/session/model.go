package session

import (
	"time"

	"gorm.io/datatypes"
)

// EntryModel is one persisted value of a session, keyed by (session_id, entry_key).
type EntryModel struct {
	SessionID string         `gorm:"column:session_id;primaryKey;size:64"`
	Key       string         `gorm:"column:entry_key;primaryKey;size:64"`
	Payload   datatypes.JSON `gorm:"column:payload"`
	UpdatedAt time.Time      `gorm:"column:updated_at;index"`
}

func (EntryModel) TableName() string { return "session_entries" }
