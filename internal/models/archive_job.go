package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Platform identifies a supported forum community.
type Platform string

const (
	PlatformEAForum   Platform = "ea-forum"
	PlatformLessWrong Platform = "lesswrong"
)

// Valid reports whether p belongs to the supported platform set.
func (p Platform) Valid() bool {
	return p == PlatformEAForum || p == PlatformLessWrong
}

// JobStatus captures archive job lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ArchiveJob is one user request to archive a username across platforms.
type ArchiveJob struct {
	ID             string       `db:"id" json:"id"`
	UserID         string       `db:"user_id" json:"userId"`
	Username       string       `db:"username" json:"username"`
	Platforms      PlatformList `db:"platforms" json:"platforms"`
	Status         JobStatus    `db:"status" json:"status"`
	ProcessedItems *int         `db:"processed_items" json:"processedItems,omitempty"`
	TotalItems     *int         `db:"total_items" json:"totalItems,omitempty"`
	ErrorMessage   *string      `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"createdAt"`
	CompletedAt    *time.Time   `db:"completed_at" json:"completedAt,omitempty"`
}

// PlatformList is the ordered platform selection persisted as JSONB.
type PlatformList []Platform

// Value marshals the list to JSON for persistence.
func (l PlatformList) Value() (driver.Value, error) {
	if l == nil {
		l = PlatformList{}
	}
	data, err := json.Marshal([]Platform(l))
	if err != nil {
		return nil, fmt.Errorf("marshal platform list: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the list.
func (l *PlatformList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for PlatformList", value)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	var out []Platform
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal platform list: %w", err)
	}
	*l = out
	return nil
}
