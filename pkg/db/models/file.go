package models

import (
	"time"
)

// FileRecord is one observed content state of a file under the watch root.
// Rows are appended per (path, content hash); a path accumulates history.
type FileRecord struct {
	ID          uint   `gorm:"primaryKey"`
	Path        string `gorm:"type:text;not null;index:idx_path_hash,priority:1"`
	ContentHash string `gorm:"type:varchar(64);not null;index:idx_path_hash,priority:2"`

	// File metadata
	Owner       string  `gorm:"type:text"`
	Group       string  `gorm:"column:group_name;type:text"`
	Size        int64   `gorm:"not null"`
	Permissions string  `gorm:"type:varchar(8)"`
	MediaType   *string `gorm:"type:text"`

	// Delivery state
	Delivered   bool `gorm:"not null;default:false"`
	DeliveredAt *time.Time

	// Timestamps
	ModifiedAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Patch holds the non-hash columns that may be corrected in place.
type Patch struct {
	Owner       string
	Group       string
	Size        int64
	Permissions string
	MediaType   *string
	ModifiedAt  time.Time
	Delivered   bool
	DeliveredAt *time.Time
}

// Columns maps the patch onto column names so zero values are written too.
func (p Patch) Columns() map[string]any {
	return map[string]any{
		"owner":        p.Owner,
		"group_name":   p.Group,
		"size":         p.Size,
		"permissions":  p.Permissions,
		"media_type":   p.MediaType,
		"modified_at":  p.ModifiedAt,
		"delivered":    p.Delivered,
		"delivered_at": p.DeliveredAt,
	}
}
