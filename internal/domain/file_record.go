package domain

import (
	"time"
)

// FileRecord represents one tracked file in the migration table.
// A record is created by the ingestion side with Moved=false and is
// flipped to Moved=true exactly once, after a verified move; it is
// never reset.
type FileRecord struct {
	ID          string     `gorm:"type:text;primaryKey" json:"id"`
	CreatedDate time.Time  `gorm:"column:created_date;not null;index:idx_file_records_created_date" json:"created_date"`
	DisplayName string     `gorm:"type:text;not null" json:"display_name"`
	Moved       bool       `gorm:"not null;default:false;index:idx_file_records_moved" json:"moved"`
	MovedAt     *time.Time `gorm:"column:moved_at" json:"moved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for FileRecord.
func (FileRecord) TableName() string {
	return "file_records"
}

// DateDir returns the date-partition directory name (YYYYMMDD) derived
// from the record's creation date in local time.
func (r *FileRecord) DateDir() string {
	return r.CreatedDate.Local().Format("20060102")
}
