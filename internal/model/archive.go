package model

import (
	"time"

	"github.com/dukerupert/messledger/internal/month"
)

type ArchiveStatus string

const (
	ArchivePending   ArchiveStatus = "pending"
	ArchiveUploading ArchiveStatus = "uploading"
	ArchiveCompleted ArchiveStatus = "completed"
	ArchiveFailed    ArchiveStatus = "failed"
)

// ReportArchive tracks one encrypted upload of a closed report.
type ReportArchive struct {
	ID           int64         `json:"id"`
	Month        month.Key     `json:"month"`
	ObjectKey    string        `json:"object_key"`
	SizeBytes    int64         `json:"size_bytes"`
	Status       ArchiveStatus `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
