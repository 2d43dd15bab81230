package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus for report delivery.
const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)

// DeliveryRecord logs one attempt to email the daily attendance report.
type DeliveryRecord struct {
	ID           uuid.UUID `json:"id"`
	Date         time.Time `json:"date"`
	Recipients   []string  `json:"recipients"`
	Subject      string    `json:"subject"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ArchiveKey   string    `json:"archive_key,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
