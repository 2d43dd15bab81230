package models

import (
	"time"

	"github.com/google/uuid"
)

// AdmissionToken is the per-day secret encoded in the QR code faculty scan.
type AdmissionToken struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Date      time.Time `json:"date"` // civil date, midnight UTC
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
