package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckInStatusPresent is the only status a scan can produce.
const CheckInStatusPresent = "present"

// CheckIn records one participant's admission on one date.
type CheckIn struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	TokenID   uuid.UUID `json:"token_id"`
	Date      time.Time `json:"date"`
	ScannedAt time.Time `json:"scanned_at"` // UTC
	Status    string    `json:"status"`
}

// CheckInRow is a check-in joined with the participant it belongs to.
type CheckInRow struct {
	CheckIn
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	Department string `json:"department"`
}
