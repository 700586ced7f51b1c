package model

import "time"

// JobStatus は求人の募集状態を表す。
type JobStatus string

const (
	// JobStatusActive は募集中。
	JobStatusActive JobStatus = "active"
	// JobStatusInactive は募集終了。
	JobStatusInactive JobStatus = "inactive"
)

// Job は企業が掲載する求人を表す。
type Job struct {
	ID          string
	EmployerID  string
	Title       string
	Description string
	Skills      []string
	Status      JobStatus
	CreatedAt   time.Time
}
