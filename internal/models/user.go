package models

import "time"

type User struct {
	ID        int64     `db:"id"`
	Username  *string   `db:"username"`
	FirstName *string   `db:"first_name"`
	LastName  *string   `db:"last_name"`
	CreatedAt time.Time `db:"created_at"`
}

// Application is a job seeker's response to a posting.
type Application struct {
	ID          int64     `db:"id"`
	JobID       int64     `db:"job_id"`
	ApplicantID int64     `db:"applicant_id"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
}

const (
	ApplicationStatusPending = "pending"
)

// NotifiedJob records that a job was already surfaced to a user.
type NotifiedJob struct {
	UserID     int64     `db:"user_id"`
	JobID      int64     `db:"job_id"`
	NotifiedAt time.Time `db:"notified_at"`
}
