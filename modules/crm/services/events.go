package services

import "github.com/google/uuid"

// ImportCompleted is published once the remote job has been started and the
// settle delay has passed; subscribers reload the entity list.
type ImportCompleted struct {
	JobID     uuid.UUID
	Entity    string
	Reference string
	Attempts  int
}

type ImportFailed struct {
	JobID  uuid.UUID
	Entity string
	Reason string
}

type DeleteCompleted struct {
	BatchID uuid.UUID
	Entity  string
	Deleted []string
}

type DeleteFailed struct {
	BatchID  uuid.UUID
	Entity   string
	Deleted  []string
	FailedID string
	Reason   string
}
