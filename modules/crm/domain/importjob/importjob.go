package importjob

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

type Status string

const (
	StatusIdle            Status = "idle"
	StatusUploading       Status = "uploading"
	StatusAwaitingMapping Status = "awaiting_mapping"
	StatusFinalizing      Status = "finalizing"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

const (
	ProgressUploading  = 20
	ProgressFinalizing = 60
	ProgressCompleted  = 100
)

// UnmappedColumn is a source column the remote service could not associate with a field.
type UnmappedColumn struct {
	ColumnName     string  `json:"column_name"`
	SuggestedField *string `json:"suggested_field"`
}

// SourceFile is the raw tabular upload.
type SourceFile struct {
	Name string
	Data []byte
}

// Job is one in-flight bulk-create attempt. It owns the source file until it
// terminates; after that File returns nil.
type Job struct {
	id             uuid.UUID
	entityType     string
	companyScope   string
	file           *SourceFile
	manualMappings map[string]string
	unmapped       []UnmappedColumn
	reference      string
	progress       int
	status         Status
	attempts       int
	reason         string
}

func New(entityType, companyScope string, file SourceFile) *Job {
	return &Job{
		id:             uuid.New(),
		entityType:     entityType,
		companyScope:   companyScope,
		file:           &file,
		manualMappings: map[string]string{},
		status:         StatusIdle,
	}
}

func (j *Job) ID() uuid.UUID        { return j.id }
func (j *Job) EntityType() string   { return j.entityType }
func (j *Job) CompanyScope() string { return j.companyScope }
func (j *Job) Status() Status       { return j.status }
func (j *Job) Progress() int        { return j.progress }
func (j *Job) Reference() string    { return j.reference }
func (j *Job) Attempts() int        { return j.attempts }
func (j *Job) Reason() string       { return j.reason }
func (j *Job) File() *SourceFile    { return j.file }
func (j *Job) ManualMappings() map[string]string {
	out := make(map[string]string, len(j.manualMappings))
	for k, v := range j.manualMappings {
		out[k] = v
	}
	return out
}

func (j *Job) UnmappedColumns() []UnmappedColumn {
	out := make([]UnmappedColumn, len(j.unmapped))
	copy(out, j.unmapped)
	return out
}

func (j *Job) transition(from []Status, to Status) error {
	for _, s := range from {
		if j.status == s {
			j.status = to
			return nil
		}
	}
	return ErrInvalidTransition.WithMessage("import job cannot move from %s to %s", j.status, to)
}

// raise moves progress forward; it never goes backwards.
func (j *Job) raise(p int) {
	if p > j.progress {
		j.progress = p
	}
}

// StartAttempt begins a submission round: progress restarts and climbs to 20.
func (j *Job) StartAttempt() error {
	if j.file == nil {
		return ErrFileReleased
	}
	if err := j.transition([]Status{StatusIdle, StatusAwaitingMapping}, StatusUploading); err != nil {
		return err
	}
	j.attempts++
	j.progress = 0
	j.reason = ""
	j.raise(ProgressUploading)
	return nil
}

// AwaitMapping replaces the unmapped set and drops any previously supplied mappings.
// The file stays attached for the resubmission.
func (j *Job) AwaitMapping(columns []UnmappedColumn) error {
	if len(columns) == 0 {
		return fmt.Errorf("await mapping: no unmapped columns")
	}
	if err := j.transition([]Status{StatusUploading}, StatusAwaitingMapping); err != nil {
		return err
	}
	j.unmapped = make([]UnmappedColumn, 0, len(columns))
	for _, col := range columns {
		col.ColumnName = strings.TrimSpace(col.ColumnName)
		j.unmapped = append(j.unmapped, col)
	}
	j.manualMappings = map[string]string{}
	j.progress = 0
	return nil
}

// ValidateMappings checks that mappings covers exactly the outstanding unmapped columns.
// Column names are compared with surrounding whitespace removed.
func (j *Job) ValidateMappings(mappings map[string]string) error {
	if j.status != StatusAwaitingMapping {
		return ErrInvalidTransition.WithMessage("mappings can only be submitted while awaiting mapping (status %s)", j.status)
	}
	mappings = trimKeys(mappings)
	var missing []string
	for _, col := range j.unmapped {
		if strings.TrimSpace(mappings[col.ColumnName]) == "" {
			missing = append(missing, col.ColumnName)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return ErrMissingMappings.WithMessage("please map all unmapped columns: %s", strings.Join(missing, ", "))
	}
	if len(mappings) != len(j.unmapped) {
		return ErrMissingMappings.WithMessage("expected %d column mapping(s), got %d", len(j.unmapped), len(mappings))
	}
	return nil
}

// ApplyMappings stores validated mappings for the next submission.
func (j *Job) ApplyMappings(mappings map[string]string) error {
	if err := j.ValidateMappings(mappings); err != nil {
		return err
	}
	j.manualMappings = make(map[string]string, len(mappings))
	for k, v := range mappings {
		j.manualMappings[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return nil
}

func trimKeys(mappings map[string]string) map[string]string {
	out := make(map[string]string, len(mappings))
	for k, v := range mappings {
		out[strings.TrimSpace(k)] = v
	}
	return out
}

func (j *Job) Finalize(reference string) error {
	if strings.TrimSpace(reference) == "" {
		return ErrMissingReference
	}
	if err := j.transition([]Status{StatusUploading}, StatusFinalizing); err != nil {
		return err
	}
	j.reference = reference
	j.unmapped = nil
	j.raise(ProgressFinalizing)
	return nil
}

func (j *Job) Complete() error {
	if err := j.transition([]Status{StatusFinalizing}, StatusCompleted); err != nil {
		return err
	}
	j.raise(ProgressCompleted)
	return nil
}

func (j *Job) Fail(reason string) error {
	if j.status.Terminal() {
		return ErrInvalidTransition.WithMessage("import job already %s", j.status)
	}
	j.status = StatusFailed
	j.reason = reason
	return nil
}

func (j *Job) Cancel() error {
	if j.status != StatusAwaitingMapping {
		return ErrCancelNotAllowed.WithMessage("import can only be cancelled while awaiting mapping (status %s)", j.status)
	}
	j.status = StatusCancelled
	j.Release()
	return nil
}

// Release drops the source file and mapping state.
func (j *Job) Release() {
	j.file = nil
	j.manualMappings = map[string]string{}
	j.unmapped = nil
}
