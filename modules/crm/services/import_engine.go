package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/crm-exchange/modules/crm/domain/document"
	"github.com/iota-uz/crm-exchange/modules/crm/domain/entity"
	"github.com/iota-uz/crm-exchange/modules/crm/domain/importjob"
	"github.com/iota-uz/crm-exchange/pkg/eventbus"
)

var tracer = otel.Tracer("crm-exchange/services")

const msgImportFailed = "import failed"

type ImportConfig struct {
	CompanyScope       string
	AcceptedExtensions []string
	MaxUploadSize      int64
	SettleDelay        time.Duration
}

// ImportState is what callers render. Reload is set once a finished import
// means the entity list should be fetched again.
type ImportState struct {
	JobID           string                     `json:"job_id,omitempty"`
	Entity          string                     `json:"entity"`
	Status          importjob.Status           `json:"status"`
	Progress        int                        `json:"progress"`
	UnmappedColumns []importjob.UnmappedColumn `json:"unmapped_columns"`
	Reference       string                     `json:"reference,omitempty"`
	FileName        string                     `json:"file_name,omitempty"`
	Attempts        int                        `json:"attempts"`
	Message         string                     `json:"message,omitempty"`
	Reload          bool                       `json:"reload"`
}

// ImportEngine drives one entity's import. At most one job exists at a time and
// at most one operation runs against it.
type ImportEngine struct {
	entity    entity.Entity
	api       document.API
	publisher eventbus.EventBus
	logger    *logrus.Logger
	cfg       ImportConfig

	mu       sync.Mutex
	busy     bool
	job      *importjob.Job
	state    ImportState
	observer func(ImportState)
}

func NewImportEngine(
	e entity.Entity,
	api document.API,
	publisher eventbus.EventBus,
	logger *logrus.Logger,
	cfg ImportConfig,
) *ImportEngine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ImportEngine{
		entity:    e,
		api:       api,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		state:     ImportState{Entity: e.Name, Status: importjob.StatusIdle, UnmappedColumns: []importjob.UnmappedColumn{}},
	}
}

func (s *ImportEngine) Entity() entity.Entity {
	return s.entity
}

// Observe registers fn to receive every state change. Passing nil removes it.
func (s *ImportEngine) Observe(fn func(ImportState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

func (s *ImportEngine) Snapshot() ImportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneImportState(s.state)
}

func (s *ImportEngine) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrOperationInProgress
	}
	s.busy = true
	return nil
}

func (s *ImportEngine) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
}

// update applies fn to the job under the lock, refreshes the published state
// and notifies the observer.
func (s *ImportEngine) update(fn func(*ImportState)) ImportState {
	s.mu.Lock()
	st := ImportState{Entity: s.entity.Name, Status: importjob.StatusIdle, UnmappedColumns: []importjob.UnmappedColumn{}}
	if j := s.job; j != nil {
		st.JobID = j.ID().String()
		st.Status = j.Status()
		st.Progress = j.Progress()
		st.UnmappedColumns = j.UnmappedColumns()
		st.Reference = j.Reference()
		st.Attempts = j.Attempts()
		st.Message = j.Reason()
		if f := j.File(); f != nil {
			st.FileName = f.Name
		}
	}
	if fn != nil {
		fn(&st)
	}
	s.state = st
	observer := s.observer
	s.mu.Unlock()

	out := cloneImportState(st)
	if observer != nil {
		observer(cloneImportState(st))
	}
	return out
}

func (s *ImportEngine) withJob(fn func(j *importjob.Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return importjob.ErrNoActiveImport
	}
	return fn(s.job)
}

// BeginImport validates the file locally and submits it.
func (s *ImportEngine) BeginImport(ctx context.Context, file importjob.SourceFile) (ImportState, error) {
	if err := s.acquire(); err != nil {
		return s.Snapshot(), err
	}
	defer s.release()

	s.mu.Lock()
	active := s.job != nil && !s.job.Status().Terminal()
	s.mu.Unlock()
	if active {
		return s.Snapshot(), importjob.ErrImportInProgress
	}

	if _, err := CheckSourceFile(file, s.cfg.AcceptedExtensions, s.cfg.MaxUploadSize); err != nil {
		return s.Snapshot(), err
	}

	ctx, span := tracer.Start(ctx, "crm.import.begin", trace.WithAttributes(
		attribute.String("crm.entity", s.entity.Name),
		attribute.String("crm.file", file.Name),
		attribute.Int("crm.file_size", len(file.Data)),
	))
	defer span.End()

	job := importjob.New(s.entity.Doctype, s.cfg.CompanyScope, file)
	s.mu.Lock()
	s.job = job
	s.mu.Unlock()
	s.logger.WithFields(logrus.Fields{
		"entity": s.entity.Name,
		"job":    job.ID().String(),
		"file":   file.Name,
	}).Info("import started")

	st := s.submit(ctx)
	span.SetAttributes(attribute.String("crm.status", string(st.Status)))
	return st, nil
}

// SubmitMapping resubmits the retained file with mappings for every unmapped column.
func (s *ImportEngine) SubmitMapping(ctx context.Context, mappings map[string]string) (ImportState, error) {
	if err := s.acquire(); err != nil {
		return s.Snapshot(), err
	}
	defer s.release()

	err := s.withJob(func(j *importjob.Job) error {
		return j.ApplyMappings(mappings)
	})
	if err != nil {
		return s.Snapshot(), err
	}

	ctx, span := tracer.Start(ctx, "crm.import.submit_mapping", trace.WithAttributes(
		attribute.String("crm.entity", s.entity.Name),
		attribute.Int("crm.mappings", len(mappings)),
	))
	defer span.End()

	st := s.submit(ctx)
	span.SetAttributes(attribute.String("crm.status", string(st.Status)))
	return st, nil
}

// Cancel abandons a job waiting on mappings. No remote call is made.
func (s *ImportEngine) Cancel(ctx context.Context) (ImportState, error) {
	if err := s.acquire(); err != nil {
		return s.Snapshot(), err
	}
	defer s.release()

	var jobID string
	err := s.withJob(func(j *importjob.Job) error {
		jobID = j.ID().String()
		return j.Cancel()
	})
	if err != nil {
		return s.Snapshot(), err
	}
	st := s.update(nil)
	s.clearJob()
	importsTotal.WithLabelValues(s.entity.Name, "cancelled").Inc()
	s.logger.WithFields(logrus.Fields{"entity": s.entity.Name, "job": jobID}).Info("import cancelled")
	return st, nil
}

func (s *ImportEngine) clearJob() {
	s.mu.Lock()
	if s.job != nil {
		s.job.Release()
		s.job = nil
	}
	s.mu.Unlock()
}

// submit runs one upload round. The job is in Idle or AwaitingMapping.
func (s *ImportEngine) submit(ctx context.Context) ImportState {
	var req document.SubmitImportRequest
	err := s.withJob(func(j *importjob.Job) error {
		if err := j.StartAttempt(); err != nil {
			return err
		}
		req = document.SubmitImportRequest{
			Doctype:        j.EntityType(),
			CompanyScope:   j.CompanyScope(),
			File:           *j.File(),
			ManualMappings: j.ManualMappings(),
		}
		return nil
	})
	if err != nil {
		return s.fail(ctx, remoteMessage(err, msgImportFailed))
	}
	s.update(nil)
	importRoundsTotal.WithLabelValues(s.entity.Name).Inc()

	res, err := s.api.SubmitImport(ctx, req)
	if err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		return s.fail(ctx, remoteMessage(err, msgImportFailed))
	}

	if len(res.UnmappedColumns) > 0 {
		cols := withSuggestions(res.UnmappedColumns, s.entity.Fields)
		if err := s.withJob(func(j *importjob.Job) error { return j.AwaitMapping(cols) }); err != nil {
			return s.fail(ctx, remoteMessage(err, msgImportFailed))
		}
		s.logger.WithFields(logrus.Fields{
			"entity":   s.entity.Name,
			"unmapped": len(cols),
		}).Info("import awaiting column mapping")
		return s.update(nil)
	}

	ref := res.Reference()
	if ref == "" {
		return s.fail(ctx, importjob.ErrMissingReference.Message)
	}
	return s.finalize(ctx, ref)
}

func (s *ImportEngine) finalize(ctx context.Context, ref string) ImportState {
	if err := s.withJob(func(j *importjob.Job) error { return j.Finalize(ref) }); err != nil {
		return s.fail(ctx, remoteMessage(err, msgImportFailed))
	}
	s.update(nil)

	if err := s.api.StartImport(ctx, ref); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		return s.fail(ctx, remoteMessage(err, msgImportFailed))
	}

	var ev ImportCompleted
	err := s.withJob(func(j *importjob.Job) error {
		ev = ImportCompleted{JobID: j.ID(), Entity: s.entity.Name, Reference: ref, Attempts: j.Attempts()}
		return j.Complete()
	})
	if err != nil {
		return s.fail(ctx, remoteMessage(err, msgImportFailed))
	}
	s.update(nil)
	s.settle(ctx)

	st := s.update(func(st *ImportState) {
		st.FileName = ""
		st.Reload = true
	})
	s.clearJob()
	importsTotal.WithLabelValues(s.entity.Name, "completed").Inc()
	s.logger.WithFields(logrus.Fields{
		"entity":    s.entity.Name,
		"job":       ev.JobID.String(),
		"reference": ref,
		"attempts":  ev.Attempts,
	}).Info("import completed")
	if s.publisher != nil {
		s.publisher.Publish(&ev)
	}
	return st
}

// settle gives the remote job a moment before callers reload. A cancelled
// context cuts the wait short; cleanup still happens.
func (s *ImportEngine) settle(ctx context.Context) {
	if s.cfg.SettleDelay <= 0 {
		return
	}
	t := time.NewTimer(s.cfg.SettleDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (s *ImportEngine) fail(ctx context.Context, reason string) ImportState {
	var ev ImportFailed
	_ = s.withJob(func(j *importjob.Job) error {
		ev = ImportFailed{JobID: j.ID(), Entity: s.entity.Name, Reason: reason}
		return j.Fail(reason)
	})
	st := s.update(func(st *ImportState) {
		st.Message = reason
		st.FileName = ""
	})
	s.clearJob()

	span := trace.SpanFromContext(ctx)
	span.SetStatus(codes.Error, reason)
	importsTotal.WithLabelValues(s.entity.Name, "failed").Inc()
	s.logger.WithFields(logrus.Fields{
		"entity": s.entity.Name,
		"job":    ev.JobID.String(),
	}).Warnf("import failed: %s", reason)
	if s.publisher != nil {
		s.publisher.Publish(&ev)
	}
	return st
}

func cloneImportState(st ImportState) ImportState {
	st.UnmappedColumns = append([]importjob.UnmappedColumn{}, st.UnmappedColumns...)
	return st
}
