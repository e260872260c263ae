package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/crm-exchange/modules/crm/domain/deletebatch"
	"github.com/iota-uz/crm-exchange/modules/crm/domain/document"
	"github.com/iota-uz/crm-exchange/modules/crm/domain/entity"
	"github.com/iota-uz/crm-exchange/pkg/eventbus"
)

const (
	msgUnlinked = "linked items unlinked"
	msgDeleted  = "records deleted"
)

type DeleteState struct {
	BatchID      string                          `json:"batch_id,omitempty"`
	Entity       string                          `json:"entity"`
	Status       deletebatch.Status              `json:"status"`
	CandidateIDs []string                        `json:"candidate_ids"`
	CheckedID    string                          `json:"checked_id,omitempty"`
	LinkedItems  []deletebatch.LinkedDocumentRef `json:"linked_items"`
	Deleted      []string                        `json:"deleted"`
	FailedID     string                          `json:"failed_id,omitempty"`
	Remaining    []string                        `json:"remaining"`
	Message      string                          `json:"message,omitempty"`
	Reload       bool                            `json:"reload"`
}

// DeleteEngine removes records of one entity, resolving documents that link to
// the first selected record before anything is deleted.
//
// Operations return an error only when the requested step did not happen and
// the batch is left where it was. Terminal failures are reported through the
// returned state.
type DeleteEngine struct {
	entity    entity.Entity
	api       document.API
	publisher eventbus.EventBus
	logger    *logrus.Logger

	mu       sync.Mutex
	busy     bool
	batch    *deletebatch.Batch
	state    DeleteState
	observer func(DeleteState)
}

func NewDeleteEngine(e entity.Entity, api document.API, publisher eventbus.EventBus, logger *logrus.Logger) *DeleteEngine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DeleteEngine{
		entity:    e,
		api:       api,
		publisher: publisher,
		logger:    logger,
		state:     emptyDeleteState(e.Name),
	}
}

func emptyDeleteState(name string) DeleteState {
	return DeleteState{
		Entity:       name,
		Status:       deletebatch.StatusIdle,
		CandidateIDs: []string{},
		LinkedItems:  []deletebatch.LinkedDocumentRef{},
		Deleted:      []string{},
		Remaining:    []string{},
	}
}

func (s *DeleteEngine) Entity() entity.Entity {
	return s.entity
}

func (s *DeleteEngine) Observe(fn func(DeleteState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

func (s *DeleteEngine) Snapshot() DeleteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneDeleteState(s.state)
}

func (s *DeleteEngine) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrOperationInProgress
	}
	s.busy = true
	return nil
}

func (s *DeleteEngine) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
}

func (s *DeleteEngine) update(fn func(*DeleteState)) DeleteState {
	s.mu.Lock()
	st := emptyDeleteState(s.entity.Name)
	if b := s.batch; b != nil {
		st.BatchID = b.ID().String()
		st.Status = b.Status()
		st.CandidateIDs = b.CandidateIDs()
		st.CheckedID = b.CheckedID()
		st.LinkedItems = b.LinkedItems()
		st.Deleted = b.Deleted()
		st.Remaining = b.Remaining()
		st.Message = b.Reason()
	}
	if fn != nil {
		fn(&st)
	}
	s.state = st
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer(cloneDeleteState(st))
	}
	return cloneDeleteState(st)
}

func (s *DeleteEngine) withBatch(fn func(b *deletebatch.Batch) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch == nil {
		return deletebatch.ErrNoActiveDelete
	}
	return fn(s.batch)
}

func (s *DeleteEngine) clearBatch() {
	s.mu.Lock()
	s.batch = nil
	s.mu.Unlock()
}

func (s *DeleteEngine) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("crm.entity", s.entity.Name)))
}

// RequestDelete starts a batch. The first id is checked for linked documents;
// without any, every id is deleted right away.
func (s *DeleteEngine) RequestDelete(ctx context.Context, ids []string) (DeleteState, error) {
	if err := s.acquire(); err != nil {
		return s.Snapshot(), err
	}
	defer s.release()

	s.mu.Lock()
	active := s.batch != nil
	s.mu.Unlock()
	if active {
		return s.Snapshot(), deletebatch.ErrDeleteInProgress
	}

	batch, err := deletebatch.New(s.entity.Doctype, ids)
	if err != nil {
		return s.Snapshot(), err
	}
	if err := batch.BeginCheck(); err != nil {
		return s.Snapshot(), err
	}

	ctx, span := s.startSpan(ctx, "crm.delete.request")
	defer span.End()
	span.SetAttributes(attribute.Int("crm.records", len(batch.CandidateIDs())))

	s.mu.Lock()
	s.batch = batch
	s.mu.Unlock()
	s.update(nil)

	refs, err := s.api.GetLinkedDocs(ctx, batch.EntityType(), batch.CheckedID())
	if err != nil {
		span.RecordError(err)
		return s.fail(ctx, nil, remoteMessage(err, "failed to check linked items")), nil
	}
	if len(refs) == 0 {
		return s.deleteAll(ctx), nil
	}

	if err := s.withBatch(func(b *deletebatch.Batch) error { return b.LinkedFound(refs) }); err != nil {
		return s.Snapshot(), err
	}
	s.logger.WithFields(logrus.Fields{
		"entity": s.entity.Name,
		"id":     batch.CheckedID(),
		"linked": len(refs),
	}).Info("delete blocked by linked documents")
	return s.update(nil), nil
}

// UnlinkSelected clears the given references and checks again. The batch only
// moves on when the re-query comes back empty.
func (s *DeleteEngine) UnlinkSelected(ctx context.Context, refs []deletebatch.LinkedDocumentRef) (DeleteState, error) {
	if err := s.acquire(); err != nil {
		return s.Snapshot(), err
	}
	defer s.release()

	ctx, span := s.startSpan(ctx, "crm.delete.unlink")
	defer span.End()
	st, err := s.unlink(ctx, refs)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return st, err
}

// UnlinkAndDelete unlinks, verifies and then deletes the whole batch in one step.
func (s *DeleteEngine) UnlinkAndDelete(ctx context.Context, refs []deletebatch.LinkedDocumentRef) (DeleteState, error) {
	if err := s.acquire(); err != nil {
		return s.Snapshot(), err
	}
	defer s.release()

	ctx, span := s.startSpan(ctx, "crm.delete.unlink_and_delete")
	defer span.End()
	st, err := s.unlink(ctx, refs)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return st, err
	}
	return s.deleteAll(ctx), nil
}

// ConfirmDelete runs the delete loop after a verified unlink.
func (s *DeleteEngine) ConfirmDelete(ctx context.Context) (DeleteState, error) {
	if err := s.acquire(); err != nil {
		return s.Snapshot(), err
	}
	defer s.release()

	err := s.withBatch(func(b *deletebatch.Batch) error {
		if b.Status() != deletebatch.StatusAwaitingFinalDeleteConfirm {
			return deletebatch.ErrInvalidTransition.WithMessage("nothing to confirm (status %s)", b.Status())
		}
		return nil
	})
	if err != nil {
		return s.Snapshot(), err
	}

	ctx, span := s.startSpan(ctx, "crm.delete.confirm")
	defer span.End()
	return s.deleteAll(ctx), nil
}

// Cancel drops the batch while it waits on a decision. No remote call is made.
func (s *DeleteEngine) Cancel(ctx context.Context) (DeleteState, error) {
	if err := s.acquire(); err != nil {
		return s.Snapshot(), err
	}
	defer s.release()

	if err := s.withBatch(func(b *deletebatch.Batch) error { return b.Cancel() }); err != nil {
		return s.Snapshot(), err
	}
	s.clearBatch()
	deleteBatchesTotal.WithLabelValues(s.entity.Name, "cancelled").Inc()
	s.logger.WithField("entity", s.entity.Name).Info("delete cancelled")
	return s.update(nil), nil
}

func (s *DeleteEngine) unlink(ctx context.Context, refs []deletebatch.LinkedDocumentRef) (DeleteState, error) {
	if len(refs) == 0 {
		return s.Snapshot(), ErrNoLinkedItems
	}
	var (
		doctype string
		docname string
	)
	err := s.withBatch(func(b *deletebatch.Batch) error {
		doctype, docname = b.EntityType(), b.CheckedID()
		return b.BeginUnlink()
	})
	if err != nil {
		return s.Snapshot(), err
	}
	s.update(nil)

	if err := s.api.RemoveLinkedDocRefs(ctx, refs); err != nil {
		return s.unlinkIncomplete(nil, fmt.Errorf("%w: %s", deletebatch.ErrUnlinkIncomplete, remoteMessage(err, "unlink failed")))
	}

	remaining, err := s.api.GetLinkedDocs(ctx, doctype, docname)
	if err != nil {
		return s.unlinkIncomplete(nil, fmt.Errorf("%w: %s", deletebatch.ErrUnlinkIncomplete, remoteMessage(err, "verification failed")))
	}
	if len(remaining) > 0 {
		s.logger.WithFields(logrus.Fields{
			"entity":    s.entity.Name,
			"id":        docname,
			"remaining": len(remaining),
		}).Warn("unlink left references behind")
		return s.unlinkIncomplete(remaining, deletebatch.ErrUnlinkIncomplete)
	}

	if err := s.withBatch(func(b *deletebatch.Batch) error { return b.UnlinkVerified() }); err != nil {
		return s.Snapshot(), err
	}
	s.logger.WithFields(logrus.Fields{"entity": s.entity.Name, "id": docname}).Info(msgUnlinked)
	return s.update(func(st *DeleteState) { st.Message = msgUnlinked }), nil
}

func (s *DeleteEngine) unlinkIncomplete(remaining []deletebatch.LinkedDocumentRef, cause error) (DeleteState, error) {
	if err := s.withBatch(func(b *deletebatch.Batch) error { return b.UnlinkIncomplete(remaining) }); err != nil {
		return s.Snapshot(), err
	}
	return s.update(func(st *DeleteState) { st.Message = cause.Error() }), cause
}

// deleteAll deletes candidates one by one and stops at the first failure.
// Nothing already deleted is restored.
func (s *DeleteEngine) deleteAll(ctx context.Context) DeleteState {
	var (
		doctype string
		ids     []string
	)
	err := s.withBatch(func(b *deletebatch.Batch) error {
		doctype, ids = b.EntityType(), b.CandidateIDs()
		return b.BeginDelete()
	})
	if err != nil {
		return s.fail(ctx, nil, err.Error())
	}
	s.update(nil)

	for _, id := range ids {
		if err := s.api.DeleteDoc(ctx, doctype, id); err != nil {
			trace.SpanFromContext(ctx).RecordError(err)
			var delErr *DeleteError
			_ = s.withBatch(func(b *deletebatch.Batch) error {
				delErr = &DeleteError{Deleted: b.Deleted(), FailedID: id, Remaining: b.Remaining(), Err: err}
				return nil
			})
			return s.fail(ctx, delErr, delErr.Error())
		}
		if err := s.withBatch(func(b *deletebatch.Batch) error { return b.RecordDeleted(id) }); err != nil {
			return s.fail(ctx, nil, err.Error())
		}
		recordsDeletedTotal.WithLabelValues(s.entity.Name).Inc()
		s.update(nil)
	}

	var ev DeleteCompleted
	err = s.withBatch(func(b *deletebatch.Batch) error {
		ev = DeleteCompleted{BatchID: b.ID(), Entity: s.entity.Name, Deleted: b.Deleted()}
		return b.Complete()
	})
	if err != nil {
		return s.fail(ctx, nil, err.Error())
	}
	st := s.update(func(st *DeleteState) {
		st.Message = msgDeleted
		st.Reload = true
	})
	s.clearBatch()
	deleteBatchesTotal.WithLabelValues(s.entity.Name, "completed").Inc()
	s.logger.WithFields(logrus.Fields{
		"entity":  s.entity.Name,
		"deleted": len(ev.Deleted),
	}).Info("delete completed")
	if s.publisher != nil {
		s.publisher.Publish(&ev)
	}
	return st
}

func (s *DeleteEngine) fail(ctx context.Context, delErr *DeleteError, reason string) DeleteState {
	ev := DeleteFailed{Entity: s.entity.Name, Reason: reason}
	_ = s.withBatch(func(b *deletebatch.Batch) error {
		ev.BatchID = b.ID()
		ev.Deleted = b.Deleted()
		return b.Fail(reason)
	})
	if delErr != nil {
		ev.FailedID = delErr.FailedID
	}
	st := s.update(func(st *DeleteState) {
		st.Message = reason
		st.FailedID = ev.FailedID
		// anything deleted before the failure still needs a list refresh
		st.Reload = len(st.Deleted) > 0
	})
	s.clearBatch()

	trace.SpanFromContext(ctx).SetStatus(codes.Error, reason)
	deleteBatchesTotal.WithLabelValues(s.entity.Name, "failed").Inc()
	entry := s.logger.WithFields(logrus.Fields{"entity": s.entity.Name, "deleted": len(ev.Deleted)})
	if delErr != nil && errors.Is(delErr.Err, document.ErrLinkedDocuments) {
		entry = entry.WithField("linked", true)
	}
	entry.Warnf("delete failed: %s", reason)
	if s.publisher != nil {
		s.publisher.Publish(&ev)
	}
	return st
}

func cloneDeleteState(st DeleteState) DeleteState {
	st.CandidateIDs = append([]string{}, st.CandidateIDs...)
	st.LinkedItems = append([]deletebatch.LinkedDocumentRef{}, st.LinkedItems...)
	st.Deleted = append([]string{}, st.Deleted...)
	st.Remaining = append([]string{}, st.Remaining...)
	return st
}
