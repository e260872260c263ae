package deletebatch

import (
	"strings"

	"github.com/google/uuid"
)

type Status string

const (
	StatusIdle                       Status = "idle"
	StatusChecking                   Status = "checking"
	StatusDeleting                   Status = "deleting"
	StatusAwaitingLinkedItemDecision Status = "awaiting_linked_item_decision"
	StatusUnlinking                  Status = "unlinking"
	StatusAwaitingFinalDeleteConfirm Status = "awaiting_final_delete_confirm"
	StatusCompleted                  Status = "completed"
	StatusFailed                     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// LinkedDocumentRef is a document that references the record being deleted.
type LinkedDocumentRef struct {
	ReferenceDoctype string `json:"reference_doctype"`
	ReferenceDocname string `json:"reference_docname"`
}

// Batch is one delete request. Only the first id is checked for linked documents.
type Batch struct {
	id          uuid.UUID
	entityType  string
	ids         []string
	linkedItems []LinkedDocumentRef
	deleted     []string
	status      Status
	reason      string
}

func New(entityType string, ids []string) (*Batch, error) {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return nil, ErrNoRecordsSelected
	}
	return &Batch{
		id:         uuid.New(),
		entityType: entityType,
		ids:        clean,
		status:     StatusIdle,
	}, nil
}

func (b *Batch) ID() uuid.UUID      { return b.id }
func (b *Batch) EntityType() string { return b.entityType }
func (b *Batch) Status() Status     { return b.status }
func (b *Batch) Reason() string     { return b.reason }
func (b *Batch) CheckedID() string  { return b.ids[0] }

func (b *Batch) CandidateIDs() []string {
	return append([]string(nil), b.ids...)
}

func (b *Batch) LinkedItems() []LinkedDocumentRef {
	return append([]LinkedDocumentRef(nil), b.linkedItems...)
}

func (b *Batch) Deleted() []string {
	return append([]string(nil), b.deleted...)
}

// Remaining lists candidates not yet deleted, in order.
func (b *Batch) Remaining() []string {
	return append([]string(nil), b.ids[len(b.deleted):]...)
}

func (b *Batch) transition(from []Status, to Status) error {
	for _, s := range from {
		if b.status == s {
			b.status = to
			return nil
		}
	}
	return ErrInvalidTransition.WithMessage("delete batch cannot move from %s to %s", b.status, to)
}

func (b *Batch) BeginCheck() error {
	return b.transition([]Status{StatusIdle}, StatusChecking)
}

// LinkedFound records the references found for the checked id.
func (b *Batch) LinkedFound(refs []LinkedDocumentRef) error {
	if len(refs) == 0 {
		return ErrInvalidTransition.WithMessage("linked found: empty reference set")
	}
	if err := b.transition([]Status{StatusChecking}, StatusAwaitingLinkedItemDecision); err != nil {
		return err
	}
	b.linkedItems = append([]LinkedDocumentRef(nil), refs...)
	return nil
}

func (b *Batch) BeginUnlink() error {
	return b.transition([]Status{StatusAwaitingLinkedItemDecision}, StatusUnlinking)
}

// UnlinkVerified is called once a re-query found no remaining references.
func (b *Batch) UnlinkVerified() error {
	if err := b.transition([]Status{StatusUnlinking}, StatusAwaitingFinalDeleteConfirm); err != nil {
		return err
	}
	b.linkedItems = nil
	return nil
}

// UnlinkIncomplete returns to the decision state with whatever still references the record.
func (b *Batch) UnlinkIncomplete(remaining []LinkedDocumentRef) error {
	if err := b.transition([]Status{StatusUnlinking}, StatusAwaitingLinkedItemDecision); err != nil {
		return err
	}
	if remaining != nil {
		b.linkedItems = append([]LinkedDocumentRef(nil), remaining...)
	}
	return nil
}

// BeginDelete is allowed straight after a clean check or after a verified unlink.
// Combined unlink-and-delete also passes through AwaitingFinalDeleteConfirm first.
func (b *Batch) BeginDelete() error {
	if len(b.linkedItems) > 0 {
		return ErrUnresolvedLinks
	}
	return b.transition([]Status{StatusChecking, StatusAwaitingFinalDeleteConfirm}, StatusDeleting)
}

func (b *Batch) RecordDeleted(id string) error {
	if b.status != StatusDeleting {
		return ErrInvalidTransition.WithMessage("record deleted outside of deleting (status %s)", b.status)
	}
	if next := len(b.deleted); next >= len(b.ids) || b.ids[next] != id {
		return ErrInvalidTransition.WithMessage("unexpected deleted id %q", id)
	}
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *Batch) Complete() error {
	return b.transition([]Status{StatusDeleting}, StatusCompleted)
}

func (b *Batch) Fail(reason string) error {
	if b.status.Terminal() || b.status == StatusIdle {
		return ErrInvalidTransition.WithMessage("delete batch cannot fail from %s", b.status)
	}
	b.status = StatusFailed
	b.reason = reason
	b.linkedItems = nil
	return nil
}

// Cancel discards the batch; it is only possible while waiting on the user.
func (b *Batch) Cancel() error {
	if err := b.transition(
		[]Status{StatusAwaitingLinkedItemDecision, StatusAwaitingFinalDeleteConfirm},
		StatusIdle,
	); err != nil {
		return ErrCancelNotAllowed.WithMessage("delete can only be cancelled while awaiting a decision (status %s)", b.status)
	}
	b.linkedItems = nil
	return nil
}
