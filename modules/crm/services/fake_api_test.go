package services

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/crm-exchange/modules/crm/domain/deletebatch"
	"github.com/iota-uz/crm-exchange/modules/crm/domain/document"
	"github.com/iota-uz/crm-exchange/modules/crm/domain/entity"
)

type submitReply struct {
	res document.SubmitImportResult
	err error
}

type fakeAPI struct {
	mu sync.Mutex

	calls   []string
	submits []document.SubmitImportRequest
	replies []submitReply
	started []string
	startErr error

	linkedReplies [][]deletebatch.LinkedDocumentRef
	linkedErr     error
	linkedQueries []string
	removeErr     error
	removed       [][]deletebatch.LinkedDocumentRef
	deleteErrs    map[string]error
	deleted       []string

	// when set, SubmitImport signals entered and waits for unblock
	entered chan struct{}
	unblock chan struct{}
}

var _ document.API = (*fakeAPI)(nil)

func (f *fakeAPI) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) SubmitImport(ctx context.Context, req document.SubmitImportRequest) (document.SubmitImportResult, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.unblock
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("submit")
	f.submits = append(f.submits, req)
	if len(f.replies) == 0 {
		return document.SubmitImportResult{Name: "DI-0001"}, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.res, r.err
}

func (f *fakeAPI) StartImport(ctx context.Context, reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("start")
	f.started = append(f.started, reference)
	return f.startErr
}

func (f *fakeAPI) GetLinkedDocs(ctx context.Context, doctype, docname string) ([]deletebatch.LinkedDocumentRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("linked:" + docname)
	f.linkedQueries = append(f.linkedQueries, docname)
	if f.linkedErr != nil {
		return nil, f.linkedErr
	}
	if len(f.linkedReplies) == 0 {
		return nil, nil
	}
	r := f.linkedReplies[0]
	f.linkedReplies = f.linkedReplies[1:]
	return r, nil
}

func (f *fakeAPI) RemoveLinkedDocRefs(ctx context.Context, refs []deletebatch.LinkedDocumentRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("unlink")
	f.removed = append(f.removed, refs)
	return f.removeErr
}

func (f *fakeAPI) DeleteDoc(ctx context.Context, doctype, docname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete:" + docname)
	if err := f.deleteErrs[docname]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, docname)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var leadEntity = entity.Entity{
	Name:    "Lead",
	Doctype: "CRM Lead",
	Slug:    "leads",
	Fields: []entity.Field{
		{Name: "first_name", Label: "First Name"},
		{Name: "last_name", Label: "Last Name"},
		{Name: "email", Label: "Email"},
		{Name: "mobile_no", Label: "Mobile No"},
		{Name: "organization", Label: "Organization"},
	},
}
