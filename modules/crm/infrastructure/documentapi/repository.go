// Package documentapi adapts the ERP HTTP client to the document.API port.
package documentapi

import (
	"context"
	"errors"

	"github.com/iota-uz/crm-exchange/modules/crm/domain/deletebatch"
	"github.com/iota-uz/crm-exchange/modules/crm/domain/document"
	"github.com/iota-uz/crm-exchange/pkg/erp"
)

type Repository struct {
	client *erp.Client
}

var _ document.API = (*Repository)(nil)

func NewRepository(client *erp.Client) *Repository {
	return &Repository{client: client}
}

func (r *Repository) SubmitImport(ctx context.Context, req document.SubmitImportRequest) (document.SubmitImportResult, error) {
	resp, err := r.client.SubmitImport(ctx, erp.ImportRequest{
		Doctype:        req.Doctype,
		Company:        req.CompanyScope,
		FileName:       req.File.Name,
		Data:           req.File.Data,
		ManualMappings: req.ManualMappings,
	})
	if err != nil {
		return document.SubmitImportResult{}, err
	}
	return toSubmitImportResult(resp), nil
}

func (r *Repository) StartImport(ctx context.Context, reference string) error {
	return r.client.StartImport(ctx, reference)
}

func (r *Repository) GetLinkedDocs(ctx context.Context, doctype, docname string) ([]deletebatch.LinkedDocumentRef, error) {
	docs, err := r.client.GetLinkedDocs(ctx, doctype, docname)
	if err != nil {
		return nil, err
	}
	return toLinkedRefs(docs), nil
}

func (r *Repository) RemoveLinkedDocRefs(ctx context.Context, refs []deletebatch.LinkedDocumentRef) error {
	return r.client.RemoveLinkedDocRefs(ctx, toDocRefs(refs))
}

// DeleteDoc tags link-exists rejections with document.ErrLinkedDocuments and
// keeps the remote message as the error text.
func (r *Repository) DeleteDoc(ctx context.Context, doctype, docname string) error {
	err := r.client.DeleteDoc(ctx, doctype, docname)
	if errors.Is(err, erp.ErrLinkExists) {
		return &linkedError{err: err}
	}
	return err
}

type linkedError struct {
	err error
}

func (e *linkedError) Error() string { return e.err.Error() }

func (e *linkedError) Unwrap() []error { return []error{document.ErrLinkedDocuments, e.err} }
