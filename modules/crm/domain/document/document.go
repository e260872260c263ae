// Package document declares the remote document service the exchange engines talk to.
package document

import (
	"context"
	"strings"

	"github.com/iota-uz/crm-exchange/modules/crm/domain/deletebatch"
	"github.com/iota-uz/crm-exchange/modules/crm/domain/importjob"
	"github.com/iota-uz/crm-exchange/pkg/serrors"
)

// ErrLinkedDocuments marks a delete the remote refused because other documents
// still point at the record.
var ErrLinkedDocuments = serrors.NewError("CRM_LINKED_DOCUMENTS", "record is linked to other documents", "CRM.Delete.Errors.LinkedDocuments")

type SubmitImportRequest struct {
	Doctype        string
	CompanyScope   string
	File           importjob.SourceFile
	ManualMappings map[string]string
}

type SubmitImportResult struct {
	UnmappedColumns []importjob.UnmappedColumn `json:"unmapped_columns"`
	Name            string                     `json:"name"`
	DataImportName  string                     `json:"data_import_name"`
}

// Reference returns the job reference, preferring name over data_import_name.
func (r SubmitImportResult) Reference() string {
	if n := strings.TrimSpace(r.Name); n != "" {
		return n
	}
	return strings.TrimSpace(r.DataImportName)
}

// API is the subset of the remote document service used by the exchange workflows.
type API interface {
	SubmitImport(ctx context.Context, req SubmitImportRequest) (SubmitImportResult, error)
	StartImport(ctx context.Context, reference string) error
	GetLinkedDocs(ctx context.Context, doctype, docname string) ([]deletebatch.LinkedDocumentRef, error)
	RemoveLinkedDocRefs(ctx context.Context, refs []deletebatch.LinkedDocumentRef) error
	DeleteDoc(ctx context.Context, doctype, docname string) error
}
