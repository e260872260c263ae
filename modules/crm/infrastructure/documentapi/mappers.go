package documentapi

import (
	"strings"

	"github.com/iota-uz/crm-exchange/modules/crm/domain/deletebatch"
	"github.com/iota-uz/crm-exchange/modules/crm/domain/document"
	"github.com/iota-uz/crm-exchange/modules/crm/domain/importjob"
	"github.com/iota-uz/crm-exchange/pkg/erp"
)

func toSubmitImportResult(resp erp.ImportResponse) document.SubmitImportResult {
	cols := make([]importjob.UnmappedColumn, 0, len(resp.UnmappedColumns))
	for _, c := range resp.UnmappedColumns {
		col := importjob.UnmappedColumn{ColumnName: strings.TrimSpace(c.ColumnName)}
		if c.SuggestedField != nil && strings.TrimSpace(*c.SuggestedField) != "" {
			s := strings.TrimSpace(*c.SuggestedField)
			col.SuggestedField = &s
		}
		cols = append(cols, col)
	}
	return document.SubmitImportResult{
		UnmappedColumns: cols,
		Name:            resp.Name,
		DataImportName:  resp.DataImportName,
	}
}

func toLinkedRefs(docs []erp.LinkedDoc) []deletebatch.LinkedDocumentRef {
	out := make([]deletebatch.LinkedDocumentRef, 0, len(docs))
	for _, d := range docs {
		out = append(out, deletebatch.LinkedDocumentRef{
			ReferenceDoctype: d.ReferenceDoctype,
			ReferenceDocname: d.ReferenceDocname,
		})
	}
	return out
}

func toDocRefs(refs []deletebatch.LinkedDocumentRef) []erp.DocRef {
	out := make([]erp.DocRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, erp.DocRef{Doctype: r.ReferenceDoctype, Docname: r.ReferenceDocname})
	}
	return out
}
