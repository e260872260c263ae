package dtos

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iota-uz/crm-exchange/modules/crm/domain/deletebatch"
	"github.com/iota-uz/crm-exchange/pkg/constants"
	"github.com/iota-uz/crm-exchange/pkg/serrors"
)

type MappingDTO struct {
	Mappings map[string]string `json:"mappings"`
}

// Normalize trims column names; values are trimmed by the import job.
func (d *MappingDTO) Normalize() {
	out := make(map[string]string, len(d.Mappings))
	for k, v := range d.Mappings {
		out[strings.TrimSpace(k)] = v
	}
	d.Mappings = out
}

type DeleteRequestDTO struct {
	IDs []string `json:"ids" validate:"dive,required"`
}

func (d *DeleteRequestDTO) Normalize() {
	for i := range d.IDs {
		d.IDs[i] = strings.TrimSpace(d.IDs[i])
	}
}

func (d *DeleteRequestDTO) Ok(ctx context.Context) (map[string]string, bool) {
	d.Normalize()
	return validate(d)
}

type LinkedItemDTO struct {
	ReferenceDoctype string `json:"reference_doctype" validate:"required"`
	ReferenceDocname string `json:"reference_docname" validate:"required"`
}

type UnlinkDTO struct {
	Items []LinkedItemDTO `json:"items" validate:"required,dive"`
}

func (d *UnlinkDTO) Ok(ctx context.Context) (map[string]string, bool) {
	for i := range d.Items {
		d.Items[i].ReferenceDoctype = strings.TrimSpace(d.Items[i].ReferenceDoctype)
		d.Items[i].ReferenceDocname = strings.TrimSpace(d.Items[i].ReferenceDocname)
	}
	return validate(d)
}

func (d *UnlinkDTO) ToRefs() []deletebatch.LinkedDocumentRef {
	refs := make([]deletebatch.LinkedDocumentRef, 0, len(d.Items))
	for _, it := range d.Items {
		refs = append(refs, deletebatch.LinkedDocumentRef{
			ReferenceDoctype: it.ReferenceDoctype,
			ReferenceDocname: it.ReferenceDocname,
		})
	}
	return refs
}

var jsonNames = map[string]string{
	"IDs":              "ids",
	"Items":            "items",
	"ReferenceDoctype": "reference_doctype",
	"ReferenceDocname": "reference_docname",
}

func validate(s any) (map[string]string, bool) {
	errs := constants.Validate.Struct(s)
	if errs == nil {
		return map[string]string{}, true
	}
	validatorErrs, ok := errs.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": errs.Error()}, false
	}
	return serrors.ProcessValidatorErrors(validatorErrs, func(field string) string {
		return jsonNames[field]
	}), false
}
