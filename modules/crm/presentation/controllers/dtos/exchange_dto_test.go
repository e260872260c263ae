package dtos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeleteRequestDTO_Ok(t *testing.T) {
	d := &DeleteRequestDTO{IDs: []string{" A ", "B"}}
	errs, ok := d.Ok(context.Background())
	assert.True(t, ok)
	assert.Empty(t, errs)
	assert.Equal(t, []string{"A", "B"}, d.IDs)

	// an empty selection is left to the delete engine
	_, ok = (&DeleteRequestDTO{}).Ok(context.Background())
	assert.True(t, ok)

	errs, ok = (&DeleteRequestDTO{IDs: []string{"A", " "}}).Ok(context.Background())
	assert.False(t, ok)
	assert.NotEmpty(t, errs)
}

func TestUnlinkDTO_Ok(t *testing.T) {
	d := &UnlinkDTO{Items: []LinkedItemDTO{{ReferenceDoctype: "Contact", ReferenceDocname: " C-1 "}}}
	_, ok := d.Ok(context.Background())
	assert.True(t, ok)
	refs := d.ToRefs()
	assert.Equal(t, "C-1", refs[0].ReferenceDocname)

	errs, ok := (&UnlinkDTO{Items: []LinkedItemDTO{{ReferenceDoctype: "Contact"}}}).Ok(context.Background())
	assert.False(t, ok)
	assert.Contains(t, errs["ReferenceDocname"], "reference_docname is required")

	_, ok = (&UnlinkDTO{}).Ok(context.Background())
	assert.False(t, ok)
}

func TestMappingDTO_Normalize(t *testing.T) {
	d := &MappingDTO{Mappings: map[string]string{" Full Name ": "first_name"}}
	d.Normalize()
	assert.Equal(t, map[string]string{"Full Name": "first_name"}, d.Mappings)
}
