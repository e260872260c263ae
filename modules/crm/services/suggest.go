package services

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/iota-uz/crm-exchange/modules/crm/domain/entity"
	"github.com/iota-uz/crm-exchange/modules/crm/domain/importjob"
)

// SuggestField picks the entity field closest to a source column name, matching
// against both field names and labels. It returns nil when nothing is close.
func SuggestField(column string, fields []entity.Field) *string {
	q := normalizeColumn(column)
	if q == "" || len(fields) == 0 {
		return nil
	}

	targets := make([]string, 0, len(fields)*2)
	owner := make(map[string]string, len(fields)*2)
	for _, f := range fields {
		for _, candidate := range []string{normalizeColumn(f.Name), normalizeColumn(f.Label)} {
			if candidate == "" {
				continue
			}
			if candidate == q {
				name := f.Name
				return &name
			}
			if _, seen := owner[candidate]; !seen {
				owner[candidate] = f.Name
				targets = append(targets, candidate)
			}
		}
	}

	ranks := fuzzy.RankFindNormalizedFold(q, targets)
	if len(ranks) == 0 {
		// column may be the longer string, e.g. "Primary Email Address" vs "email"
		for _, t := range targets {
			if fuzzy.MatchNormalizedFold(t, q) {
				ranks = append(ranks, fuzzy.Rank{Source: t, Target: t, Distance: len(q) - len(t)})
			}
		}
	}
	if len(ranks) == 0 {
		return nil
	}
	sort.Sort(ranks)
	name := owner[ranks[0].Target]
	return &name
}

// withSuggestions fills in a local suggestion wherever the remote had none.
func withSuggestions(cols []importjob.UnmappedColumn, fields []entity.Field) []importjob.UnmappedColumn {
	out := make([]importjob.UnmappedColumn, len(cols))
	for i, c := range cols {
		out[i] = c
		if c.SuggestedField == nil {
			out[i].SuggestedField = SuggestField(c.ColumnName, fields)
		}
	}
	return out
}

func normalizeColumn(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	}), " ")
}
