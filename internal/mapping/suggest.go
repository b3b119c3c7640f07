package mapping

import "errors"

// ErrEmptyFeed indicates a feed array without any record to sample.
var ErrEmptyFeed = errors.New("mapping: empty feed")

// Suggester proposes source keys for unmapped target fields from a sample record.
// It only reads its alias table, so a single instance can be shared across goroutines.
type Suggester struct {
	aliasTable AliasTable
}

// NewSuggester builds a Suggester over a private copy of aliasTable.
func NewSuggester(aliasTable AliasTable) *Suggester {
	return &Suggester{aliasTable: aliasTable.Clone()}
}

// AliasTable returns a copy of the configured alias table.
func (suggester *Suggester) AliasTable() AliasTable {
	return suggester.aliasTable.Clone()
}

// Suggest returns current extended with the first alias present in sample for every
// field that has no source key yet. Fields already mapped are returned unchanged and
// current itself is never modified. A sample that is not a JSON object yields no suggestions.
func (suggester *Suggester) Suggest(sample any, current Schema) Schema {
	suggested := current.Clone()
	record, isObject := sample.(map[string]any)
	if !isObject {
		return suggested
	}
	for _, entry := range suggester.aliasTable {
		if suggested.Has(entry.Field) {
			continue
		}
		for _, alias := range entry.Aliases {
			if _, present := record[alias]; present {
				suggested[entry.Field] = alias
				break
			}
		}
	}
	return suggested
}

// SampleRecord picks the representative record of a decoded feed payload:
// the first element of an array, or the payload itself otherwise.
func SampleRecord(payload any) (any, error) {
	records, isArray := payload.([]any)
	if !isArray {
		return payload, nil
	}
	if len(records) == 0 {
		return nil, ErrEmptyFeed
	}
	return records[0], nil
}
