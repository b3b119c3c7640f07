package mapping

import (
	"errors"
	"fmt"
	"strings"
)

// TargetField names a canonical offer field that an import needs populated.
type TargetField string

const (
	FieldProductName        TargetField = "ProductName"
	FieldPrice              TargetField = "Price"
	FieldOriginalPrice      TargetField = "OriginalPrice"
	FieldDetails            TargetField = "Details"
	FieldCashbackPercentage TargetField = "CashbackPercentage"
	FieldSource             TargetField = "Source"
)

var (
	ErrEmptyAliasTable      = errors.New("mapping: empty alias table")
	ErrInvalidTargetField   = errors.New("mapping: invalid target field")
	ErrDuplicateTargetField = errors.New("mapping: duplicate target field")
	ErrInvalidAlias         = errors.New("mapping: invalid alias")
)

// AliasList holds candidate source keys for one target field, most preferred first.
type AliasList []string

// FieldAliases pairs a target field with its prioritized aliases.
type FieldAliases struct {
	Field   TargetField `yaml:"field" json:"field"`
	Aliases AliasList   `yaml:"aliases" json:"aliases"`
}

// AliasTable is the ordered configuration consulted by the Suggester.
type AliasTable []FieldAliases

// DefaultAliasTable returns the built-in alias table for offer feeds.
func DefaultAliasTable() AliasTable {
	return AliasTable{
		{Field: FieldProductName, Aliases: AliasList{"titulo", "title", "name", "product_name", "productName"}},
		{Field: FieldPrice, Aliases: AliasList{"price", "preco", "valor", "currentPrice"}},
		{Field: FieldOriginalPrice, Aliases: AliasList{"oldPrice", "originalPrice", "precoOriginal", "preco_original"}},
		{Field: FieldDetails, Aliases: AliasList{"details", "description", "descricao", "detalhes"}},
		{Field: FieldCashbackPercentage, Aliases: AliasList{"percentCashback", "cashback", "cashbackPercent"}},
		{Field: FieldSource, Aliases: AliasList{"source", "origem", "provider", "fornecedor"}},
	}
}

// Fields lists the table's target fields in configuration order.
func (table AliasTable) Fields() []TargetField {
	fields := make([]TargetField, 0, len(table))
	for _, entry := range table {
		fields = append(fields, entry.Field)
	}
	return fields
}

// Aliases returns the alias list configured for field and whether the field is known.
func (table AliasTable) Aliases(field TargetField) (AliasList, bool) {
	for _, entry := range table {
		if entry.Field == field {
			return entry.Aliases, true
		}
	}
	return nil, false
}

// Validate reports whether the table can drive suggestions.
func (table AliasTable) Validate() error {
	if len(table) == 0 {
		return ErrEmptyAliasTable
	}
	seenFields := make(map[TargetField]struct{}, len(table))
	for index, entry := range table {
		if strings.TrimSpace(string(entry.Field)) == "" {
			return fmt.Errorf("%w: entry %d", ErrInvalidTargetField, index)
		}
		if _, duplicate := seenFields[entry.Field]; duplicate {
			return fmt.Errorf("%w: %s", ErrDuplicateTargetField, entry.Field)
		}
		seenFields[entry.Field] = struct{}{}
		for _, alias := range entry.Aliases {
			if alias == "" {
				return fmt.Errorf("%w: empty alias for %s", ErrInvalidAlias, entry.Field)
			}
		}
	}
	return nil
}

// Clone returns a deep copy so callers cannot alter a shared table.
func (table AliasTable) Clone() AliasTable {
	cloned := make(AliasTable, len(table))
	for index, entry := range table {
		cloned[index] = FieldAliases{
			Field:   entry.Field,
			Aliases: append(AliasList(nil), entry.Aliases...),
		}
	}
	return cloned
}
