package mapping

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrAliasConfig = errors.New("mapping: alias configuration")

type aliasConfigDocument struct {
	Fields AliasTable `yaml:"fields"`
}

// UnmarshalYAML accepts either a single alias or a sequence of aliases.
// Entries are trimmed; blank entries are kept so validation can reject them.
func (list *AliasList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*list = nil
			return nil
		}
		*list = AliasList{strings.TrimSpace(node.Value)}
		return nil
	case yaml.SequenceNode:
		entries := make(AliasList, 0, len(node.Content))
		for _, child := range node.Content {
			if child.Kind != yaml.ScalarNode {
				return fmt.Errorf("unsupported yaml node kind %d for alias", child.Kind)
			}
			entries = append(entries, strings.TrimSpace(child.Value))
		}
		*list = entries
		return nil
	default:
		return fmt.Errorf("unsupported yaml node kind %d for aliases", node.Kind)
	}
}

// LoadAliasTable reads an alias table from a YAML file of the form
//
//	fields:
//	  - field: ProductName
//	    aliases: [titulo, title, name]
//
// Entry order is preserved and defines field order; alias order defines priority.
func LoadAliasTable(path string) (AliasTable, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return nil, fmt.Errorf("%w: missing path", ErrAliasConfig)
	}
	contents, readErr := os.ReadFile(trimmedPath)
	if readErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrAliasConfig, readErr)
	}
	return ParseAliasTable(contents)
}

// ParseAliasTable decodes and validates YAML alias configuration.
func ParseAliasTable(contents []byte) (AliasTable, error) {
	var document aliasConfigDocument
	if decodeErr := yaml.Unmarshal(contents, &document); decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrAliasConfig, decodeErr)
	}
	table := make(AliasTable, 0, len(document.Fields))
	for _, entry := range document.Fields {
		table = append(table, FieldAliases{
			Field:   TargetField(strings.TrimSpace(string(entry.Field))),
			Aliases: entry.Aliases,
		})
	}
	if validationErr := table.Validate(); validationErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrAliasConfig, validationErr)
	}
	return table, nil
}
