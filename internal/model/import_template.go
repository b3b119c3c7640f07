package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/offerfeed/internal/feed"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/mapping"
)

const importTemplateNameMaxLength = 200

var (
	ErrInvalidImportTemplateName    = errors.New("invalid_import_template_name")
	ErrInvalidImportTemplateFeedURL = errors.New("invalid_import_template_feed_url")
	ErrInvalidImportTemplateMapping = errors.New("invalid_import_template_mapping")
)

// RequiredMappingFields lists the target fields every template must map.
var RequiredMappingFields = []mapping.TargetField{mapping.FieldProductName}

// ImportTemplateInput holds the raw values used to construct or update an ImportTemplate.
type ImportTemplateInput struct {
	Name     string
	FeedURL  string
	Mapping  mapping.Schema
	IsActive bool
}

// NewImportTemplate constructs an ImportTemplate with validated, normalized fields.
// The identifier is left empty; storage assigns it on create.
func NewImportTemplate(input ImportTemplateInput) (ImportTemplate, error) {
	var template ImportTemplate
	if applyErr := template.Apply(input); applyErr != nil {
		return ImportTemplate{}, applyErr
	}
	return template, nil
}

// Apply validates input and copies it onto the template, leaving identity and timestamps alone.
func (template *ImportTemplate) Apply(input ImportTemplateInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > importTemplateNameMaxLength {
		return fmt.Errorf("%w: empty or too long", ErrInvalidImportTemplateName)
	}

	feedURL, urlErr := feed.ValidateURL(input.FeedURL)
	if urlErr != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImportTemplateFeedURL, urlErr)
	}

	normalizedMapping := make(mapping.Schema, len(input.Mapping))
	for field, sourceKey := range input.Mapping {
		trimmedKey := strings.TrimSpace(sourceKey)
		if trimmedKey != "" {
			normalizedMapping[field] = trimmedKey
		}
	}
	if requireErr := normalizedMapping.Require(RequiredMappingFields...); requireErr != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImportTemplateMapping, requireErr)
	}
	encodedMapping, encodeErr := normalizedMapping.Encode()
	if encodeErr != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImportTemplateMapping, encodeErr)
	}

	template.Name = name
	template.FeedURL = feedURL
	template.MappingSchema = encodedMapping
	template.IsActive = input.IsActive
	return nil
}

// Mapping decodes the template's persisted mapping schema.
func (template ImportTemplate) Mapping() (mapping.Schema, error) {
	return mapping.ParseSchema(template.MappingSchema)
}
