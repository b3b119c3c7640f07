package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/offerfeed/internal/model"
)

var (
	// ErrImportTemplateNotFound indicates no template exists for the requested identifier.
	ErrImportTemplateNotFound = errors.New("storage: import template not found")
)

const (
	columnName          = "name"
	columnFeedURL       = "feed_url"
	columnMappingSchema = "mapping_schema"
	columnIsActive      = "is_active"
	columnLastRunAt     = "last_run_at"
	columnUpdatedAt     = "updated_at"
	orderNewestFirst    = "created_at DESC"
)

// editableColumns are written by Update; last_run_at belongs to MarkRun alone.
var editableColumns = []string{columnName, columnFeedURL, columnMappingSchema, columnIsActive, columnUpdatedAt}

// ImportTemplateStore persists import templates.
type ImportTemplateStore struct {
	database *gorm.DB
}

// NewImportTemplateStore wraps an open database.
func NewImportTemplateStore(database *gorm.DB) *ImportTemplateStore {
	return &ImportTemplateStore{database: database}
}

// List returns every template, newest first.
func (store *ImportTemplateStore) List(ctx context.Context) ([]model.ImportTemplate, error) {
	var templates []model.ImportTemplate
	if queryErr := store.database.WithContext(ctx).Order(orderNewestFirst).Find(&templates).Error; queryErr != nil {
		return nil, fmt.Errorf("storage: list import templates: %w", queryErr)
	}
	return templates, nil
}

// ListActive returns the templates the importer should run, newest first.
func (store *ImportTemplateStore) ListActive(ctx context.Context) ([]model.ImportTemplate, error) {
	var templates []model.ImportTemplate
	queryErr := store.database.WithContext(ctx).
		Where(columnIsActive+" = ?", true).
		Order(orderNewestFirst).
		Find(&templates).Error
	if queryErr != nil {
		return nil, fmt.Errorf("storage: list active import templates: %w", queryErr)
	}
	return templates, nil
}

// Get loads one template by identifier.
func (store *ImportTemplateStore) Get(ctx context.Context, id string) (model.ImportTemplate, error) {
	var template model.ImportTemplate
	queryErr := store.database.WithContext(ctx).First(&template, "id = ?", id).Error
	if errors.Is(queryErr, gorm.ErrRecordNotFound) {
		return model.ImportTemplate{}, fmt.Errorf("%w: %s", ErrImportTemplateNotFound, id)
	}
	if queryErr != nil {
		return model.ImportTemplate{}, fmt.Errorf("storage: get import template: %w", queryErr)
	}
	return template, nil
}

// Create inserts a new template.
func (store *ImportTemplateStore) Create(ctx context.Context, template *model.ImportTemplate) error {
	if template.ID == "" {
		template.ID = NewID()
	}
	if createErr := store.database.WithContext(ctx).Create(template).Error; createErr != nil {
		return fmt.Errorf("storage: create import template: %w", createErr)
	}
	return nil
}

// Update writes the editable columns of an existing template and reloads it.
func (store *ImportTemplateStore) Update(ctx context.Context, template *model.ImportTemplate) error {
	result := store.database.WithContext(ctx).
		Model(&model.ImportTemplate{}).
		Where("id = ?", template.ID).
		Select(editableColumns).
		Updates(template)
	if result.Error != nil {
		return fmt.Errorf("storage: update import template: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrImportTemplateNotFound, template.ID)
	}

	stored, getErr := store.Get(ctx, template.ID)
	if getErr != nil {
		return getErr
	}
	*template = stored
	return nil
}

// Delete removes a template by identifier.
func (store *ImportTemplateStore) Delete(ctx context.Context, id string) error {
	result := store.database.WithContext(ctx).Delete(&model.ImportTemplate{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("storage: delete import template: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrImportTemplateNotFound, id)
	}
	return nil
}

// MarkRun records a successful importer run for a template.
func (store *ImportTemplateStore) MarkRun(ctx context.Context, id string, runAt time.Time) error {
	result := store.database.WithContext(ctx).
		Model(&model.ImportTemplate{}).
		Where("id = ?", id).
		UpdateColumn(columnLastRunAt, runAt)
	if result.Error != nil {
		return fmt.Errorf("storage: mark import template run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrImportTemplateNotFound, id)
	}
	return nil
}
