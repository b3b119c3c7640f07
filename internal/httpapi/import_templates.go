package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/offerfeed/internal/mapping"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/model"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/storage"
)

const (
	jsonKeyError = "error"

	routeParamID = "id"

	errorValueInvalidJSON           = "invalid_json"
	errorValueInvalidName           = "invalid_name"
	errorValueInvalidFeedURL        = "invalid_feed_url"
	errorValueInvalidMapping        = "invalid_mapping"
	errorValueUnknownImportTemplate = "unknown_import_template"
	errorValueQueryFailed           = "query_failed"
	errorValueSaveFailed            = "save_failed"
	errorValueDeleteFailed          = "delete_failed"
	errorValueCorruptMapping        = "corrupt_mapping"
)

// ImportTemplateRepository persists import templates.
type ImportTemplateRepository interface {
	List(ctx context.Context) ([]model.ImportTemplate, error)
	Get(ctx context.Context, id string) (model.ImportTemplate, error)
	Create(ctx context.Context, template *model.ImportTemplate) error
	Update(ctx context.Context, template *model.ImportTemplate) error
	Delete(ctx context.Context, id string) error
}

type ImportTemplateHandlers struct {
	repository ImportTemplateRepository
	logger     *zap.Logger
}

func NewImportTemplateHandlers(repository ImportTemplateRepository, logger *zap.Logger) *ImportTemplateHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportTemplateHandlers{repository: repository, logger: logger}
}

type importTemplateRequest struct {
	Name     string         `json:"name"`
	FeedURL  string         `json:"feed_url"`
	Mapping  mapping.Schema `json:"mapping"`
	IsActive *bool          `json:"is_active"`
}

func (request importTemplateRequest) input() model.ImportTemplateInput {
	isActive := true
	if request.IsActive != nil {
		isActive = *request.IsActive
	}
	return model.ImportTemplateInput{
		Name:     request.Name,
		FeedURL:  request.FeedURL,
		Mapping:  request.Mapping,
		IsActive: isActive,
	}
}

type importTemplateResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	FeedURL   string         `json:"feed_url"`
	Mapping   mapping.Schema `json:"mapping"`
	IsActive  bool           `json:"is_active"`
	LastRunAt *int64         `json:"last_run_at"`
	CreatedAt int64          `json:"created_at"`
	UpdatedAt int64          `json:"updated_at"`
}

type listImportTemplatesResponse struct {
	ImportTemplates []importTemplateResponse `json:"import_templates"`
}

func (handlers *ImportTemplateHandlers) ListImportTemplates(context *gin.Context) {
	templates, listErr := handlers.repository.List(context.Request.Context())
	if listErr != nil {
		handlers.logger.Warn("list_import_templates", zap.Error(listErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
		return
	}
	responses := make([]importTemplateResponse, 0, len(templates))
	for _, template := range templates {
		response, responseErr := handlers.toImportTemplateResponse(template)
		if responseErr != nil {
			context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueCorruptMapping})
			return
		}
		responses = append(responses, response)
	}
	context.JSON(http.StatusOK, listImportTemplatesResponse{ImportTemplates: responses})
}

func (handlers *ImportTemplateHandlers) GetImportTemplate(context *gin.Context) {
	template, getErr := handlers.repository.Get(context.Request.Context(), context.Param(routeParamID))
	if getErr != nil {
		handlers.respondLookupError(context, getErr)
		return
	}
	handlers.respondImportTemplate(context, http.StatusOK, template)
}

func (handlers *ImportTemplateHandlers) CreateImportTemplate(context *gin.Context) {
	var payload importTemplateRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}

	template, templateErr := model.NewImportTemplate(payload.input())
	if templateErr != nil {
		respondValidationError(context, templateErr)
		return
	}
	if createErr := handlers.repository.Create(context.Request.Context(), &template); createErr != nil {
		handlers.logger.Warn("create_import_template", zap.Error(createErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}
	handlers.logger.Info("import_template_created", zap.String("template_id", template.ID))
	handlers.respondImportTemplate(context, http.StatusCreated, template)
}

func (handlers *ImportTemplateHandlers) UpdateImportTemplate(context *gin.Context) {
	var payload importTemplateRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}

	template, getErr := handlers.repository.Get(context.Request.Context(), context.Param(routeParamID))
	if getErr != nil {
		handlers.respondLookupError(context, getErr)
		return
	}
	input := payload.input()
	if payload.IsActive == nil {
		input.IsActive = template.IsActive
	}
	if applyErr := template.Apply(input); applyErr != nil {
		respondValidationError(context, applyErr)
		return
	}
	if updateErr := handlers.repository.Update(context.Request.Context(), &template); updateErr != nil {
		if errors.Is(updateErr, storage.ErrImportTemplateNotFound) {
			context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownImportTemplate})
			return
		}
		handlers.logger.Warn("update_import_template", zap.Error(updateErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}
	handlers.respondImportTemplate(context, http.StatusOK, template)
}

func (handlers *ImportTemplateHandlers) DeleteImportTemplate(context *gin.Context) {
	templateID := context.Param(routeParamID)
	if deleteErr := handlers.repository.Delete(context.Request.Context(), templateID); deleteErr != nil {
		if errors.Is(deleteErr, storage.ErrImportTemplateNotFound) {
			context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownImportTemplate})
			return
		}
		handlers.logger.Warn("delete_import_template", zap.Error(deleteErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueDeleteFailed})
		return
	}
	handlers.logger.Info("import_template_deleted", zap.String("template_id", templateID))
	context.Status(http.StatusNoContent)
}

func (handlers *ImportTemplateHandlers) respondLookupError(context *gin.Context, lookupErr error) {
	if errors.Is(lookupErr, storage.ErrImportTemplateNotFound) {
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownImportTemplate})
		return
	}
	handlers.logger.Warn("get_import_template", zap.Error(lookupErr))
	context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
}

func (handlers *ImportTemplateHandlers) respondImportTemplate(context *gin.Context, status int, template model.ImportTemplate) {
	response, responseErr := handlers.toImportTemplateResponse(template)
	if responseErr != nil {
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueCorruptMapping})
		return
	}
	context.JSON(status, response)
}

func (handlers *ImportTemplateHandlers) toImportTemplateResponse(template model.ImportTemplate) (importTemplateResponse, error) {
	schema, schemaErr := template.Mapping()
	if schemaErr != nil {
		handlers.logger.Error("decode_import_template_mapping", zap.String("template_id", template.ID), zap.Error(schemaErr))
		return importTemplateResponse{}, schemaErr
	}
	return importTemplateResponse{
		ID:        template.ID,
		Name:      template.Name,
		FeedURL:   template.FeedURL,
		Mapping:   schema,
		IsActive:  template.IsActive,
		LastRunAt: unixPointer(template.LastRunAt),
		CreatedAt: template.CreatedAt.Unix(),
		UpdatedAt: template.UpdatedAt.Unix(),
	}, nil
}

func respondValidationError(context *gin.Context, validationErr error) {
	switch {
	case errors.Is(validationErr, model.ErrInvalidImportTemplateName):
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidName})
	case errors.Is(validationErr, model.ErrInvalidImportTemplateFeedURL):
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidFeedURL})
	case errors.Is(validationErr, model.ErrInvalidImportTemplateMapping):
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidMapping})
	default:
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
	}
}

func unixPointer(timestamp *time.Time) *int64 {
	if timestamp == nil {
		return nil
	}
	seconds := timestamp.Unix()
	return &seconds
}
