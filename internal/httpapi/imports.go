package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	jsonKeyStatus = "status"

	statusValueQueued = "queued"
	statusValueOK     = "ok"

	errorValueImportsDisabled = "imports_disabled"
)

// ImportTrigger schedules an importer run outside the regular schedule.
type ImportTrigger interface {
	Trigger()
}

type ImportRunHandlers struct {
	trigger ImportTrigger
	logger  *zap.Logger
}

// NewImportRunHandlers accepts a nil trigger when no offer bus is configured.
func NewImportRunHandlers(trigger ImportTrigger, logger *zap.Logger) *ImportRunHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportRunHandlers{trigger: trigger, logger: logger}
}

func (handlers *ImportRunHandlers) RunImports(context *gin.Context) {
	if handlers.trigger == nil {
		context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueImportsDisabled})
		return
	}
	handlers.trigger.Trigger()
	handlers.logger.Info("import_run_requested", zap.String("ip", context.ClientIP()))
	context.JSON(http.StatusAccepted, gin.H{jsonKeyStatus: statusValueQueued})
}

func Health(context *gin.Context) {
	context.JSON(http.StatusOK, gin.H{jsonKeyStatus: statusValueOK})
}
