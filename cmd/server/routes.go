package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/MarkoPoloResearchLab/offerfeed/internal/httpapi"
)

const (
	apiRoutePrefix             = "/api"
	apiRouteImportTemplates    = "/import-templates"
	apiRouteImportTemplate     = "/import-templates/:id"
	apiRouteImportTemplateTest = "/import-templates/test"
	apiRouteMappingSuggest     = "/mappings/suggest"
	apiRouteMappingAliases     = "/mappings/aliases"
	apiRouteImportRuns         = "/imports/run"
	healthRoute                = "/health"
	corsOriginWildcard         = "*"
	corsHeaderAuthorization    = "Authorization"
	corsHeaderContentType      = "Content-Type"
	corsPreflightMaxAge        = 12 * time.Hour
)

var (
	corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	corsAllowedHeaders = []string{corsHeaderAuthorization, corsHeaderContentType}
	corsExposedHeaders = []string{corsHeaderContentType}
)

type routeHandlers struct {
	templates  *httpapi.ImportTemplateHandlers
	mappings   *httpapi.MappingHandlers
	importRuns *httpapi.ImportRunHandlers
}

func newAPICORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{corsOriginWildcard},
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: false,
		MaxAge:           corsPreflightMaxAge,
	})
}

func registerRoutes(router *gin.Engine, handlers routeHandlers, adminBearerToken string) {
	router.Use(newAPICORS())
	router.GET(healthRoute, httpapi.Health)

	apiGroup := router.Group(apiRoutePrefix)
	apiGroup.Use(httpapi.AdminAuthMiddleware(adminBearerToken))
	apiGroup.GET(apiRouteImportTemplates, handlers.templates.ListImportTemplates)
	apiGroup.POST(apiRouteImportTemplates, handlers.templates.CreateImportTemplate)
	apiGroup.POST(apiRouteImportTemplateTest, handlers.mappings.TestFeed)
	apiGroup.GET(apiRouteImportTemplate, handlers.templates.GetImportTemplate)
	apiGroup.PUT(apiRouteImportTemplate, handlers.templates.UpdateImportTemplate)
	apiGroup.DELETE(apiRouteImportTemplate, handlers.templates.DeleteImportTemplate)
	apiGroup.POST(apiRouteMappingSuggest, handlers.mappings.SuggestMapping)
	apiGroup.GET(apiRouteMappingAliases, handlers.mappings.AliasTable)
	apiGroup.POST(apiRouteImportRuns, handlers.importRuns.RunImports)
}
