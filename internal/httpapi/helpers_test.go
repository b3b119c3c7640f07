package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/offerfeed/internal/feed"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/httpapi"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/mapping"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/storage"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/testutil"
)

const (
	testAdminBearerToken    = "test-admin-token"
	authorizationHeaderName = "Authorization"
	bearerTokenPrefix       = "Bearer "
	importTemplatesPath     = "/api/import-templates"
	testFeedPath            = "/api/import-templates/test"
	suggestPath             = "/api/mappings/suggest"
	aliasesPath             = "/api/mappings/aliases"
	runImportsPath          = "/api/imports/run"
	healthPath              = "/health"
)

type countingTrigger struct {
	calls int
}

func (trigger *countingTrigger) Trigger() {
	trigger.calls++
}

type apiHarness struct {
	router  *gin.Engine
	store   *storage.ImportTemplateStore
	trigger *countingTrigger
}

func buildAPIHarness(testingT *testing.T) apiHarness {
	testingT.Helper()

	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	database := testutil.NewSQLiteTestDatabase(testingT).OpenMigrated(testingT)
	store := storage.NewImportTemplateStore(database)
	trigger := &countingTrigger{}

	templateHandlers := httpapi.NewImportTemplateHandlers(store, logger)
	mappingHandlers := httpapi.NewMappingHandlers(mapping.NewSuggester(mapping.DefaultAliasTable()), feed.NewFetcher(feed.Config{}), logger)
	importRunHandlers := httpapi.NewImportRunHandlers(trigger, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))
	router.GET(healthPath, httpapi.Health)

	apiGroup := router.Group("/api")
	apiGroup.Use(httpapi.AdminAuthMiddleware(testAdminBearerToken))
	apiGroup.GET("/import-templates", templateHandlers.ListImportTemplates)
	apiGroup.POST("/import-templates", templateHandlers.CreateImportTemplate)
	apiGroup.POST("/import-templates/test", mappingHandlers.TestFeed)
	apiGroup.GET("/import-templates/:id", templateHandlers.GetImportTemplate)
	apiGroup.PUT("/import-templates/:id", templateHandlers.UpdateImportTemplate)
	apiGroup.DELETE("/import-templates/:id", templateHandlers.DeleteImportTemplate)
	apiGroup.POST("/mappings/suggest", mappingHandlers.SuggestMapping)
	apiGroup.GET("/mappings/aliases", mappingHandlers.AliasTable)
	apiGroup.POST("/imports/run", importRunHandlers.RunImports)

	return apiHarness{router: router, store: store, trigger: trigger}
}

func adminHeaders() map[string]string {
	return map[string]string{authorizationHeaderName: bearerTokenPrefix + testAdminBearerToken}
}

func performJSONRequest(testingT *testing.T, router *gin.Engine, method string, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	testingT.Helper()
	var requestBody io.Reader
	switch typedBody := body.(type) {
	case nil:
	case string:
		requestBody = bytes.NewReader([]byte(typedBody))
	default:
		encoded, encodeErr := json.Marshal(typedBody)
		require.NoError(testingT, encodeErr)
		requestBody = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, requestBody)
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func decodeJSON[T any](testingT *testing.T, recorder *httptest.ResponseRecorder) T {
	testingT.Helper()
	var decoded T
	require.NoError(testingT, json.Unmarshal(recorder.Body.Bytes(), &decoded))
	return decoded
}

func requireErrorCode(testingT *testing.T, recorder *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	testingT.Helper()
	require.Equal(testingT, expectedStatus, recorder.Code, recorder.Body.String())
	payload := decodeJSON[map[string]string](testingT, recorder)
	require.Equal(testingT, expectedCode, payload["error"])
}
