package httpapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testTemplateName    = "Loja Parceira"
	testTemplateFeedURL = "https://feeds.example.com/offers.json"
)

type templatePayload struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	FeedURL   string            `json:"feed_url"`
	Mapping   map[string]string `json:"mapping"`
	IsActive  bool              `json:"is_active"`
	LastRunAt *int64            `json:"last_run_at"`
	CreatedAt int64             `json:"created_at"`
}

type templateListPayload struct {
	ImportTemplates []templatePayload `json:"import_templates"`
}

func createTemplateThroughAPI(testingT *testing.T, harness apiHarness) templatePayload {
	testingT.Helper()
	recorder := performJSONRequest(testingT, harness.router, http.MethodPost, importTemplatesPath, map[string]any{
		"name":     "  " + testTemplateName + "  ",
		"feed_url": testTemplateFeedURL,
		"mapping":  map[string]string{"ProductName": "titulo", "Price": "preco", "Details": ""},
	}, adminHeaders())
	require.Equal(testingT, http.StatusCreated, recorder.Code, recorder.Body.String())
	return decodeJSON[templatePayload](testingT, recorder)
}

func TestCreateImportTemplateNormalizesAndPersists(testingT *testing.T) {
	harness := buildAPIHarness(testingT)

	created := createTemplateThroughAPI(testingT, harness)
	require.NotEmpty(testingT, created.ID)
	require.Equal(testingT, testTemplateName, created.Name)
	require.Equal(testingT, testTemplateFeedURL, created.FeedURL)
	require.Equal(testingT, map[string]string{"ProductName": "titulo", "Price": "preco"}, created.Mapping)
	require.True(testingT, created.IsActive)
	require.Nil(testingT, created.LastRunAt)
	require.NotZero(testingT, created.CreatedAt)

	listRecorder := performJSONRequest(testingT, harness.router, http.MethodGet, importTemplatesPath, nil, adminHeaders())
	require.Equal(testingT, http.StatusOK, listRecorder.Code)
	listed := decodeJSON[templateListPayload](testingT, listRecorder)
	require.Len(testingT, listed.ImportTemplates, 1)
	require.Equal(testingT, created.ID, listed.ImportTemplates[0].ID)

	getRecorder := performJSONRequest(testingT, harness.router, http.MethodGet, importTemplatesPath+"/"+created.ID, nil, adminHeaders())
	require.Equal(testingT, http.StatusOK, getRecorder.Code)
	require.Equal(testingT, created.Mapping, decodeJSON[templatePayload](testingT, getRecorder).Mapping)
}

func TestCreateImportTemplateValidation(testingT *testing.T) {
	testCases := []struct {
		name         string
		body         any
		expectedCode string
	}{
		{
			name:         "malformed json",
			body:         "{not json",
			expectedCode: "invalid_json",
		},
		{
			name:         "blank name",
			body:         map[string]any{"name": " ", "feed_url": testTemplateFeedURL, "mapping": map[string]string{"ProductName": "titulo"}},
			expectedCode: "invalid_name",
		},
		{
			name:         "relative feed url",
			body:         map[string]any{"name": testTemplateName, "feed_url": "/offers.json", "mapping": map[string]string{"ProductName": "titulo"}},
			expectedCode: "invalid_feed_url",
		},
		{
			name:         "missing product name mapping",
			body:         map[string]any{"name": testTemplateName, "feed_url": testTemplateFeedURL, "mapping": map[string]string{"Price": "preco"}},
			expectedCode: "invalid_mapping",
		},
		{
			name:         "empty product name mapping",
			body:         map[string]any{"name": testTemplateName, "feed_url": testTemplateFeedURL, "mapping": map[string]string{"ProductName": "  "}},
			expectedCode: "invalid_mapping",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(subTest *testing.T) {
			harness := buildAPIHarness(subTest)
			recorder := performJSONRequest(subTest, harness.router, http.MethodPost, importTemplatesPath, testCase.body, adminHeaders())
			requireErrorCode(subTest, recorder, http.StatusBadRequest, testCase.expectedCode)
		})
	}
}

func TestUpdateImportTemplateKeepsActivityWhenOmitted(testingT *testing.T) {
	harness := buildAPIHarness(testingT)
	created := createTemplateThroughAPI(testingT, harness)

	deactivateRecorder := performJSONRequest(testingT, harness.router, http.MethodPut, importTemplatesPath+"/"+created.ID, map[string]any{
		"name":      "Renamed",
		"feed_url":  testTemplateFeedURL,
		"mapping":   map[string]string{"ProductName": "title"},
		"is_active": false,
	}, adminHeaders())
	require.Equal(testingT, http.StatusOK, deactivateRecorder.Code, deactivateRecorder.Body.String())
	deactivated := decodeJSON[templatePayload](testingT, deactivateRecorder)
	require.Equal(testingT, "Renamed", deactivated.Name)
	require.False(testingT, deactivated.IsActive)
	require.Equal(testingT, map[string]string{"ProductName": "title"}, deactivated.Mapping)

	renameRecorder := performJSONRequest(testingT, harness.router, http.MethodPut, importTemplatesPath+"/"+created.ID, map[string]any{
		"name":     "Renamed Again",
		"feed_url": testTemplateFeedURL,
		"mapping":  map[string]string{"ProductName": "title"},
	}, adminHeaders())
	require.Equal(testingT, http.StatusOK, renameRecorder.Code)
	require.False(testingT, decodeJSON[templatePayload](testingT, renameRecorder).IsActive)
}

func TestUpdateImportTemplateRejectsInvalidInput(testingT *testing.T) {
	harness := buildAPIHarness(testingT)
	created := createTemplateThroughAPI(testingT, harness)

	recorder := performJSONRequest(testingT, harness.router, http.MethodPut, importTemplatesPath+"/"+created.ID, map[string]any{
		"name":     testTemplateName,
		"feed_url": "ftp://feeds.example.com/offers.json",
		"mapping":  map[string]string{"ProductName": "titulo"},
	}, adminHeaders())
	requireErrorCode(testingT, recorder, http.StatusBadRequest, "invalid_feed_url")
}

func TestImportTemplateUnknownIdentifier(testingT *testing.T) {
	harness := buildAPIHarness(testingT)
	unknownPath := importTemplatesPath + "/does-not-exist"
	validBody := map[string]any{
		"name":     testTemplateName,
		"feed_url": testTemplateFeedURL,
		"mapping":  map[string]string{"ProductName": "titulo"},
	}

	requireErrorCode(testingT, performJSONRequest(testingT, harness.router, http.MethodGet, unknownPath, nil, adminHeaders()),
		http.StatusNotFound, "unknown_import_template")
	requireErrorCode(testingT, performJSONRequest(testingT, harness.router, http.MethodPut, unknownPath, validBody, adminHeaders()),
		http.StatusNotFound, "unknown_import_template")
	requireErrorCode(testingT, performJSONRequest(testingT, harness.router, http.MethodDelete, unknownPath, nil, adminHeaders()),
		http.StatusNotFound, "unknown_import_template")
}

func TestDeleteImportTemplate(testingT *testing.T) {
	harness := buildAPIHarness(testingT)
	created := createTemplateThroughAPI(testingT, harness)

	deleteRecorder := performJSONRequest(testingT, harness.router, http.MethodDelete, importTemplatesPath+"/"+created.ID, nil, adminHeaders())
	require.Equal(testingT, http.StatusNoContent, deleteRecorder.Code)

	listRecorder := performJSONRequest(testingT, harness.router, http.MethodGet, importTemplatesPath, nil, adminHeaders())
	require.Empty(testingT, decodeJSON[templateListPayload](testingT, listRecorder).ImportTemplates)
}
