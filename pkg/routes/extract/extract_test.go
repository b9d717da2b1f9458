package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeRunner struct {
	lastRequest models.ExtractRequest
	result      models.ExtractResult
}

func (f *fakeRunner) Run(ctx context.Context, req models.ExtractRequest) models.ExtractResult {
	f.lastRequest = req
	return f.result
}

func newTestServer(runner Runner) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))

	handler := NewHandler(runner)
	handler.Register(e.Group("/api/v1/extract"))
	return e
}

func postExtract(t *testing.T, e *echo.Echo, body any) *httptest.ResponseRecorder {
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", bytes.NewBuffer(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestExtractSuccess(t *testing.T) {
	runner := &fakeRunner{result: models.SuccessResult(models.APIGetPipelineRuns, map[string]any{
		"impacted_rows": 7,
		"record_count":  7,
	})}
	e := newTestServer(runner)

	rec := postExtract(t, e, map[string]any{
		"api_name":       models.APIGetPipelineRuns,
		"factory_name":   "factory-a",
		"resource_group": "rg-a",
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var result models.ExtractResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, models.APIGetPipelineRuns, result.FunctionName)
	assert.Equal(t, models.APIGetPipelineRuns, runner.lastRequest.APIName)
	assert.Equal(t, "factory-a", runner.lastRequest.FactoryName)
}

func TestExtractExceptionStatusMirrorsEnvelope(t *testing.T) {
	runner := &fakeRunner{result: models.ExceptionResult(models.APIGetTriggerRuns, assert.AnError)}
	e := newTestServer(runner)

	rec := postExtract(t, e, map[string]any{
		"api_name":       models.APIGetTriggerRuns,
		"factory_name":   "factory-a",
		"resource_group": "rg-a",
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var result models.ExtractResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, models.StatusException, result.Status)
	assert.Contains(t, result.Message.(string), "Exception in GetTriggerRuns")
}

func TestExtractUnknownAPIName(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestServer(runner)

	rec := postExtract(t, e, map[string]any{
		"api_name":       "GetSomethingElse",
		"factory_name":   "factory-a",
		"resource_group": "rg-a",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	// rejection names the valid extractors so the caller can self-correct
	assert.Contains(t, rec.Body.String(), "GetActivityRuns")
	assert.Empty(t, runner.lastRequest.APIName)
}

func TestExtractMissingRequiredFields(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestServer(runner)

	rec := postExtract(t, e, map[string]any{"api_name": models.APIGetDatasets})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, runner.lastRequest.APIName)
}

func TestExtractRejectsNonPositiveLimit(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestServer(runner)

	rec := postExtract(t, e, map[string]any{
		"api_name":       models.APIGetActivityRuns,
		"factory_name":   "factory-a",
		"resource_group": "rg-a",
		"api_limit":      0,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
