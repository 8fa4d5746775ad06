package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/straye-as/measure-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondValidationError_UsesJSONFieldNames(t *testing.T) {
	err := validate.Struct(&domain.MeasurementDetailPayload{RelatedProjectID: 1})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	respondValidationError(rec, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var problem domain.APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Equal(t, domain.ErrorTypeValidation, problem.Type)
	assert.Equal(t, "relatedPeriodId is required", problem.Errors["relatedPeriodId"])
	assert.Contains(t, problem.Errors, "relatedContractId")
	assert.Contains(t, problem.Errors, "relatedMeasurementItemId")
	assert.NotContains(t, problem.Errors, "relatedProjectId")
	assert.NotContains(t, problem.Errors, "relatedPeriodID")
}
