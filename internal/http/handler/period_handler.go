package handler

import (
	"net/http"
	"strconv"

	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/repository"
	"github.com/straye-as/measure-api/internal/service"
	"go.uber.org/zap"
)

type PeriodHandler struct {
	periodService *service.PeriodService
	logger        *zap.Logger
}

func NewPeriodHandler(periodService *service.PeriodService, logger *zap.Logger) *PeriodHandler {
	return &PeriodHandler{periodService: periodService, logger: logger}
}

// List godoc
// @Summary List periods
// @Description Periods of a project, newest first. Archived periods are included unless archived=false.
// @Tags Periods
// @Produce json
// @Param projectId query int true "Project ID"
// @Param contractId query int false "Contract ID"
// @Param name query string false "Exact period name"
// @Param archived query bool false "Filter by archived flag"
// @Success 200 {object} domain.ListResponse{data=[]domain.PeriodDTO}
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /periods [get]
func (h *PeriodHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseIDQuery(r, "projectId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	contractID, err := parseIDQuery(r, "contractId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	filters := &repository.PeriodFilters{
		ProjectID:  projectID,
		ContractID: contractID,
		Name:       r.URL.Query().Get("name"),
	}
	if raw := r.URL.Query().Get("archived"); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "archived must be true or false")
			return
		}
		filters.Archived = &archived
	}

	periods, err := h.periodService.List(r.Context(), filters)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to list periods")
		return
	}
	respondList(w, periods)
}

// GetByID godoc
// @Summary Get period
// @Tags Periods
// @Produce json
// @Param id path int true "Period ID"
// @Success 200 {object} domain.PeriodDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /periods/{id} [get]
func (h *PeriodHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	period, err := h.periodService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to get period")
		return
	}
	respondJSON(w, http.StatusOK, period)
}

// Create godoc
// @Summary Create period
// @Tags Periods
// @Accept json
// @Produce json
// @Param request body domain.CreatePeriodRequest true "Period data"
// @Success 201 {object} domain.PeriodDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /periods [post]
func (h *PeriodHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePeriodRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	period, err := h.periodService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to create period")
		return
	}
	w.Header().Set("Location", "/api/v1/periods/"+itoa(period.ID))
	respondJSON(w, http.StatusCreated, period)
}

// Update godoc
// @Summary Update period
// @Tags Periods
// @Accept json
// @Produce json
// @Param id path int true "Period ID"
// @Param request body domain.UpdatePeriodRequest true "Period data"
// @Success 200 {object} domain.PeriodDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /periods/{id} [put]
func (h *PeriodHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req domain.UpdatePeriodRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	period, err := h.periodService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to update period")
		return
	}
	respondJSON(w, http.StatusOK, period)
}

// Delete godoc
// @Summary Delete period
// @Description Refused while measurement details reference the period.
// @Tags Periods
// @Param id path int true "Period ID"
// @Success 204
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /periods/{id} [delete]
func (h *PeriodHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.periodService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to delete period")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Archive godoc
// @Summary Archive period
// @Description Closes the period for new measurement details. Archiving an archived period is a no-op.
// @Tags Periods
// @Produce json
// @Param id path int true "Period ID"
// @Success 200 {object} domain.PeriodDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /periods/{id}/archive [post]
func (h *PeriodHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	period, err := h.periodService.Archive(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to archive period")
		return
	}
	respondJSON(w, http.StatusOK, period)
}
