package handler

import (
	"net/http"
	"strconv"

	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/repository"
	"github.com/straye-as/measure-api/internal/service"
	"go.uber.org/zap"
)

type MeasurementDetailHandler struct {
	detailService *service.MeasurementDetailService
	logger        *zap.Logger
}

func NewMeasurementDetailHandler(detailService *service.MeasurementDetailService, logger *zap.Logger) *MeasurementDetailHandler {
	return &MeasurementDetailHandler{detailService: detailService, logger: logger}
}

// List godoc
// @Summary List measurement details
// @Description Details in catalog order with derived amount, cumulative totalCount and, for material items, remainingCount.
// @Tags Measurement Details
// @Produce json
// @Param projectId query int true "Project ID"
// @Param contractId query int false "Contract ID"
// @Param periodId query int false "Period ID"
// @Param itemId query int false "Measurement item ID"
// @Param type query string false "Item category" Enums(cost, material)
// @Param status query int false "0 pending, 1 approved, 2 rejected"
// @Success 200 {object} domain.ListResponse{data=[]domain.MeasurementDetailDTO}
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /measurement-details [get]
func (h *MeasurementDetailHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &repository.MeasurementDetailFilters{
		ItemType: domain.MeasurementItemType(r.URL.Query().Get("type")),
	}

	var err error
	for name, dst := range map[string]*int64{
		"projectId":  &filters.ProjectID,
		"contractId": &filters.ContractID,
		"periodId":   &filters.PeriodID,
		"itemId":     &filters.ItemID,
	} {
		if *dst, err = parseIDQuery(r, name); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "status must be 0, 1 or 2")
			return
		}
		status := domain.MeasurementStatus(n)
		filters.Status = &status
	}

	details, err := h.detailService.List(r.Context(), filters)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to list measurement details")
		return
	}
	respondList(w, details)
}

// GetByID godoc
// @Summary Get measurement detail
// @Tags Measurement Details
// @Produce json
// @Param id path int true "Measurement detail ID"
// @Success 200 {object} domain.MeasurementDetailDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /measurement-details/{id} [get]
func (h *MeasurementDetailHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.detailService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to get measurement detail")
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// Create godoc
// @Summary Record a measurement
// @Description Creates a pending measurement detail. Project, contract, period and item must belong together and the period must not be archived.
// @Tags Measurement Details
// @Accept json
// @Produce json
// @Param request body domain.MeasurementDetailPayload true "Measurement data"
// @Success 201 {object} domain.MeasurementDetailDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /measurement-details [post]
func (h *MeasurementDetailHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload domain.MeasurementDetailPayload
	if !decodeAndValidate(w, r, &payload) {
		return
	}

	detail, err := h.detailService.Create(r.Context(), &payload)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to create measurement detail")
		return
	}
	w.Header().Set("Location", "/api/v1/measurement-details/"+itoa(detail.ID))
	respondJSON(w, http.StatusCreated, detail)
}

// Update godoc
// @Summary Update a measurement
// @Description Approved details cannot change. Updating a rejected detail resubmits it as pending.
// @Tags Measurement Details
// @Accept json
// @Produce json
// @Param id path int true "Measurement detail ID"
// @Param request body domain.MeasurementDetailPayload true "Measurement data"
// @Success 200 {object} domain.MeasurementDetailDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /measurement-details/{id} [put]
func (h *MeasurementDetailHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	var payload domain.MeasurementDetailPayload
	if !decodeAndValidate(w, r, &payload) {
		return
	}
	if payload.ID != 0 && payload.ID != id {
		respondWithError(w, http.StatusBadRequest, "Body id does not match path id")
		return
	}
	payload.ID = id

	detail, err := h.detailService.Update(r.Context(), id, &payload)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to update measurement detail")
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// Delete godoc
// @Summary Delete a measurement
// @Description Approved details cannot be deleted.
// @Tags Measurement Details
// @Param id path int true "Measurement detail ID"
// @Success 204
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /measurement-details/{id} [delete]
func (h *MeasurementDetailHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.detailService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to delete measurement detail")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Review godoc
// @Summary Approve or reject a measurement
// @Description Requires the reviewer or admin role. Only pending details can be reviewed unless the overwrite policy is configured.
// @Tags Measurement Details
// @Accept json
// @Produce json
// @Param id path int true "Measurement detail ID"
// @Param request body domain.ReviewMeasurementDetailRequest true "Review decision"
// @Success 200 {object} domain.MeasurementDetailDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /measurement-details/{id}/review [post]
func (h *MeasurementDetailHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req domain.ReviewMeasurementDetailRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.ID != id {
		respondWithError(w, http.StatusBadRequest, "Body id does not match path id")
		return
	}

	detail, err := h.detailService.Review(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to review measurement detail")
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// ListReviews godoc
// @Summary Review history of a measurement
// @Tags Measurement Details
// @Produce json
// @Param id path int true "Measurement detail ID"
// @Success 200 {object} domain.ListResponse{data=[]domain.MeasurementReviewDTO}
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /measurement-details/{id}/reviews [get]
func (h *MeasurementDetailHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	reviews, err := h.detailService.ListReviews(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to list reviews")
		return
	}
	respondList(w, reviews)
}
