package handler

import (
	"net/http"

	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/service"
	"go.uber.org/zap"
)

type MeasurementItemHandler struct {
	itemService *service.MeasurementItemService
	logger      *zap.Logger
}

func NewMeasurementItemHandler(itemService *service.MeasurementItemService, logger *zap.Logger) *MeasurementItemHandler {
	return &MeasurementItemHandler{itemService: itemService, logger: logger}
}

// Update godoc
// @Summary Update measurement item
// @Tags Measurement Items
// @Accept json
// @Produce json
// @Param id path int true "Measurement item ID"
// @Param request body domain.UpdateMeasurementItemRequest true "Item data"
// @Success 200 {object} domain.MeasurementItemDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /measurement-items/{id} [put]
func (h *MeasurementItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req domain.UpdateMeasurementItemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	item, err := h.itemService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to update measurement item")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// Delete godoc
// @Summary Delete measurement item
// @Description Refused while measurement details reference the item.
// @Tags Measurement Items
// @Param id path int true "Measurement item ID"
// @Success 204
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /measurement-items/{id} [delete]
func (h *MeasurementItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.itemService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to delete measurement item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
