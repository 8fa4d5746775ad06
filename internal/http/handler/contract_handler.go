package handler

import (
	"net/http"

	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/service"
	"go.uber.org/zap"
)

type ContractHandler struct {
	contractService *service.ContractService
	itemService     *service.MeasurementItemService
	logger          *zap.Logger
}

func NewContractHandler(contractService *service.ContractService, itemService *service.MeasurementItemService, logger *zap.Logger) *ContractHandler {
	return &ContractHandler{
		contractService: contractService,
		itemService:     itemService,
		logger:          logger,
	}
}

// List godoc
// @Summary List contracts of a project
// @Description Contracts come with their item catalog split into cost and material items.
// @Tags Contracts
// @Produce json
// @Param projectId query int true "Project ID"
// @Success 200 {object} domain.ListResponse{data=[]domain.ContractDTO}
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contracts [get]
func (h *ContractHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseIDQuery(r, "projectId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if projectID == 0 {
		respondWithError(w, http.StatusBadRequest, "projectId is required")
		return
	}

	contracts, err := h.contractService.ListByProject(r.Context(), projectID)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to list contracts")
		return
	}
	respondList(w, contracts)
}

// GetByID godoc
// @Summary Get contract
// @Tags Contracts
// @Produce json
// @Param id path int true "Contract ID"
// @Success 200 {object} domain.ContractDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contracts/{id} [get]
func (h *ContractHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	contract, err := h.contractService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to get contract")
		return
	}
	respondJSON(w, http.StatusOK, contract)
}

// GetSummary godoc
// @Summary Contract progress summary
// @Description Approved and pending measured amounts against the contract amount, plus the ERP invoiced amount when the data warehouse is available.
// @Tags Contracts
// @Produce json
// @Param id path int true "Contract ID"
// @Success 200 {object} domain.ContractSummaryDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contracts/{id}/summary [get]
func (h *ContractHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.contractService.GetSummary(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to get contract summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// Create godoc
// @Summary Create contract
// @Tags Contracts
// @Accept json
// @Produce json
// @Param request body domain.CreateContractRequest true "Contract data"
// @Success 201 {object} domain.ContractDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contracts [post]
func (h *ContractHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateContractRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	contract, err := h.contractService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to create contract")
		return
	}
	w.Header().Set("Location", "/api/v1/contracts/"+itoa(contract.ID))
	respondJSON(w, http.StatusCreated, contract)
}

// Update godoc
// @Summary Update contract
// @Tags Contracts
// @Accept json
// @Produce json
// @Param id path int true "Contract ID"
// @Param request body domain.UpdateContractRequest true "Contract data"
// @Success 200 {object} domain.ContractDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contracts/{id} [put]
func (h *ContractHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req domain.UpdateContractRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	contract, err := h.contractService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to update contract")
		return
	}
	respondJSON(w, http.StatusOK, contract)
}

// Delete godoc
// @Summary Delete contract
// @Description Deletes the contract and its item catalog. Refused while periods or measurement details reference it.
// @Tags Contracts
// @Param id path int true "Contract ID"
// @Success 204
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contracts/{id} [delete]
func (h *ContractHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.contractService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to delete contract")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListItems godoc
// @Summary List the item catalog of a contract
// @Tags Measurement Items
// @Produce json
// @Param id path int true "Contract ID"
// @Param type query string false "Item category" Enums(cost, material)
// @Success 200 {object} domain.ListResponse{data=[]domain.MeasurementItemDTO}
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contracts/{id}/items [get]
func (h *ContractHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	itemType := domain.MeasurementItemType(r.URL.Query().Get("type"))
	if itemType != "" && !itemType.IsValid() {
		respondWithError(w, http.StatusBadRequest, "type must be cost or material")
		return
	}

	items, err := h.itemService.ListByContract(r.Context(), id, itemType)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to list measurement items")
		return
	}
	respondList(w, items)
}

// CreateItem godoc
// @Summary Add an item to a contract's catalog
// @Tags Measurement Items
// @Accept json
// @Produce json
// @Param id path int true "Contract ID"
// @Param request body domain.CreateMeasurementItemRequest true "Item data"
// @Success 201 {object} domain.MeasurementItemDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contracts/{id}/items [post]
func (h *ContractHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req domain.CreateMeasurementItemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	item, err := h.itemService.Create(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "Failed to create measurement item")
		return
	}
	respondJSON(w, http.StatusCreated, item)
}
