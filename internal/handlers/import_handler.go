package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"conciliacontag/internal/dedup"
	"conciliacontag/internal/models"
	"conciliacontag/internal/services"
)

type ImportHandler struct {
	importService *services.ImportService
}

func NewImportHandler(importService *services.ImportService) *ImportHandler {
	return &ImportHandler{importService: importService}
}

type BankTransactionsRequest struct {
	Transactions []models.BankTransaction `json:"transactions"`
}

type BillingRecordsRequest struct {
	Records []models.BillingRecord `json:"records"`
}

func (h *ImportHandler) ImportBankTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := companyID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid company id")
		return
	}

	var request BankTransactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if len(request.Transactions) == 0 {
		respondWithError(w, http.StatusBadRequest, "No transactions provided")
		return
	}

	force := r.URL.Query().Get("force") == "true"
	result, err := h.importService.ImportBankTransactions(r.Context(), id, request.Transactions, force)
	if err != nil {
		respondImportError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *ImportHandler) ImportBillingRecords(w http.ResponseWriter, r *http.Request) {
	id, err := companyID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid company id")
		return
	}

	var request BillingRecordsRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if len(request.Records) == 0 {
		respondWithError(w, http.StatusBadRequest, "No records provided")
		return
	}

	force := r.URL.Query().Get("force") == "true"
	result, err := h.importService.ImportBillingRecords(r.Context(), id, request.Records, force)
	if err != nil {
		respondImportError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

// respondImportError maps the engine error taxonomy onto HTTP statuses: a
// duplicate file is a conflict the caller may force, a validation failure
// names the offending rows, anything else is a server-side failure.
func respondImportError(w http.ResponseWriter, err error) {
	var dupErr *dedup.DuplicateFileError
	if errors.As(err, &dupErr) {
		respondWithJSON(w, http.StatusConflict, map[string]interface{}{
			"error":           "duplicate file",
			"duplicate_files": dupErr.Files,
		})
		return
	}
	var valErr *services.ValidationError
	if errors.As(err, &valErr) {
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondWithError(w, http.StatusInternalServerError, err.Error())
}
