package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"conciliacontag/internal/dedup"
	"conciliacontag/internal/models"
	"conciliacontag/internal/rules"
	"conciliacontag/internal/services"
)

type ReconciliationHandler struct {
	reconciliationService *services.ReconciliationService
}

func NewReconciliationHandler(reconciliationService *services.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliationService: reconciliationService}
}

type StartReconciliationRequest struct {
	DebitAccount string                `json:"debit_account"`
	Chart        []models.ChartAccount `json:"chart"`
	Force        bool                  `json:"force"`
}

type ConfirmMatchesRequest struct {
	Confirmations []services.Confirmation `json:"confirmations"`
}

type ConfirmMatchesResponse struct {
	Learned int `json:"learned"`
}

type ReconciliationResponse struct {
	Batch   *models.ReconciliationBatch `json:"batch"`
	Entries []models.LedgerEntry        `json:"entries"`
}

func (h *ReconciliationHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := companyID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid company id")
		return
	}

	var request StartReconciliationRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if strings.TrimSpace(request.DebitAccount) == "" {
		respondWithError(w, http.StatusBadRequest, "debit_account is required")
		return
	}

	result, err := h.reconciliationService.Run(r.Context(), id, request.DebitAccount, request.Chart, request.Force)
	if err != nil {
		var dupErr *dedup.DuplicateFileError
		if errors.As(err, &dupErr) {
			respondWithJSON(w, http.StatusConflict, map[string]interface{}{
				"error":              "already reconciled",
				"reconciled_origins": dupErr.Files,
			})
			return
		}
		if errors.Is(err, services.ErrRunInProgress) {
			respondWithError(w, http.StatusConflict, err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *ReconciliationHandler) ConfirmMatches(w http.ResponseWriter, r *http.Request) {
	id, err := companyID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid company id")
		return
	}

	var request ConfirmMatchesRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if len(request.Confirmations) == 0 {
		respondWithError(w, http.StatusBadRequest, "No confirmations provided")
		return
	}

	learned, err := h.reconciliationService.ConfirmMatches(r.Context(), id, request.Confirmations)
	if err != nil {
		// A concurrent writer won the batch; the confirmation set is safe
		// to re-submit as-is.
		if errors.Is(err, rules.ErrConflict) {
			respondWithError(w, http.StatusConflict, err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, ConfirmMatchesResponse{Learned: learned})
}

func (h *ReconciliationHandler) Get(w http.ResponseWriter, r *http.Request) {
	batchID := mux.Vars(r)["batchID"]
	if batchID == "" {
		respondWithError(w, http.StatusBadRequest, "Invalid batch id")
		return
	}

	batch, entries, err := h.reconciliationService.GetReconciliation(r.Context(), batchID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, ReconciliationResponse{Batch: batch, Entries: entries})
}
