package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"conciliacontag/internal/models"
	"conciliacontag/internal/repositories"
	"conciliacontag/internal/rules"
)

type CompanyHandler struct {
	companyRepo repositories.CompanyRepository
	ruleStore   *rules.Store
}

func NewCompanyHandler(companyRepo repositories.CompanyRepository, ruleStore *rules.Store) *CompanyHandler {
	return &CompanyHandler{
		companyRepo: companyRepo,
		ruleStore:   ruleStore,
	}
}

func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var company models.Company
	if err := json.NewDecoder(r.Body).Decode(&company); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if company.Name == "" {
		respondWithError(w, http.StatusBadRequest, "nome is required")
		return
	}

	if err := h.companyRepo.CreateCompany(r.Context(), &company); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, company)
}

func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	companies, err := h.companyRepo.GetCompanies(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, companies)
}

// Delete removes the company and, through the cascading schema, every
// import, billing row, rule and ledger entry it owns.
func (h *CompanyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := companyID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid company id")
		return
	}

	if err := h.companyRepo.DeleteCompany(r.Context(), id); err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "company deleted"})
}

// PurgeRules is the explicit company-level rule purge; the only rule
// deletion path short of deleting the company itself.
func (h *CompanyHandler) PurgeRules(w http.ResponseWriter, r *http.Request) {
	id, err := companyID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid company id")
		return
	}

	if err := h.ruleStore.PurgeCompany(r.Context(), id); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "rules purged"})
}

func companyID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}
