package handlers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"conciliacontag/internal/config"
	"conciliacontag/internal/locker"
	"conciliacontag/internal/matching"
	"conciliacontag/internal/repositories"
	"conciliacontag/internal/rules"
	"conciliacontag/internal/services"
)

func SetupRouter(db *sql.DB, cfg *config.Config) *mux.Router {
	companyRepo := repositories.NewCompanyRepository(db)
	importRepo := repositories.NewImportRepository(db)
	ruleRepo := repositories.NewRuleRepository(db)
	ledgerRepo := repositories.NewLedgerRepository(db)

	ruleStore := rules.NewStore(db, ruleRepo, cfg.Engine.RuleCacheTTL, locker.New())
	engine := matching.NewEngine(ruleStore, cfg.Engine.SimilarityThreshold)

	importService := services.NewImportService(db, importRepo)
	reconciliationService := services.NewReconciliationService(
		db, importRepo, ledgerRepo, ruleStore, engine, cfg.Engine.ClassifyWorkers,
	)

	companyHandler := NewCompanyHandler(companyRepo, ruleStore)
	importHandler := NewImportHandler(importService)
	reconciliationHandler := NewReconciliationHandler(reconciliationService)

	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()

	api.Use(loggingMiddleware)
	api.Use(jsonContentTypeMiddleware)

	api.HandleFunc("/companies", companyHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/companies", companyHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/companies/{id:[0-9]+}", companyHandler.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/companies/{id:[0-9]+}/rules", companyHandler.PurgeRules).Methods(http.MethodDelete)

	api.HandleFunc("/companies/{id:[0-9]+}/imports/bank", importHandler.ImportBankTransactions).Methods(http.MethodPost)
	api.HandleFunc("/companies/{id:[0-9]+}/imports/billing", importHandler.ImportBillingRecords).Methods(http.MethodPost)

	api.HandleFunc("/companies/{id:[0-9]+}/reconciliations", reconciliationHandler.Start).Methods(http.MethodPost)
	api.HandleFunc("/companies/{id:[0-9]+}/reconciliations/confirm", reconciliationHandler.ConfirmMatches).Methods(http.MethodPost)
	api.HandleFunc("/reconciliations/{batchID}", reconciliationHandler.Get).Methods(http.MethodGet)

	router.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)

	return router
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("failed to encode response: %v", err)
		}
	}
}
