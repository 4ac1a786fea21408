package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	Router *chi.Mux
}

func NewServer(handler *Handler) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/profiles", func(r chi.Router) {
		r.Post("/", handler.CreateProfile)
		r.Get("/", handler.ListProfiles)
		r.Get("/alias/{alias}", handler.GetProfileByAlias)
		r.Get("/{profileId}", handler.GetProfile)
		r.Post("/{profileId}/invoices", handler.CreateInvoice)
		r.Get("/{profileId}/invoices", handler.ListInvoices)
	})

	r.Route("/invoices", func(r chi.Router) {
		r.Get("/{invoiceId}", handler.GetInvoice)
		r.Get("/{invoiceId}/status", handler.GetInvoiceStatus)
		r.Get("/slug/{slug}", handler.GetInvoiceBySlug)
		r.Get("/slug/{slug}/status", handler.GetInvoiceStatusBySlug)
	})

	return &Server{Router: r}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
