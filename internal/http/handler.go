package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/CloakLink/CloakLinkSOL/internal/models"
	"github.com/CloakLink/CloakLinkSOL/internal/services"
)

type Handler struct {
	Profiles *services.ProfileService
	Invoices *services.InvoiceService
}

func NewHandler(profiles *services.ProfileService, invoices *services.InvoiceService) *Handler {
	return &Handler{Profiles: profiles, Invoices: invoices}
}

type createProfileRequest struct {
	Alias          string `json:"alias"`
	ReceiveAddress string `json:"receiveAddress"`
	DefaultChain   string `json:"defaultChain"`
}

type profileResponse struct {
	ID             string `json:"id"`
	Alias          string `json:"alias"`
	ReceiveAddress string `json:"receiveAddress"`
	DefaultChain   string `json:"defaultChain"`
	CreatedAt      string `json:"createdAt"`
}

type createInvoiceRequest struct {
	Amount       json.Number `json:"amount"`
	TokenSymbol  string      `json:"tokenSymbol"`
	TokenAddress string      `json:"tokenAddress,omitempty"`
	Chain        string      `json:"chain,omitempty"`
	Description  string      `json:"description,omitempty"`
	Slug         string      `json:"slug,omitempty"`
}

type invoiceResponse struct {
	ID             string  `json:"id"`
	Slug           string  `json:"slug"`
	Amount         string  `json:"amount"`
	TokenSymbol    string  `json:"tokenSymbol"`
	TokenAddress   *string `json:"tokenAddress,omitempty"`
	Chain          string  `json:"chain"`
	ReceiveAddress string  `json:"receiveAddress"`
	Description    *string `json:"description,omitempty"`
	Status         string  `json:"status"`
	TxHash         *string `json:"txHash,omitempty"`
	PaidAt         string  `json:"paidAt,omitempty"`
	ProfileAlias   string  `json:"profileAlias,omitempty"`
	CreatedAt      string  `json:"createdAt"`
}

func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	profile, err := h.Profiles.CreateProfile(r.Context(), req.Alias, req.ReceiveAddress, req.DefaultChain)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAlias),
			errors.Is(err, services.ErrInvalidAddress),
			errors.Is(err, services.ErrInvalidChain):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "create profile failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, toProfileResponse(profile))
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Profiles.GetProfile(r.Context(), chi.URLParam(r, "profileId"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get profile failed")
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) GetProfileByAlias(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Profiles.GetProfileByAlias(r.Context(), chi.URLParam(r, "alias"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get profile failed")
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.Profiles.ListProfiles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list profiles failed")
		return
	}
	out := make([]profileResponse, 0, len(profiles))
	for _, profile := range profiles {
		out = append(out, toProfileResponse(profile))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	profile, err := h.Profiles.GetProfile(r.Context(), chi.URLParam(r, "profileId"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get profile failed")
		return
	}

	invoice, err := h.Invoices.CreateInvoice(r.Context(), profile, services.CreateInvoiceInput{
		Amount:       req.Amount.String(),
		TokenSymbol:  req.TokenSymbol,
		TokenAddress: req.TokenAddress,
		Chain:        req.Chain,
		Description:  req.Description,
		Slug:         req.Slug,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount),
			errors.Is(err, services.ErrInvalidTokenSymbol),
			errors.Is(err, services.ErrInvalidTokenAddress),
			errors.Is(err, services.ErrInvalidSlug):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "create invoice failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceResponse(invoice, ""))
}

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Invoices.ListInvoicesByProfile(r.Context(), chi.URLParam(r, "profileId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list invoices failed")
		return
	}
	out := make([]invoiceResponse, 0, len(invoices))
	for _, invoice := range invoices {
		out = append(out, toInvoiceResponse(invoice, ""))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.Invoices.GetInvoice(r.Context(), chi.URLParam(r, "invoiceId"))
	if err != nil {
		h.invoiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(invoice, ""))
}

func (h *Handler) GetInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.Invoices.GetInvoice(r.Context(), chi.URLParam(r, "invoiceId"))
	if err != nil {
		h.invoiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(invoice.Status)})
}

func (h *Handler) GetInvoiceBySlug(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.Invoices.GetInvoiceBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.invoiceError(w, err)
		return
	}

	alias := ""
	if profile, err := h.Profiles.GetProfile(r.Context(), invoice.ProfileID); err == nil {
		alias = profile.Alias
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(invoice, alias))
}

func (h *Handler) GetInvoiceStatusBySlug(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.Invoices.GetInvoiceBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.invoiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(invoice.Status)})
}

func (h *Handler) invoiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "invoice not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "get invoice failed")
}

func toProfileResponse(profile *models.Profile) profileResponse {
	return profileResponse{
		ID:             profile.ID,
		Alias:          profile.Alias,
		ReceiveAddress: profile.ReceiveAddress,
		DefaultChain:   profile.DefaultChain,
		CreatedAt:      profile.CreatedAt.Format(time.RFC3339),
	}
}

func toInvoiceResponse(invoice *models.Invoice, profileAlias string) invoiceResponse {
	resp := invoiceResponse{
		ID:             invoice.ID,
		Slug:           invoice.Slug,
		Amount:         invoice.Amount,
		TokenSymbol:    invoice.TokenSymbol,
		TokenAddress:   invoice.TokenAddress,
		Chain:          invoice.Chain,
		ReceiveAddress: invoice.ReceiveAddress,
		Description:    invoice.Description,
		Status:         string(invoice.Status),
		TxHash:         invoice.TxHash,
		ProfileAlias:   profileAlias,
		CreatedAt:      invoice.CreatedAt.Format(time.RFC3339),
	}
	if invoice.PaidAt != nil {
		resp.PaidAt = invoice.PaidAt.Format(time.RFC3339)
	}
	return resp
}
