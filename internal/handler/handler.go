package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/auth"
	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	service "github.com/honeynil/CrowdfundServiceTochka/internal/services"
	pkgerrors "github.com/honeynil/CrowdfundServiceTochka/pkg/errors"
)

type Services struct {
	Campaigns  service.CampaignService
	Donations  service.DonationService
	Reviews    service.ReviewService
	Messages   service.MessageService
	Dashboards service.DashboardService
}

type Handler struct {
	campaigns  service.CampaignService
	donations  service.DonationService
	reviews    service.ReviewService
	messages   service.MessageService
	dashboards service.DashboardService
}

func NewHandler(s Services) *Handler {
	return &Handler{
		campaigns:  s.Campaigns,
		donations:  s.Donations,
		reviews:    s.Reviews,
		messages:   s.Messages,
		dashboards: s.Dashboards,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// donationResponse carries a recorded donation whose campaign total is
// still pending reconciliation.
type donationResponse struct {
	Donation *models.Donation `json:"donation"`
	Warning  string           `json:"warning,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// fail maps the error taxonomy onto HTTP statuses.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, pkgerrors.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		h.writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, pkgerrors.ErrForbidden):
		h.writeError(w, http.StatusForbidden, err)
	case errors.Is(err, pkgerrors.ErrRequestAlreadyProcessed), errors.Is(err, pkgerrors.ErrDuplicateID):
		h.writeError(w, http.StatusConflict, err)
	default:
		h.writeError(w, http.StatusInternalServerError, err)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
	}
	return actor, ok
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/campaigns", h.ListCampaigns).Methods("GET")
	r.HandleFunc("/campaigns/{id}", h.GetCampaign).Methods("GET")
	r.HandleFunc("/campaigns/{id}/donations", h.ListCampaignDonations).Methods("GET")
	r.HandleFunc("/reviews", h.ListReviews).Methods("GET")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/donations", h.Donate).Methods("POST")
	r.HandleFunc("/me/donations", h.MyDonations).Methods("GET")
	r.HandleFunc("/me/stats", h.MyStats).Methods("GET")
	r.HandleFunc("/me/review", h.MyReview).Methods("GET")
	r.HandleFunc("/reviews", h.UpsertReview).Methods("PUT")
	r.HandleFunc("/reviews", h.DeleteReview).Methods("DELETE")
	r.HandleFunc("/threads", h.StartThread).Methods("POST")
	r.HandleFunc("/threads", h.ListThreads).Methods("GET")
	r.HandleFunc("/threads/{id}/replies", h.Reply).Methods("POST")
}

func (h *Handler) RegisterCharityRoutes(r *mux.Router) {
	r.HandleFunc("/campaigns", h.CreateCampaign).Methods("POST")
	r.HandleFunc("/campaigns/{id}", h.UpdateCampaign).Methods("PATCH")
	r.HandleFunc("/charity/stats", h.CharityStats).Methods("GET")
}

func (h *Handler) RegisterAdminRoutes(r *mux.Router) {
	r.HandleFunc("/admin/campaigns", h.AdminListCampaigns).Methods("GET")
	r.HandleFunc("/admin/campaigns/{id}/approve", h.ApproveCampaign).Methods("POST")
	r.HandleFunc("/admin/campaigns/{id}/reject", h.RejectCampaign).Methods("POST")
	r.HandleFunc("/admin/campaigns/{id}/reconcile", h.ReconcileCampaign).Methods("POST")
	r.HandleFunc("/admin/campaigns/{id}", h.DeleteCampaign).Methods("DELETE")
	r.HandleFunc("/admin/stats", h.AdminStats).Methods("GET")
}

func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	views, err := h.campaigns.ListPublic(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, views)
}

// GetCampaign serves approved campaigns to everyone. Pending and rejected
// ones are visible only to their charity and admins.
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	view, err := h.campaigns.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	actor, _ := auth.ActorFrom(r.Context())
	if !view.VisibleTo(actor) {
		h.fail(w, pkgerrors.NotFound("campaign", view.ID))
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) ListCampaignDonations(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	donations, err := h.donations.ListByCampaign(r.Context(), mux.Vars(r)["id"], actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, donations)
}

func (h *Handler) Donate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req service.DonateRequest
	if !h.decode(w, r, &req) {
		return
	}

	d, err := h.donations.Donate(r.Context(), actor, req)
	if errors.Is(err, pkgerrors.ErrPartialFailure) && d != nil {
		h.writeJSON(w, http.StatusAccepted, donationResponse{Donation: d, Warning: err.Error()})
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, donationResponse{Donation: d})
}

func (h *Handler) MyDonations(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	donations, err := h.donations.ListByDonor(r.Context(), actor.UID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, donations)
}

func (h *Handler) MyStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	dashboard, err := h.dashboards.Donor(r.Context(), actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dashboard)
}

func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reviews.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) MyReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	review, err := h.reviews.Mine(r.Context(), actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, review)
}

func (h *Handler) UpsertReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	review, err := h.reviews.Upsert(r.Context(), actor, req.Rating, req.Comment)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, review)
}

func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.reviews.Delete(r.Context(), actor); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) StartThread(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	thread, err := h.messages.StartThread(r.Context(), actor, req.Subject, req.Body)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, thread)
}

func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	msg, err := h.messages.Reply(r.Context(), actor, mux.Vars(r)["id"], req.Body)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	threads, err := h.messages.Threads(r.Context(), actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, threads)
}

func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req service.CreateCampaignInput
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.campaigns.Create(r.Context(), actor, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	// Only descriptive fields are accepted; counters belong to the ledger.
	var req struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Category    *string    `json:"category"`
		ImageURL    *string    `json:"image_url"`
		EndDate     *time.Time `json:"end_date"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.campaigns.Update(r.Context(), actor, mux.Vars(r)["id"], models.CampaignPatch{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		EndDate:     req.EndDate,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

func (h *Handler) CharityStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	summary, err := h.dashboards.Charity(r.Context(), actor.UID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) AdminListCampaigns(w http.ResponseWriter, r *http.Request) {
	filter := models.CampaignFilter{
		Status:    models.CampaignStatus(r.URL.Query().Get("status")),
		CharityID: r.URL.Query().Get("charity_id"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		h.fail(w, pkgerrors.Invalid("status", "unknown campaign status"))
		return
	}
	views, err := h.campaigns.List(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) ApproveCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Approve(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

func (h *Handler) RejectCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Reject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

func (h *Handler) ReconcileCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Reconcile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dashboards.Admin(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}
