// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/qrneighbor/sms-dispatch/internal/errors"
	"github.com/qrneighbor/sms-dispatch/internal/model"
	"github.com/qrneighbor/sms-dispatch/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Business    string  `json:"business"`
		Body        string  `json:"body"`
		Mode        string  `json:"mode"`
		ScheduledAt *string `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	var scheduledAt *time.Time
	if body.ScheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *body.ScheduledAt)
		if err != nil {
			http.Error(w, "scheduled_at must be RFC3339", http.StatusBadRequest)
			return
		}
		scheduledAt = &t
	}

	if body.Mode == "" {
		body.Mode = model.CampaignModeNow
	}

	campaign, err := c.CampaignService.Create(body.Business, body.Body, body.Mode, scheduledAt)
	if err != nil {
		writeServiceError(w, err, http.StatusBadRequest)
		return
	}

	// Immediate campaigns run synchronously as part of the operator action.
	if campaign.Mode == model.CampaignModeNow {
		result, err := c.CampaignService.Run(r.Context(), campaign.ID)
		if err != nil {
			writeServiceError(w, err, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(result)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	business := r.URL.Query().Get("business")
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.List(page, pageSize, business, status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, _ := strconv.Atoi(idStr)

	details, err := c.CampaignService.DetailsWithStats(id)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(details)
}

func (c *CampaignController) SendCampaign(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, _ := strconv.Atoi(idStr)

	result, err := c.CampaignService.Run(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(result)
}

func (c *CampaignController) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, _ := strconv.Atoi(idStr)

	if err := c.CampaignService.Cancel(id); err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"campaign_id": id,
		"status":      model.CampaignCancelled,
	})
}

// writeServiceError maps domain errors onto HTTP statuses; anything
// unrecognized gets the fallback.
func writeServiceError(w http.ResponseWriter, err error, fallback int) {
	var campaignNotFound *appErrors.ErrCampaignNotFound
	var businessNotFound *appErrors.ErrBusinessNotFound
	var invalidPhone *appErrors.ErrInvalidPhone
	var invalidTransition *appErrors.ErrInvalidTransition

	switch {
	case errors.As(err, &campaignNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &businessNotFound):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &invalidPhone):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &invalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), fallback)
	}
}
