// internal/controller/subscriber_controller.go
package controller

import (
	"encoding/json"
	"net/http"

	"github.com/qrneighbor/sms-dispatch/internal/service"
)

type SubscriberController struct {
	SubscriberService *service.SubscriberService
}

// CreateSubscriber is the lead-capture endpoint; it also triggers the
// business's welcome message.
func (c *SubscriberController) CreateSubscriber(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Business string `json:"business"`
		Phone    string `json:"phone"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Business == "" || body.Phone == "" {
		http.Error(w, "business and phone are required", http.StatusBadRequest)
		return
	}

	sub, err := c.SubscriberService.Capture(r.Context(), body.Business, body.Phone, body.Name)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sub)
}
