package httpapi

import "time"

type requestNextRequest struct {
	CategoryFilter string `json:"categoryFilter"`
}

type completeRequest struct {
	LeadID           string     `json:"leadId" binding:"required"`
	Outcome          string     `json:"outcome" binding:"dialer_outcome"`
	Notes            string     `json:"notes"`
	FollowupAt       *time.Time `json:"followupAt"`
	FollowupPriority string     `json:"followupPriority" binding:"followup_priority"`
	FollowupNotes    string     `json:"followupNotes"`
	Duration         int        `json:"duration" binding:"gte=0"`
}

type callRequest struct {
	CallID string `json:"callId" binding:"required"`
}

type scopeRequest struct {
	Scope string `json:"scope"`
}

type leadRequest struct {
	LeadID string `json:"leadId" binding:"required"`
}

type masterClearRequest struct {
	Confirmation string `json:"confirmation"`
	ClearHistory bool   `json:"clearHistory"`
}

type trashRequest struct {
	EntityType   string   `json:"entityType" binding:"trash_entity"`
	IDs          []string `json:"ids" binding:"required,min=1"`
	Confirmation string   `json:"confirmation"`
}

type bulkTrashRequest struct {
	EntityType   string `json:"entityType" binding:"trash_entity"`
	Operation    string `json:"operation" binding:"required"`
	Scope        string `json:"scope" binding:"required"`
	Confirmation string `json:"confirmation"`
}

type createAppointmentRequest struct {
	LeadID          string    `json:"leadId"`
	ScheduledAt     time.Time `json:"scheduledAt"`
	Outcome         string    `json:"outcome" binding:"appointment_outcome"`
	SelectedPlan    string    `json:"selectedPlan"`
	NegotiatedPrice *int64    `json:"negotiatedPrice"`
	Notes           string    `json:"notes"`
}

type appointmentStatusRequest struct {
	AppointmentID string `json:"appointmentId" binding:"required"`
	Status        string `json:"status" binding:"required"`
}
