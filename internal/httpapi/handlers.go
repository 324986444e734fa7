package httpapi

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"dialer-platform/internal/apperr"
	"dialer-platform/internal/appointments"
	"dialer-platform/internal/audit"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/calls"
	"dialer-platform/internal/dialer"
	"dialer-platform/internal/rbac"
	"dialer-platform/internal/reporting"
	"dialer-platform/internal/trash"
	"dialer-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Observer receives handler-level events for metrics. *metrics.Metrics satisfies it.
type Observer interface {
	RequestRejected(reason string)
	TrashRecorded(entity, operation string, affected int)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Engine       *dialer.Engine
	Appointments *appointments.Service
	Trash        *trash.Manager
	Reports      *reporting.Service
	Audit        *audit.Service
	Guard        *RequestGuard
	Observer     Observer
}

type actionFunc func(h *Handlers, c *gin.Context, actor auth.Identity)

type route struct {
	method string
	fn     actionFunc
}

var actions = map[string]route{
	"current":                   {http.MethodGet, (*Handlers).current},
	"request-next":              {http.MethodPost, (*Handlers).requestNext},
	"complete":                  {http.MethodPost, (*Handlers).complete},
	"followups":                 {http.MethodGet, (*Handlers).followups},
	"delete-followup":           {http.MethodPost, (*Handlers).deleteFollowup},
	"clear-all-followups":       {http.MethodPost, (*Handlers).clearFollowups},
	"all-leads":                 {http.MethodGet, (*Handlers).allLeads},
	"lead-calls":                {http.MethodGet, (*Handlers).leadCalls},
	"delete-lead":               {http.MethodPost, (*Handlers).deleteLead},
	"master-clear-leads":        {http.MethodPost, (*Handlers).masterClear},
	"trash":                     {http.MethodPost, (*Handlers).trash},
	"restore":                   {http.MethodPost, (*Handlers).restore},
	"permanent-delete":          {http.MethodPost, (*Handlers).permanentDelete},
	"bulk-trash-action":         {http.MethodPost, (*Handlers).bulkTrash},
	"create-appointment":        {http.MethodPost, (*Handlers).createAppointment},
	"appointments":              {http.MethodGet, (*Handlers).listAppointments},
	"update-appointment-status": {http.MethodPost, (*Handlers).updateAppointmentStatus},
	"stats":                     {http.MethodGet, (*Handlers).stats},
}

// ActionNames lists every action the dialer endpoint accepts, sorted.
func ActionNames() []string {
	out := make([]string, 0, len(actions))
	for name := range actions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dialer dispatches /v1/dialer?action=... to the matching action handler.
func (h *Handlers) Dialer(c *gin.Context) {
	name := strings.TrimSpace(c.Query("action"))
	rt, ok := actions[name]
	if !ok {
		badRequest(c, "Unknown action")
		return
	}
	if c.Request.Method != rt.method {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"error": "use " + rt.method + " for " + name})
		return
	}
	actor, err := auth.FromContext(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}
	c.Request = c.Request.WithContext(logger.With(c.Request.Context(),
		logger.FromGin(c).With("user_id", actor.UserID, "role", actor.Role)))
	rt.fn(h, c, actor)
}

// bindBody binds a JSON body. An empty body leaves dst at its zero value.
func bindBody(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		badRequest(c, bindMessage(err))
		return false
	}
	return true
}

// --- Queue ---

func (h *Handlers) current(c *gin.Context, actor auth.Identity) {
	l, ok, err := h.Engine.Current(c.Request.Context(), actor.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"lead": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lead": l})
}

func (h *Handlers) requestNext(c *gin.Context, actor auth.Identity) {
	var req requestNextRequest
	if !bindBody(c, &req) {
		return
	}
	release, ok := h.Guard.Acquire(c, actor.UserID)
	if !ok {
		h.rejected("request_guard")
		tooManyRequests(c)
		return
	}
	defer release()

	l, ok, err := h.Engine.RequestNext(c.Request.Context(), actor.UserID, req.CategoryFilter)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"lead": nil, "message": "No leads available"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lead": l})
}

func (h *Handlers) complete(c *gin.Context, actor auth.Identity) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindMessage(err))
		return
	}
	res, err := h.Engine.Complete(c.Request.Context(), dialer.CompleteRequest{
		LeadID:           req.LeadID,
		WorkerID:         actor.UserID,
		Outcome:          calls.Outcome(req.Outcome),
		Notes:            req.Notes,
		DurationSeconds:  req.Duration,
		FollowupAt:       req.FollowupAt,
		FollowupPriority: calls.Priority(req.FollowupPriority),
		FollowupNotes:    req.FollowupNotes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// --- Follow-ups ---

func (h *Handlers) followups(c *gin.Context, actor auth.Identity) {
	out, err := h.Engine.Followups(c.Request.Context(), actor, calls.Scope(c.Query("scope")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"followups": out})
}

func (h *Handlers) deleteFollowup(c *gin.Context, actor auth.Identity) {
	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindMessage(err))
		return
	}
	if err := h.Engine.DeleteFollowup(c.Request.Context(), actor, req.CallID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handlers) clearFollowups(c *gin.Context, actor auth.Identity) {
	var req scopeRequest
	if !bindBody(c, &req) {
		return
	}
	n, err := h.Engine.ClearFollowups(c.Request.Context(), actor, calls.Scope(req.Scope))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": n})
}

// --- Lead admin ---

func (h *Handlers) allLeads(c *gin.Context, actor auth.Identity) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	out, err := h.Engine.AllLeads(c.Request.Context(), actor, page, pageSize, c.Query("search"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) leadCalls(c *gin.Context, actor auth.Identity) {
	out, err := h.Engine.LeadCalls(c.Request.Context(), actor, c.Query("leadId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

func (h *Handlers) deleteLead(c *gin.Context, actor auth.Identity) {
	var req leadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindMessage(err))
		return
	}
	if err := h.Engine.DeleteLead(c.Request.Context(), actor, req.LeadID); err != nil {
		writeError(c, err)
		return
	}
	h.audit(c, actor, audit.Action{
		Name:       "delete-lead",
		EntityType: string(trash.EntityLeads),
		Affected:   1,
		Details:    map[string]any{"leadId": req.LeadID},
	})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handlers) masterClear(c *gin.Context, actor auth.Identity) {
	var req masterClearRequest
	if !bindBody(c, &req) {
		return
	}
	n, err := h.Engine.MasterClearLeads(c.Request.Context(), actor, req.Confirmation, req.ClearHistory)
	if err != nil {
		writeError(c, err)
		return
	}
	h.audit(c, actor, audit.Action{
		Name:        "master-clear-leads",
		EntityType:  string(trash.EntityLeads),
		Affected:    n,
		Destructive: true,
		Details:     map[string]any{"clearHistory": req.ClearHistory},
	})
	c.JSON(http.StatusOK, gin.H{"leadsDeleted": n})
}

// --- Trash ---

func (h *Handlers) trash(c *gin.Context, actor auth.Identity) {
	h.trashIDs(c, actor, "trash", false)
}

func (h *Handlers) restore(c *gin.Context, actor auth.Identity) {
	h.trashIDs(c, actor, "restore", false)
}

func (h *Handlers) permanentDelete(c *gin.Context, actor auth.Identity) {
	h.trashIDs(c, actor, "permanent-delete", true)
}

func (h *Handlers) trashIDs(c *gin.Context, actor auth.Identity, op string, destructive bool) {
	if !rbac.IsAdmin(actor.Role) {
		writeError(c, errForbiddenAdmin)
		return
	}
	var req trashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindMessage(err))
		return
	}
	ctx := c.Request.Context()
	entity := trash.EntityType(req.EntityType)

	var (
		n   int
		err error
	)
	switch op {
	case "trash":
		n, err = h.Trash.Trash(ctx, entity, req.IDs)
	case "restore":
		n, err = h.Trash.Restore(ctx, entity, req.IDs)
	default:
		n, err = h.Trash.PermanentDelete(ctx, entity, req.IDs, req.Confirmation)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	h.trashed(string(entity), op, n)
	h.audit(c, actor, audit.Action{
		Name:        op,
		EntityType:  string(entity),
		Affected:    n,
		Destructive: destructive,
		Details:     map[string]any{"ids": req.IDs},
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "affected": n})
}

func (h *Handlers) bulkTrash(c *gin.Context, actor auth.Identity) {
	if !rbac.IsAdmin(actor.Role) {
		writeError(c, errForbiddenAdmin)
		return
	}
	var req bulkTrashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindMessage(err))
		return
	}
	entity := trash.EntityType(req.EntityType)
	op := trash.Operation(req.Operation)
	n, err := h.Trash.BulkAction(c.Request.Context(), entity, op, trash.Scope(req.Scope), req.Confirmation)
	if err != nil {
		writeError(c, err)
		return
	}
	h.trashed(string(entity), "bulk-"+string(op), n)
	h.audit(c, actor, audit.Action{
		Name:        "bulk-trash-action",
		EntityType:  string(entity),
		Affected:    n,
		Destructive: op == trash.OpDelete,
		Details:     map[string]any{"operation": req.Operation, "scope": req.Scope},
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "affected": n})
}

// --- Appointments ---

func (h *Handlers) createAppointment(c *gin.Context, actor auth.Identity) {
	var req createAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindMessage(err))
		return
	}
	a, err := h.Appointments.Create(c.Request.Context(), actor, appointments.CreateRequest{
		LeadID:          req.LeadID,
		ScheduledAt:     req.ScheduledAt,
		Outcome:         appointments.Outcome(req.Outcome),
		SelectedPlan:    req.SelectedPlan,
		NegotiatedPrice: req.NegotiatedPrice,
		Notes:           req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment": a})
}

func (h *Handlers) listAppointments(c *gin.Context, actor auth.Identity) {
	trashed, _ := strconv.ParseBool(c.DefaultQuery("trashed", "false"))
	out, err := h.Appointments.List(c.Request.Context(), actor, trashed)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": out})
}

func (h *Handlers) updateAppointmentStatus(c *gin.Context, actor auth.Identity) {
	var req appointmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindMessage(err))
		return
	}
	a, err := h.Appointments.UpdateStatus(c.Request.Context(), actor, req.AppointmentID, appointments.Status(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment": a})
}

// --- Reporting ---

const defaultStatsWindow = 7 * 24 * time.Hour

func (h *Handlers) stats(c *gin.Context, actor auth.Identity) {
	to := time.Now().UTC()
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(c, "to must be RFC3339")
			return
		}
		to = t.UTC()
	}
	from := to.Add(-defaultStatsWindow)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(c, "from must be RFC3339")
			return
		}
		from = t.UTC()
	}
	out, err := h.Reports.Summary(c.Request.Context(), actor, calls.Scope(c.Query("scope")), c.Query("userId"),
		reporting.TimeRange{From: from, To: to})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": out})
}

// --- helpers ---

var errForbiddenAdmin = apperr.Forbidden("admin only")

// audit is best-effort: a failed write is logged and never fails the action.
func (h *Handlers) audit(c *gin.Context, actor auth.Identity, a audit.Action) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(c.Request.Context(), actor, c.ClientIP(), a); err != nil {
		logger.FromGin(c).Warn("audit write failed", "action", a.Name, "err", err)
	}
}

func (h *Handlers) rejected(reason string) {
	if h.Observer != nil {
		h.Observer.RequestRejected(reason)
	}
}

func (h *Handlers) trashed(entity, op string, n int) {
	if h.Observer != nil {
		h.Observer.TrashRecorded(entity, op, n)
	}
}
