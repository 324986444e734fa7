package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dialer-platform/internal/appointments"
	"dialer-platform/internal/audit"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/dialer"
	"dialer-platform/internal/leads"
	"dialer-platform/internal/rbac"
	"dialer-platform/internal/reporting"
	"dialer-platform/internal/trash"
	"dialer-platform/pkg/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router *gin.Engine
	store  *dialer.MemoryStore
	audits *audit.MemoryRepo
	redis  *redis.Client
}

// identityFromHeaders stands in for the JWT middleware.
func identityFromHeaders(c *gin.Context) {
	uid, role := c.GetHeader("X-Test-User"), c.GetHeader("X-Test-Role")
	if uid != "" {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), uid, role))
	}
	c.Next()
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	RegisterValidators()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})

	store := dialer.NewMemoryStore()
	apts := appointments.NewMemoryRepo()
	store.AddUnlinker(apts)
	workers := dialer.NewMemoryWorkers(
		dialer.Worker{ID: "w1", Name: "Worker One", Active: true},
		dialer.Worker{ID: "w2", Name: "Worker Two", Active: true},
	)
	mgr := trash.NewManager()
	mgr.Register(trash.EntityLeads, store.LeadTrash())
	mgr.Register(trash.EntityAppointments, apts)
	audits := audit.NewMemoryRepo()

	h := &Handlers{
		Engine:       dialer.NewEngine(store, workers, store.LeadTrash(), dialer.Options{LeaseTTL: 30 * time.Minute, MaxAttempts: 3}),
		Appointments: appointments.NewService(apts, store),
		Trash:        mgr,
		Reports:      reporting.NewService(reporting.NewMemoryRepo()),
		Audit:        audit.NewService(audits),
		Guard:        NewRequestGuard(rdb, 10*time.Second),
	}

	r := gin.New()
	r.Use(identityFromHeaders)
	r.GET("/v1/dialer", h.Dialer)
	r.POST("/v1/dialer", h.Dialer)
	return testEnv{router: r, store: store, audits: audits, redis: rdb}
}

func (e testEnv) do(t *testing.T, method, action, user, role string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/v1/dialer?action="+action, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
		req.Header.Set("X-Test-Role", role)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func (e testEnv) seed(ids ...string) {
	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range ids {
		at := base.Add(time.Duration(i) * time.Second)
		e.store.PutLead(leads.Lead{ID: id, Phone: "+1555000000" + string(rune('0'+i)), Name: "Lead " + id, CreatedAt: at, UpdatedAt: at})
	}
}

func TestDialer_UnknownActionAndMethod(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "teleport", "w1", rbac.RoleWorker, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Unknown action", body["error"])

	code, _ = env.do(t, http.MethodGet, "request-next", "w1", rbac.RoleWorker, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, code)

	code, _ = env.do(t, http.MethodGet, "current", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRequestNextCompleteFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seed("L1")

	code, body := env.do(t, http.MethodPost, "request-next", "w1", rbac.RoleWorker, nil)
	require.Equal(t, http.StatusOK, code)
	lead := body["lead"].(map[string]any)
	assert.Equal(t, "L1", lead["id"])
	assert.NotContains(t, lead, "locked_until")
	assert.NotContains(t, lead, "assigned_to")

	code, body = env.do(t, http.MethodGet, "current", "w1", rbac.RoleWorker, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "L1", body["lead"].(map[string]any)["id"])

	code, body = env.do(t, http.MethodPost, "request-next", "w2", rbac.RoleWorker, map[string]string{})
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, body["lead"])
	assert.Equal(t, "No leads available", body["message"])

	code, body = env.do(t, http.MethodPost, "complete", "w1", rbac.RoleWorker, map[string]any{
		"leadId": "L1", "outcome": "voicemail", "duration": 12,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "NEW", body["newStatus"])

	code, body = env.do(t, http.MethodGet, "current", "w1", rbac.RoleWorker, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, body["lead"])
}

func TestComplete_ValidationMessages(t *testing.T) {
	env := newTestEnv(t)
	env.seed("L1")
	_, _ = env.do(t, http.MethodPost, "request-next", "w1", rbac.RoleWorker, nil)

	code, body := env.do(t, http.MethodPost, "complete", "w1", rbac.RoleWorker, map[string]any{"leadId": "L1", "outcome": "maybe"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid outcome", body["error"])

	code, body = env.do(t, http.MethodPost, "complete", "w1", rbac.RoleWorker, map[string]any{"leadId": "L1", "outcome": "followup"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Select Follow-up Date", body["error"])

	code, body = env.do(t, http.MethodPost, "complete", "w1", rbac.RoleWorker, map[string]any{
		"leadId": "L1", "outcome": "followup", "followupAt": time.Now().Add(time.Hour), "followupPriority": "urgent",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid follow-up priority", body["error"])

	code, _ = env.do(t, http.MethodPost, "complete", "w2", rbac.RoleWorker, map[string]any{"leadId": "L1", "outcome": "voicemail"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = env.do(t, http.MethodPost, "complete", "w1", rbac.RoleWorker, map[string]any{"leadId": "nope", "outcome": "voicemail"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRequestNext_GuardRejectsConcurrentRequest(t *testing.T) {
	env := newTestEnv(t)
	env.seed("L1")

	// simulate an in-flight request for w1
	ok, err := utils.AcquireConcurrencyCap(t.Context(), env.redis, utils.GuardKey(guardScopeRequestNext, "w1"), 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	code, _ := env.do(t, http.MethodPost, "request-next", "w1", rbac.RoleWorker, nil)
	assert.Equal(t, http.StatusTooManyRequests, code)

	code, body := env.do(t, http.MethodPost, "request-next", "w2", rbac.RoleWorker, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.NotNil(t, body["lead"])
}

func TestFollowupsFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seed("L1")
	_, _ = env.do(t, http.MethodPost, "request-next", "w1", rbac.RoleWorker, nil)

	code, body := env.do(t, http.MethodPost, "complete", "w1", rbac.RoleWorker, map[string]any{
		"leadId": "L1", "outcome": "followup", "followupAt": time.Now().Add(24 * time.Hour), "followupPriority": "high",
	})
	require.Equal(t, http.StatusOK, code)
	callID := body["callId"].(string)

	code, body = env.do(t, http.MethodGet, "followups", "w1", rbac.RoleWorker, nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["followups"], 1)

	code, _ = env.do(t, http.MethodGet, "followups&scope=all", "w1", rbac.RoleWorker, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = env.do(t, http.MethodPost, "delete-followup", "w1", rbac.RoleWorker, map[string]string{"callId": callID})
	require.Equal(t, http.StatusOK, code)

	code, body = env.do(t, http.MethodGet, "followups", "w1", rbac.RoleWorker, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["followups"], 0)

	// the call itself survives
	code, body = env.do(t, http.MethodGet, "lead-calls&leadId=L1", "adm", rbac.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["calls"], 1)
}

func TestMasterClear_ConfirmationAndAudit(t *testing.T) {
	env := newTestEnv(t)
	env.seed("L1", "L2")

	code, body := env.do(t, http.MethodPost, "master-clear-leads", "w1", rbac.RoleWorker, map[string]any{"confirmation": "DELETE ALL LEADS"})
	assert.Equal(t, http.StatusForbidden, code)

	code, body = env.do(t, http.MethodPost, "master-clear-leads", "adm", rbac.RoleAdmin, map[string]any{"confirmation": "delete all leads"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "confirmation_mismatch", body["code"])
	_, ok := env.store.Lead("L1")
	assert.True(t, ok)
	assert.Empty(t, env.audits.Events())

	code, body = env.do(t, http.MethodPost, "master-clear-leads", "adm", rbac.RoleAdmin, map[string]any{"confirmation": "DELETE ALL LEADS", "clearHistory": true})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["leadsDeleted"])

	events := env.audits.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "master-clear-leads", events[0].Action)
	assert.Equal(t, audit.EventTypeDestructive, events[0].Type)
	assert.Equal(t, 2, events[0].Affected)
}

func TestTrashActions(t *testing.T) {
	env := newTestEnv(t)
	env.seed("L1", "L2")

	code, _ := env.do(t, http.MethodPost, "trash", "w1", rbac.RoleWorker, map[string]any{"entityType": "leads", "ids": []string{"L1"}})
	assert.Equal(t, http.StatusForbidden, code)

	code, body := env.do(t, http.MethodPost, "trash", "adm", rbac.RoleAdmin, map[string]any{"entityType": "widgets", "ids": []string{"L1"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid entity type", body["error"])

	code, body = env.do(t, http.MethodPost, "trash", "adm", rbac.RoleAdmin, map[string]any{"entityType": "leads", "ids": []string{"L1"}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["affected"])

	code, body = env.do(t, http.MethodPost, "permanent-delete", "adm", rbac.RoleAdmin, map[string]any{"entityType": "leads", "ids": []string{"L1"}, "confirmation": "yes"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "confirmation_mismatch", body["code"])

	code, _ = env.do(t, http.MethodPost, "restore", "adm", rbac.RoleAdmin, map[string]any{"entityType": "leads", "ids": []string{"L1"}})
	require.Equal(t, http.StatusOK, code)

	code, body = env.do(t, http.MethodPost, "bulk-trash-action", "adm", rbac.RoleAdmin, map[string]any{
		"entityType": "leads", "operation": "trash", "scope": "all", "confirmation": "DELETE",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["affected"])

	code, body = env.do(t, http.MethodPost, "bulk-trash-action", "adm", rbac.RoleAdmin, map[string]any{
		"entityType": "leads", "operation": "shred", "scope": "all", "confirmation": "DELETE",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = env.do(t, http.MethodPost, "bulk-trash-action", "adm", rbac.RoleAdmin, map[string]any{
		"entityType": "leads", "operation": "delete", "scope": "all", "confirmation": "DELETE",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["affected"])
	_, ok := env.store.Lead("L2")
	assert.False(t, ok)
}

func TestAppointmentsAndStats(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "create-appointment", "w1", rbac.RoleWorker, map[string]any{
		"scheduledAt": time.Now().Add(48 * time.Hour), "outcome": "manual", "selectedPlan": "pro",
	})
	require.Equal(t, http.StatusOK, code)
	id := body["appointment"].(map[string]any)["id"].(string)

	code, body = env.do(t, http.MethodPost, "create-appointment", "w1", rbac.RoleWorker, map[string]any{
		"scheduledAt": time.Now().Add(48 * time.Hour), "outcome": "walk-in",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid appointment outcome", body["error"])

	code, body = env.do(t, http.MethodGet, "appointments", "w1", rbac.RoleWorker, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["appointments"], 1)

	code, body = env.do(t, http.MethodPost, "update-appointment-status", "w1", rbac.RoleWorker, map[string]any{
		"appointmentId": id, "status": "completed",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "completed", body["appointment"].(map[string]any)["status"])

	code, body = env.do(t, http.MethodGet, "stats", "w1", rbac.RoleWorker, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), body["summary"].(map[string]any)["total_calls"])

	code, _ = env.do(t, http.MethodGet, "stats&scope=all", "w1", rbac.RoleWorker, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = env.do(t, http.MethodGet, "stats&from=yesterday", "adm", rbac.RoleAdmin, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestActionNamesCoverDispatchTable(t *testing.T) {
	names := ActionNames()
	assert.Len(t, names, len(actions))
	assert.Contains(t, names, "request-next")
	assert.Contains(t, names, "bulk-trash-action")
	assert.IsIncreasing(t, names)
}
