package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"timezone-scheduler/core/cache"
	"timezone-scheduler/core/config"
	"timezone-scheduler/core/constants"
	"timezone-scheduler/core/database"
	"timezone-scheduler/core/errors"
	"timezone-scheduler/core/middleware"
	"timezone-scheduler/core/utils"
	"timezone-scheduler/modules/repairlog"
	"timezone-scheduler/modules/scheduler/entity"
	"timezone-scheduler/modules/scheduler/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "dispatch-test-secret"

type actionResult struct {
	Success   bool             `json:"success"`
	Data      json.RawMessage  `json:"data"`
	Message   string           `json:"message"`
	Code      errors.ErrorCode `json:"code"`
	Retryable bool             `json:"retryable"`
}

type harness struct {
	e     *echo.Echo
	comps *Components
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.InitDB(database.DatabaseConfig{Driver: database.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	cfg := &config.Config{
		Server: config.ServerConfig{BaseURL: "https://example.test"},
		Scheduler: config.SchedulerConfig{
			ProjectID:        12,
			ProjectTitle:     "Study",
			ServerTimezone:   "America/New_York",
			LockWait:         50 * time.Millisecond,
			CancelLinkSecret: "cancel-secret",
			Instances: []config.InstanceConfig{{
				SlotProjectID:      5,
				SlotIDField:        "appt_slot",
				SlotIDFieldEventID: 88,
				ApptCancelURLField: "appt_cancel",
				ButtonLabel:        "Book",
			}},
		},
	}

	e := echo.New()
	mw := middleware.NewMiddleware(jwtSecret, 100, 100)
	repairs := repairlog.Init(e.Group("/api/v1"), db, mw)
	comps, err := Init(e, db, cache.NewLocalLocker(), cfg, repairs, mw)
	require.NoError(t, err)

	slots := repository.NewSlotRepository(db, comps.Registry)
	for _, slot := range []entity.Slot{
		{ID: "7", Date: "2099-11-01", Time: "09:00", Title: "Intake"},
		{ID: "9", Date: "2099-11-02", Time: "10:00", Title: "Follow-up"},
	} {
		slot := slot
		require.NoError(t, slots.Save(context.Background(), "appt_slot|88", &slot))
	}
	return &harness{e: e, comps: comps}
}

func token(t *testing.T, recordID string, privileged bool) string {
	t.Helper()
	tok, err := utils.GenerateToken(jwtSecret, &utils.TokenClaims{
		ProjectID:        12,
		RecordID:         recordID,
		EventID:          88,
		Instance:         1,
		Privileged:       privileged,
		Scope:            constants.ScopeTokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-" + recordID},
	}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (h *harness) call(t *testing.T, action, bearer string, payload any) (int, actionResult) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scheduler/actions/"+action, strings.NewReader(string(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)

	var out actionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestDispatch_Guards(t *testing.T) {
	h := newHarness(t)

	status, _ := h.call(t, "getSlot", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, res := h.call(t, "launchRockets", token(t, "3", false), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errors.ErrUnknownAction, res.Code)

	status, res = h.call(t, "resetSlot", token(t, "3", false), map[string]any{"config_key": "appt_slot|88", "slot_id": "7"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.False(t, res.Success)
	assert.Equal(t, errors.ErrForbidden, res.Code)

	status, res = h.call(t, "getConfigsForContext", token(t, "3", false), map[string]any{"fields": []string{"appt_slot"}})
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"appt_slot|88":"Book"}`, string(res.Data))
}

func TestDispatch_ReserveFlow(t *testing.T) {
	h := newHarness(t)
	alice, bob, admin := token(t, "3", false), token(t, "4", false), token(t, "99", true)

	status, res := h.call(t, "getAppointmentOptions", alice, map[string]any{"config_key": "appt_slot|88", "timezone": "America/Los_Angeles"})
	require.Equal(t, http.StatusOK, status)
	var opts struct {
		Message string `json:"message"`
		Options []struct {
			ID string `json:"id"`
		} `json:"options"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &opts))
	assert.Equal(t, "2 appointments available", opts.Message)
	require.Len(t, opts.Options, 3)

	status, res = h.call(t, "reserveSlot", alice, map[string]any{"config_key": "appt_slot|88", "slot_id": "7", "timezone": "America/Los_Angeles"})
	require.Equal(t, http.StatusOK, status, res.Message)
	var reserved struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &reserved))
	assert.Equal(t, "7", reserved.Fields["appt_slot"])

	status, res = h.call(t, "reserveSlot", bob, map[string]any{"config_key": "appt_slot|88", "slot_id": "7"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, errors.ErrSlotUnavailable, res.Code)
	assert.False(t, res.Retryable)
	assert.Equal(t, "This appointment slot is no longer available", res.Message)

	status, res = h.call(t, "getSlotsVerificationData", admin, nil)
	require.Equal(t, http.StatusOK, status)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(res.Data, &rows))
	assert.Len(t, rows, 2)

	status, _ = h.call(t, "resetSlot", admin, map[string]any{"config_key": "appt_slot|88", "slot_id": "9", "mark_cancelled": true, "note": "closed"})
	require.Equal(t, http.StatusOK, status)

	status, res = h.call(t, "getRepairLog", admin, map[string]any{"page": 1, "limit": 10})
	require.Equal(t, http.StatusOK, status)
	var page struct {
		TotalItems int `json:"total_items"`
		Items      []struct {
			Actor string `json:"actor"`
			Note  string `json:"note"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &page))
	require.Equal(t, 1, page.TotalItems)
	assert.Equal(t, "user-99", page.Items[0].Actor)
	assert.Equal(t, "closed", page.Items[0].Note)

	status, res = h.call(t, "exportVerificationReport", admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errors.ErrReportDisabled, res.Code)

	// Public cancel link round trip.
	u, err := url.Parse(reserved.Fields["appt_cancel"])
	require.NoError(t, err)
	key := u.Query().Get("key")

	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/scheduler/cancel?key="+url.QueryEscape(key), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var confirm struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &confirm))
	require.NotEmpty(t, confirm.Data.Token)

	body, _ := json.Marshal(map[string]string{"key": key, "token": confirm.Data.Token})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/scheduler/cancel", strings.NewReader(string(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	status, res = h.call(t, "reserveSlot", bob, map[string]any{"config_key": "appt_slot|88", "slot_id": "7"})
	assert.Equal(t, http.StatusOK, status, res.Message)
}
