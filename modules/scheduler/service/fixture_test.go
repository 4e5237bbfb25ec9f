package service

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"timezone-scheduler/core/cache"
	"timezone-scheduler/core/config"
	"timezone-scheduler/core/database"
	repairDto "timezone-scheduler/modules/repairlog/dto"
	"timezone-scheduler/modules/scheduler/entity"
	"timezone-scheduler/modules/scheduler/formatter"
	"timezone-scheduler/modules/scheduler/registry"
	"timezone-scheduler/modules/scheduler/repository"

	"github.com/stretchr/testify/require"
)

const (
	testKey    = "appt_slot|88"
	testSecret = "test-cancel-secret"
	testBase   = "https://example.test"
)

var (
	ownerA = entity.Owner{ProjectID: 12, RecordID: "3", EventID: 88, Instance: 1}
	ownerB = entity.Owner{ProjectID: 12, RecordID: "4", EventID: 88, Instance: 1}
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fakeRepairs struct {
	mu      sync.Mutex
	entries []*repairDto.RecordRepairRequest
}

func (f *fakeRepairs) Record(_ context.Context, req *repairDto.RecordRepairRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, req)
	return nil
}

type fixture struct {
	ctx      context.Context
	server   *time.Location
	clock    *clock
	configs  *registry.Registry
	slots    *repository.SlotRepository
	records  *repository.RecordRepository
	locker   *cache.LocalLocker
	signer   *LinkSigner
	repairs  *fakeRepairs
	settings Settings
	engine   *ReservationService
	audit    *AuditService
	links    *CancelLinkService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	server, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	db, err := database.InitDB(database.DatabaseConfig{Driver: database.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	f := &fixture{
		ctx:     context.Background(),
		server:  server,
		clock:   &clock{t: time.Date(2025, 10, 29, 12, 0, 0, 0, server)},
		locker:  cache.NewLocalLocker(),
		repairs: &fakeRepairs{},
		configs: registry.FromEntries([]config.InstanceConfig{{
			SlotProjectID:           5,
			SlotIDField:             "appt_slot",
			SlotIDFieldEventID:      88,
			ApptDatetimeField:       "appt_dt",
			ApptDatetimeFieldFormat: "datetime_ymd",
			ApptTextDateField:       "appt_text",
			ApptDescriptionField:    "appt_desc",
			ApptCancelURLField:      "appt_cancel",
			ApptSlotURLField:        "appt_slot_url",
		}}),
		settings: Settings{ProjectID: 12, ProjectTitle: "Study", BaseURL: testBase, LockWait: 20 * time.Millisecond},
	}
	f.slots = repository.NewSlotRepository(db, f.configs)
	f.records = repository.NewRecordRepository(db)
	f.signer, err = NewLinkSigner(testSecret, testBase)
	require.NoError(t, err)

	fm := formatter.New(server, f.clock.Now)
	f.engine = NewReservationService(f.configs, f.slots, f.records, f.locker, fm, f.signer, f.repairs, f.settings)
	f.audit = NewAuditService(f.configs, f.slots, f.records, fm, f.settings.ProjectID)
	f.links = NewCancelLinkService(f.signer, f.slots, f.engine, testSecret, 10*time.Minute, f.clock.Now)

	for _, slot := range []entity.Slot{
		{ID: "7", Date: "2025-11-01", Time: "09:00", Title: "Intake"},
		{ID: "8", Date: "2025-10-20", Time: "09:00", Title: "Old"},
		{ID: "9", Date: "2025-11-02", Time: "10:00", Title: "Follow-up"},
	} {
		slot := slot
		require.NoError(t, f.slots.Save(f.ctx, testKey, &slot))
	}
	return f
}

func (f *fixture) slot(t *testing.T, id string) *entity.Slot {
	t.Helper()
	slot, err := f.slots.Get(f.ctx, testKey, id)
	require.NoError(t, err)
	return slot
}

func (f *fixture) record(t *testing.T, owner entity.Owner) map[string]string {
	t.Helper()
	values, err := f.records.GetRecord(f.ctx, owner)
	require.NoError(t, err)
	return values
}

// cancelKey pulls the sealed key out of the mirrored cancel URL.
func cancelKey(t *testing.T, link string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(link, testBase+CancelPath+"?key="), link)
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("key")
}
