package formatter

import (
	"fmt"
	"strings"
	"time"

	"timezone-scheduler/core/logger"
	"timezone-scheduler/modules/scheduler/entity"
)

// Option is one slot rendered for a participant.
type Option struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Text        string `json:"text"`
	ServerDT    string `json:"server_dt"`
}

// Formatter renders slots in a participant's timezone. Slot wall clocks are read in
// the server location.
type Formatter struct {
	server *time.Location
	now    func() time.Time
}

func New(server *time.Location, now func() time.Time) *Formatter {
	if server == nil {
		server = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Formatter{server: server, now: now}
}

func (f *Formatter) Server() *time.Location {
	return f.server
}

func (f *Formatter) Now() time.Time {
	return f.now()
}

// Location resolves a client timezone name. Empty means the server zone.
func (f *Formatter) Location(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return f.server, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// BuildOptions renders every usable slot. With filterPast, slots strictly before now are dropped.
func (f *Formatter) BuildOptions(cfg *entity.SchedulingConfig, slots []entity.Slot, clientTimezone string, filterPast bool) ([]Option, error) {
	client, err := f.Location(clientTimezone)
	if err != nil {
		return nil, err
	}
	now := f.now()
	options := make([]Option, 0, len(slots))
	for i := range slots {
		instant, err := slots[i].Instant(f.server)
		if err != nil {
			logger.Warn("Formatter:BuildOptions:SkipSlot", "config_key", cfg.Key, "slot_id", slots[i].ID, "error", err)
			continue
		}
		if filterPast && instant.Before(now) {
			continue
		}
		options = append(options, f.render(cfg, &slots[i], instant, client, now))
	}
	return options, nil
}

// BuildOption renders one slot regardless of whether it is past.
func (f *Formatter) BuildOption(cfg *entity.SchedulingConfig, slot *entity.Slot, clientTimezone string) (Option, error) {
	client, err := f.Location(clientTimezone)
	if err != nil {
		return Option{}, err
	}
	instant, err := slot.Instant(f.server)
	if err != nil {
		return Option{}, err
	}
	return f.render(cfg, slot, instant, client, f.now()), nil
}

func (f *Formatter) render(cfg *entity.SchedulingConfig, slot *entity.Slot, instant time.Time, client *time.Location, now time.Time) Option {
	server := instant.In(f.server)
	local := instant.In(client)
	serverTZ := server.Format("MST")
	clientTZ := local.Format("MST")

	values := map[string]string{
		"slot_id":         slot.ID,
		"title":           slot.Title,
		"date":            slot.Date,
		"time":            slot.Time,
		"server_date":     FormatDate(server),
		"server_time":     FormatClock(server),
		"server_tz":       serverTZ,
		"client_date":     FormatDate(local),
		"client_time":     FormatClock(local),
		"client_tz":       clientTZ,
		"client_timezone": client.String(),
		"time_remaining":  TimeRemaining(instant, now),
	}

	description := ApplyConditionalBlocks(cfg.DescriptionTemplate, serverTZ != clientTZ)
	return Option{
		ID:          slot.ID,
		Title:       slot.Title,
		Description: Render(description, values),
		Text:        Render(cfg.TextDateTemplate, values),
		ServerDT:    server.Format(entity.ServerTimestampFmt),
	}
}

// FormatDate renders like "Sat, Nov 1st 2025".
func FormatDate(t time.Time) string {
	return t.Format("Mon, Jan ") + ordinal(t.Day()) + t.Format(" 2006")
}

// FormatClock renders like "9:00am".
func FormatClock(t time.Time) string {
	return t.Format("3:04pm")
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// TimeRemaining renders the whole days and hours between now and at.
func TimeRemaining(at, now time.Time) string {
	d := at.Sub(now)
	suffix := ""
	if d < 0 {
		d = -d
		suffix = " ago"
	}
	days := int(d / (24 * time.Hour))
	hours := int((d % (24 * time.Hour)) / time.Hour)
	return fmt.Sprintf("%d days %d hours%s", days, hours, suffix)
}

// FormatFieldValue converts a server timestamp (YYYY-MM-DD HH:MM) into a record field's native format.
func FormatFieldValue(serverDT string, format entity.DatetimeFormat) (string, error) {
	layout, ok := format.Layout()
	if !ok {
		return "", fmt.Errorf("unknown datetime format %q", format)
	}
	t, err := time.Parse(entity.ServerTimestampFmt, serverDT)
	if err != nil {
		return "", fmt.Errorf("parse server timestamp %q: %w", serverDT, err)
	}
	return t.Format(layout), nil
}
