package service

import (
	"context"
	"time"

	"timezone-scheduler/core/errors"
	"timezone-scheduler/modules/scheduler/dto"
	"timezone-scheduler/modules/scheduler/report"
)

// ReportService runs both audits and stores the result through the exporter.
type ReportService struct {
	configs  Configs
	audit    AuditServiceInterface
	exporter *report.Exporter
	now      func() time.Time
}

func NewReportService(configs Configs, audit AuditServiceInterface, exporter *report.Exporter, now func() time.Time) *ReportService {
	if now == nil {
		now = time.Now
	}
	return &ReportService{configs: configs, audit: audit, exporter: exporter, now: now}
}

// Build assembles the report. An empty configKey audits appointments for every config.
func (s *ReportService) Build(ctx context.Context, configKey string) (*dto.VerificationReport, *errors.AppError) {
	slots, appErr := s.audit.AuditSlots(ctx)
	if appErr != nil {
		return nil, appErr
	}
	rep := &dto.VerificationReport{
		GeneratedAt:  s.now().UTC(),
		ConfigKey:    configKey,
		Slots:        slots,
		Appointments: []dto.AppointmentVerification{},
	}
	keys := []string{configKey}
	if configKey == "" {
		keys = keys[:0]
		for _, cfg := range s.configs.All() {
			keys = append(keys, cfg.Key)
		}
	}
	for _, key := range keys {
		rows, appErr := s.audit.AuditAppointments(ctx, key)
		if appErr != nil {
			return nil, appErr
		}
		rep.Appointments = append(rep.Appointments, rows...)
	}
	return rep, nil
}

// Export builds the report and uploads it.
func (s *ReportService) Export(ctx context.Context, configKey string) (*dto.ExportReportResponse, *errors.AppError) {
	if s.exporter == nil {
		return nil, errors.NewAppError(errors.ErrReportDisabled, "Report export is not configured", nil)
	}
	rep, appErr := s.Build(ctx, configKey)
	if appErr != nil {
		return nil, appErr
	}
	key, err := s.exporter.Export(ctx, configKey, rep)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrStoreWrite, "Failed to upload verification report", err)
	}
	return &dto.ExportReportResponse{Bucket: s.exporter.Bucket(), ObjectKey: key}, nil
}
