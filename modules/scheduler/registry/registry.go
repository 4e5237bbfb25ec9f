package registry

import (
	"errors"
	"sync"

	"timezone-scheduler/core/config"
	"timezone-scheduler/core/logger"
	"timezone-scheduler/modules/scheduler/entity"
)

var ErrConfigNotFound = errors.New("scheduling config not found")

// Loader returns the raw configuration entries of the active project.
type Loader func() []config.InstanceConfig

// Registry holds the validated scheduling configs, keyed by "field|event".
// Entries are loaded once on first use and read-only afterwards.
type Registry struct {
	load    Loader
	once    sync.Once
	configs map[string]*entity.SchedulingConfig
	order   []string
}

func NewRegistry(load Loader) *Registry {
	return &Registry{load: load}
}

// FromEntries builds a registry over a fixed entry list.
func FromEntries(entries []config.InstanceConfig) *Registry {
	return NewRegistry(func() []config.InstanceConfig { return entries })
}

func (r *Registry) ensure() {
	r.once.Do(func() {
		r.configs = make(map[string]*entity.SchedulingConfig)
		var raw []config.InstanceConfig
		if r.load != nil {
			raw = r.load()
		}
		for i, entry := range raw {
			cfg, err := entity.NewSchedulingConfig(entry)
			if err != nil {
				logger.Warn("Registry:Load:SkipInvalid", "index", i, "error", err)
				continue
			}
			if _, dup := r.configs[cfg.Key]; dup {
				logger.Warn("Registry:Load:SkipDuplicate", "index", i, "key", cfg.Key)
				continue
			}
			r.configs[cfg.Key] = cfg
			r.order = append(r.order, cfg.Key)
		}
		logger.Debug("Registry:Load:Done", "configs", len(r.order))
	})
}

// Get returns the config for key.
func (r *Registry) Get(key string) (*entity.SchedulingConfig, error) {
	r.ensure()
	cfg, ok := r.configs[key]
	if !ok {
		return nil, ErrConfigNotFound
	}
	return cfg, nil
}

// All returns configs in load order.
func (r *Registry) All() []*entity.SchedulingConfig {
	r.ensure()
	out := make([]*entity.SchedulingConfig, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.configs[key])
	}
	return out
}

// FilterForContext maps each enabled config key on eventID whose field is in fields
// to its button label.
func (r *Registry) FilterForContext(fields []string, eventID int64) map[string]string {
	r.ensure()
	wanted := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		wanted[f] = struct{}{}
	}
	out := make(map[string]string)
	for _, key := range r.order {
		cfg := r.configs[key]
		if cfg.Disabled || cfg.EventID != eventID {
			continue
		}
		if _, ok := wanted[cfg.SlotIDField]; ok {
			out[key] = cfg.ButtonLabel
		}
	}
	return out
}
