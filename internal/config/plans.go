package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PlanLimits is the quota ceiling set for one plan type.
type PlanLimits struct {
	MaxWorkspace        int   `mapstructure:"maxWorkspace" json:"maxWorkspace"`
	MaxUserPerWorkspace int   `mapstructure:"maxUserPerWorkspace" json:"maxUserPerWorkspace"`
	MaxVideoUploads     int   `mapstructure:"maxVideoUploads" json:"maxVideoUploads"`
	MaxStorageGB        int64 `mapstructure:"maxStorageGB" json:"maxStorageGB"`
}

// PlanConfig maps plan type names to their limits.
type PlanConfig struct {
	Plans map[string]PlanLimits `mapstructure:"plans"`
}

func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		Plans: map[string]PlanLimits{
			"TRIAL_BASIC": {MaxWorkspace: 1, MaxUserPerWorkspace: 5, MaxVideoUploads: 20, MaxStorageGB: 50},
			"BASIC":       {MaxWorkspace: 1, MaxUserPerWorkspace: 5, MaxVideoUploads: 20, MaxStorageGB: 50},
			"PRO":         {MaxWorkspace: 3, MaxUserPerWorkspace: 10, MaxVideoUploads: 75, MaxStorageGB: 250},
		},
	}
}

// Limits returns the limit row for a plan type, reporting whether the plan
// is known.
func (c PlanConfig) Limits(planType string) (PlanLimits, bool) {
	limits, ok := c.Plans[strings.ToUpper(strings.TrimSpace(planType))]
	return limits, ok
}

// PlanConfigHolder serves the current plan limit table and hot-reloads it
// when the backing file changes.
type PlanConfigHolder struct {
	current atomic.Value // holds PlanConfig
}

func NewPlanConfigHolder() (*PlanConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/proxlay")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PROXLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultPlanConfig()
		v.SetDefault("plans", defaults.Plans)
	}

	var cfg PlanConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if len(cfg.Plans) == 0 {
		cfg = DefaultPlanConfig()
	}
	if err := validatePlanConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PlanConfigHolder{}
	holder.current.Store(cfg)

	if v.ConfigFileUsed() == "" {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlanConfig
		if err := v.Unmarshal(&updated); err != nil {
			log.Printf("[plan-config] reload failed: %v", err)
			return
		}
		if err := validatePlanConfig(updated); err != nil {
			log.Printf("[plan-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[plan-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PlanConfigHolder) Get() PlanConfig {
	return h.current.Load().(PlanConfig)
}

func (h *PlanConfigHolder) Limits(planType string) (PlanLimits, bool) {
	return h.Get().Limits(planType)
}

func validatePlanConfig(cfg PlanConfig) error {
	if len(cfg.Plans) == 0 {
		return errors.New("plans cannot be empty")
	}
	for name, limits := range cfg.Plans {
		if limits.MaxWorkspace <= 0 || limits.MaxUserPerWorkspace <= 0 || limits.MaxVideoUploads <= 0 || limits.MaxStorageGB <= 0 {
			return errors.New("plan " + name + " has non-positive limits")
		}
	}
	return nil
}
