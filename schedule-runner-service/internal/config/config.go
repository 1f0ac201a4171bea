package config

import (
	"fmt"

	"obraflow/pkg/config"
)

type Config struct {
	Server   config.ServerConfig   `yaml:"server"`
	DB       config.DBConfig       `yaml:"db"`
	MQ       config.MQConfig       `yaml:"mq"`
	OTel     config.OTelConfig     `yaml:"otel"`
	Schedule config.ScheduleConfig `yaml:"schedule"`
}

func Load() (*Config, error) {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	var cfg Config
	if err := config.Load(env, configDir, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideOTelFromEnv(&cfg.OTel)
	config.OverrideScheduleFromEnv(&cfg.Schedule)

	cfg.Schedule = cfg.Schedule.WithDefaults()
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8091"
	}
	return &cfg, nil
}
