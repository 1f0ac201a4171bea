package config

import (
	"fmt"

	"obraflow/pkg/auth"
	"obraflow/pkg/config"
)

type Config struct {
	Server   config.ServerConfig   `yaml:"server"`
	DB       config.DBConfig       `yaml:"db"`
	MQ       config.MQConfig       `yaml:"mq"`
	Redis    config.RedisConfig    `yaml:"redis"`
	JWT      config.JWTConfig      `yaml:"jwt"`
	OTel     config.OTelConfig     `yaml:"otel"`
	Schedule config.ScheduleConfig `yaml:"schedule"`
	APIKeys  []auth.APIKey         `yaml:"api_keys"`
	Consumer struct {
		MaxRetries int64 `yaml:"max_retries"`
	} `yaml:"consumer"`
}

// Load 使用统一配置中心加载配置，环境变量优先级最高
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
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideOTelFromEnv(&cfg.OTel)
	config.OverrideScheduleFromEnv(&cfg.Schedule)

	cfg.Schedule = cfg.Schedule.WithDefaults()
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8090"
	}
	if cfg.Consumer.MaxRetries <= 0 {
		cfg.Consumer.MaxRetries = 5
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required")
	}
	return &cfg, nil
}
