package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 存放应用级配置：默认值 -> 配置文件 -> 环境变量 -> 命令行参数，后者覆盖前者。
type Config struct {
	DBPath       string        `yaml:"db_path"`
	SchemaPath   string        `yaml:"schema_path"`
	ExportDir    string        `yaml:"export_dir"`
	DeliveryURL  string        `yaml:"delivery_url"`
	AutosaveWait time.Duration `yaml:"autosave_delay"`
	ArchiveQuota int64         `yaml:"archive_quota_bytes"`
	ListenAddr   string        `yaml:"listen_addr"`
	SMTP         SMTPConfig    `yaml:"smtp"`
}

// SMTPConfig 是邮件中继配置，只被 send-email 端点使用。
type SMTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	From string `yaml:"from"`
}

// Enabled 报告 SMTP 中继是否已配置。
func (c SMTPConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

// DefaultConfig 返回本地开发环境的默认配置。
// SchemaPath 为空时使用内置问卷目录。
func DefaultConfig() Config {
	return Config{
		DBPath:     "data/checklist.db",
		ExportDir:  "exports",
		ListenAddr: "127.0.0.1:8787",
		SMTP:       SMTPConfig{Port: 587},
	}
}

// LoadConfig 在默认值之上叠加 YAML 配置文件（可选）与环境变量。
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("CHECKLIST_DB", &c.DBPath)
	str("CHECKLIST_SCHEMA", &c.SchemaPath)
	str("CHECKLIST_EXPORT_DIR", &c.ExportDir)
	str("CHECKLIST_DELIVERY_URL", &c.DeliveryURL)
	str("CHECKLIST_LISTEN", &c.ListenAddr)
	str("SMTP_HOST", &c.SMTP.Host)
	str("SMTP_USER", &c.SMTP.User)
	str("SMTP_PASS", &c.SMTP.Pass)
	str("SMTP_FROM", &c.SMTP.From)

	if v, ok := lookup("SMTP_PORT"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 || n > 65535 {
			return errors.New("SMTP_PORT must be 1..65535")
		}
		c.SMTP.Port = n
	}
	if v, ok := lookup("CHECKLIST_AUTOSAVE_DELAY"); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil || d < 0 {
			return fmt.Errorf("invalid CHECKLIST_AUTOSAVE_DELAY: %q", v)
		}
		c.AutosaveWait = d
	}
	return nil
}
