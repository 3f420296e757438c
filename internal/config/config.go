// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（密码、密钥）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 使用方式：
//   - 开发环境: APP_ENV=dev (默认)
//   - 测试环境: APP_ENV=test
//   - 生产环境: APP_ENV=prod
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Assistant AssistantConfig `yaml:"assistant"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Name    string `yaml:"name"`
	SSLMode string `yaml:"sslmode"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	DB   int    `yaml:"db"`
}

// AssistantConfig 研究助手配置
type AssistantConfig struct {
	Model            string        `yaml:"model"`             // 聊天补全模型
	SummaryModel     string        `yaml:"summary_model"`     // 摘要模型（默认同 model）
	BaseURL          string        `yaml:"base_url"`          // OpenAI 兼容接口地址（空则官方）
	MaxTokens        int           `yaml:"max_tokens"`        // 单次补全最大 token
	RequestTimeout   time.Duration `yaml:"request_timeout"`   // 补全请求超时
	SummaryThreshold int           `yaml:"summary_threshold"` // 触发滚动摘要的消息数
	SummaryBatch     int           `yaml:"summary_batch"`     // 每次摘要的最旧消息数
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env         Environment
	DatabaseURL string
	RedisURL    string
	APIPort     string
	OpenAIKey   string
	Assistant   AssistantConfig
}

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
	"../../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 构建最终配置
func Load() *Config {
	// 加载 .env
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	// 解析环境
	env := parseEnv(getEnv("APP_ENV", "dev"))

	// 加载 YAML 配置
	yamlCfg := loadYAMLConfig(env)

	// 从环境变量获取敏感信息
	dbPassword := getEnv("DB_PASSWORD", "wordpilot_dev_password")

	// 构建最终配置
	cfg := &Config{
		Env:         env,
		DatabaseURL: buildDatabaseURL(yamlCfg.Database, dbPassword),
		RedisURL:    buildRedisURL(yamlCfg.Redis),
		APIPort:     yamlCfg.Server.Port,
		OpenAIKey:   getEnv("OPENAI_API_KEY", ""),
		Assistant:   yamlCfg.Assistant,
	}

	// DATABASE_URL 整体覆盖 YAML 拼装的连接串（支持 sqlite:// 等非 PG 后端）
	if url := getEnv("DATABASE_URL", ""); url != "" {
		cfg.DatabaseURL = url
	}

	// 验证并填充助手默认值
	cfg.Assistant.validate()

	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	// 1. 初始化默认值
	cfg := &YAMLConfig{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "wordpilot", Name: "wordpilot", SSLMode: "disable"},
		Redis:    RedisConfig{Host: "localhost", Port: 6379, DB: 0},
		Assistant: AssistantConfig{
			Model:            "gpt-4o",
			MaxTokens:        4096,
			RequestTimeout:   120 * time.Second,
			SummaryThreshold: 5,
			SummaryBatch:     5,
		},
	}

	// 2. 加载 common.yaml（公共配置）
	for _, base := range configPaths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	// 3. 加载 {env}.yaml（环境特定配置，覆盖公共配置）
	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

// buildDatabaseURL 构建 PostgreSQL 连接字符串
func buildDatabaseURL(db DatabaseConfig, password string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.User, password, db.Host, db.Port, db.Name, db.SSLMode)
}

// buildRedisURL 构建 Redis 连接字符串
func buildRedisURL(redis RedisConfig) string {
	return fmt.Sprintf("redis://%s:%d/%d", redis.Host, redis.Port, redis.DB)
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, DB: %s, Redis: %s, Model: %s}",
		c.Env, maskPassword(c.DatabaseURL), c.RedisURL, c.Assistant.Model)
}

// maskPassword 隐藏密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:]+:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}

// validate 验证并填充助手默认值
func (a *AssistantConfig) validate() {
	if a.Model == "" {
		a.Model = "gpt-4o"
	}
	if a.SummaryModel == "" {
		a.SummaryModel = a.Model
	}
	if a.MaxTokens == 0 {
		a.MaxTokens = 4096
	}
	if a.RequestTimeout == 0 {
		a.RequestTimeout = 120 * time.Second
	}
	if a.SummaryThreshold == 0 {
		a.SummaryThreshold = 5
	}
	if a.SummaryBatch == 0 {
		a.SummaryBatch = 5
	}
}
