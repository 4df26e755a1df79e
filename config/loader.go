// =============================================================================
// 📦 flowcanvas 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("FLOWCANVAS").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix 默认环境变量前缀
const DefaultEnvPrefix = "FLOWCANVAS"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 flowcanvas 的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Canvas 画布引擎配置
	Canvas CanvasConfig `yaml:"canvas" env:"CANVAS"`

	// WorkflowAPI 外部工作流 API 配置
	WorkflowAPI WorkflowAPIConfig `yaml:"workflow_api" env:"WORKFLOW_API"`

	// Sessions 编辑会话配置
	Sessions SessionsConfig `yaml:"sessions" env:"SESSIONS"`

	// Auth 认证配置
	Auth AuthConfig `yaml:"auth" env:"AUTH"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时（流式执行不受此限制）
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 空闲超时
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每个客户端 IP 的限流速率
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流突发容量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// CORS 允许的来源
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// CanvasConfig 画布引擎配置
type CanvasConfig struct {
	// 最小缩放
	MinZoom float64 `yaml:"min_zoom" env:"MIN_ZOOM"`
	// 最大缩放
	MaxZoom float64 `yaml:"max_zoom" env:"MAX_ZOOM"`
	// 撤销栈容量
	HistoryCapacity int `yaml:"history_capacity" env:"HISTORY_CAPACITY"`
	// 连接点命中半径（屏幕像素）
	PortHitRadius float64 `yaml:"port_hit_radius" env:"PORT_HIT_RADIUS"`
	// 近水平/近垂直判定阈值
	StraightThreshold float64 `yaml:"straight_threshold" env:"STRAIGHT_THRESHOLD"`
	// 弯曲偏移
	BendOffset float64 `yaml:"bend_offset" env:"BEND_OFFSET"`
	// 左右弯曲分界线
	MidX float64 `yaml:"mid_x" env:"MID_X"`
	// 上下弯曲分界线
	MidY float64 `yaml:"mid_y" env:"MID_Y"`
	// 删除标记半径
	MarkerRadius float64 `yaml:"marker_radius" env:"MARKER_RADIUS"`
}

// WorkflowAPIConfig 外部工作流持久化与执行 API 配置
type WorkflowAPIConfig struct {
	// 基础 URL，为空时禁用保存与执行
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key（可选）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 普通请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 流式执行超时
	StreamTimeout time.Duration `yaml:"stream_timeout" env:"STREAM_TIMEOUT"`
	// 私有 CA 证书文件（可选）
	CAFile string `yaml:"ca_file" env:"CA_FILE"`
	// 熔断器
	Breaker BreakerConfig `yaml:"breaker" env:"BREAKER"`
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	// 半开状态允许的请求数
	MaxRequests uint32 `yaml:"max_requests" env:"MAX_REQUESTS"`
	// 闭合状态计数清零周期
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
	// 打开状态持续时间
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 连续失败多少次后打开
	FailureThreshold uint32 `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
}

// SessionsConfig 编辑会话配置
type SessionsConfig struct {
	// 最大并发会话数
	MaxSessions int `yaml:"max_sessions" env:"MAX_SESSIONS"`
	// 会话空闲过期时间
	IdleTTL time.Duration `yaml:"idle_ttl" env:"IDLE_TTL"`
	// 过期清理间隔
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	// 认证模式: none, apikey, jwt
	Mode string `yaml:"mode" env:"MODE"`
	// 允许的 API Key 列表
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// JWT 配置
	JWT JWTConfig `yaml:"jwt" env:"JWT"`
}

// JWTConfig JWT 配置（HS256）
type JWTConfig struct {
	// HMAC 密钥
	Secret string `yaml:"secret" env:"SECRET"`
	// 签发者（可选）
	Issuer string `yaml:"issuer" env:"ISSUER"`
	// 受众（可选）
	Audience string `yaml:"audience" env:"AUDIENCE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  DefaultEnvPrefix,
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// ConfigPath 返回配置文件路径
func (l *Loader) ConfigPath() string {
	return l.configPath
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置，文件不存在时保留默认值
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段，键名为 PREFIX_SECTION_FIELD
func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		envTag := t.Field(i).Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setFieldValue 按字段类型解析字符串值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}

	if c.Canvas.MinZoom <= 0 {
		errs = append(errs, "canvas.min_zoom must be positive")
	}
	if c.Canvas.MaxZoom < c.Canvas.MinZoom {
		errs = append(errs, "canvas.max_zoom must not be below min_zoom")
	}
	if c.Canvas.HistoryCapacity <= 0 {
		errs = append(errs, "canvas.history_capacity must be positive")
	}

	if c.Sessions.MaxSessions <= 0 {
		errs = append(errs, "sessions.max_sessions must be positive")
	}

	switch c.Auth.Mode {
	case "", "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, "auth.api_keys required for apikey mode")
		}
	case "jwt":
		if c.Auth.JWT.Secret == "" {
			errs = append(errs, "auth.jwt.secret required for jwt mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown auth mode %q", c.Auth.Mode))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
