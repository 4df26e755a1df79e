// =============================================================================
// 📦 flowcanvas 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:      DefaultServerConfig(),
		Canvas:      DefaultCanvasConfig(),
		WorkflowAPI: DefaultWorkflowAPIConfig(),
		Sessions:    DefaultSessionsConfig(),
		Auth:        DefaultAuthConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:           8080,
		MetricsPort:        9091,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        120 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		RateLimitRPS:       100,
		RateLimitBurst:     200,
		CORSAllowedOrigins: []string{"*"},
	}
}

// DefaultCanvasConfig 返回默认画布配置
func DefaultCanvasConfig() CanvasConfig {
	return CanvasConfig{
		MinZoom:           0.1,
		MaxZoom:           5.0,
		HistoryCapacity:   50,
		PortHitRadius:     10,
		StraightThreshold: 50,
		BendOffset:        30,
		MidX:              400,
		MidY:              300,
		MarkerRadius:      10,
	}
}

// DefaultWorkflowAPIConfig 返回默认工作流 API 配置
func DefaultWorkflowAPIConfig() WorkflowAPIConfig {
	return WorkflowAPIConfig{
		BaseURL:       "",
		Timeout:       30 * time.Second,
		StreamTimeout: 5 * time.Minute,
		Breaker: BreakerConfig{
			MaxRequests:      1,
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
	}
}

// DefaultSessionsConfig 返回默认会话配置
func DefaultSessionsConfig() SessionsConfig {
	return SessionsConfig{
		MaxSessions:   1000,
		IdleTTL:       30 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// DefaultAuthConfig 返回默认认证配置
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{Mode: "none"}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "flowcanvas",
		SampleRate:   0.1,
	}
}
