// =============================================================================
// FlowCanvas 主入口
// =============================================================================
// 画布编辑服务入口点，包含 HTTP/WebSocket 服务、健康检查、Prometheus 指标
//
// 使用方法:
//
//	flowcanvas serve                       # 启动服务
//	flowcanvas serve --config config.yaml  # 指定配置文件（支持热更新日志级别）
//	flowcanvas validate workflow.yaml      # 校验工作流文档
//	flowcanvas version                     # 显示版本信息
//	flowcanvas health                      # 健康检查
// =============================================================================

// @title FlowCanvas API
// @version 1.0.0
// @description Graph editing engine for AI-agent workflows: sessions, commands, validation and execution.

// @contact.name FlowCanvas Team
// @contact.url https://github.com/BaSui01/flowcanvas

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/flowcanvas/api"
	"github.com/BaSui01/flowcanvas/canvas"
	"github.com/BaSui01/flowcanvas/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "validate":
		os.Exit(runValidate(os.Args[2:], os.Stdout, os.Stderr))
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	_ = fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, level := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting FlowCanvas",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := NewServer(cfg, loader, logger, level)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	logger.Info("FlowCanvas stopped")
}

// =============================================================================
// ✅ validate 命令
// =============================================================================

// runValidate 校验文档文件，返回进程退出码：0 可执行，1 有错误，2 用法或读取失败
func runValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "text", "Output format: text or json")
	strict := fs.Bool("strict", false, "Treat warnings as failures")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: flowcanvas validate [--format text|json] [--strict] <file.yaml|file.json>")
		return 2
	}

	doc, err := canvas.LoadDocumentFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Failed to read document: %v\n", err)
		return 2
	}
	nodes, edges, err := doc.Decode()
	if err != nil {
		fmt.Fprintf(stderr, "Invalid document: %v\n", err)
		return 1
	}

	report := canvas.Validate(nodes, edges)
	switch *format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(api.NewValidationResponse(report)); err != nil {
			fmt.Fprintf(stderr, "Failed to encode report: %v\n", err)
			return 2
		}
	default:
		printReport(stdout, doc, report)
	}

	if !report.ExecutionReady() || (*strict && !report.Valid()) {
		return 1
	}
	return 0
}

func printReport(w io.Writer, doc *canvas.Document, report canvas.Report) {
	name := doc.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(w, "%s: %d nodes, %d connections\n", name, len(doc.Nodes), len(doc.Connections))
	for _, is := range report.Issues {
		if is.NodeID != "" {
			fmt.Fprintf(w, "  %-7s %-22s %s [%s]\n", is.Severity, is.Code, is.Message, is.NodeID)
			continue
		}
		fmt.Fprintf(w, "  %-7s %-22s %s\n", is.Severity, is.Code, is.Message)
	}

	counts := report.Count()
	switch {
	case report.Valid():
		fmt.Fprintln(w, "OK")
	case report.ExecutionReady():
		fmt.Fprintf(w, "OK with %d warning(s)\n", counts[canvas.SeverityWarning])
	default:
		fmt.Fprintf(w, "FAILED: %d error(s), %d warning(s)\n", counts[canvas.SeverityError], counts[canvas.SeverityWarning])
	}
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	ready := fs.Bool("ready", false, "Run readiness checks instead of liveness")
	_ = fs.Parse(args)

	path := "/health"
	if *ready {
		path = "/ready"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("FlowCanvas %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `FlowCanvas - Workflow graph editing service

Usage:
  flowcanvas <command> [options]

Commands:
  serve     Start the FlowCanvas server
  validate  Validate a workflow document (YAML or JSON)
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Options for 'validate':
  --format <fmt>    text (default) or json
  --strict          Fail on warnings too

Examples:
  flowcanvas serve --config /etc/flowcanvas/config.yaml
  flowcanvas validate --format json workflow.yaml
  flowcanvas health --addr http://localhost:8080 --ready
  flowcanvas version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

// initLogger 构建 logger，返回的 AtomicLevel 供配置热更新调整日志级别
func initLogger(cfg config.LogConfig) (*zap.Logger, zap.AtomicLevel) {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             level,
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger, level
}

func parseLevel(s string) zapcore.Level {
	level, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}
