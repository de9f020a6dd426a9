// =============================================================================
// Debateflow 主入口
// =============================================================================
// 多 LLM 结构化辩论命令行入口，包含辩论执行、后端健康检查与
// Prometheus 指标暴露
//
// 使用方法:
//
//	debateflow run --config config.yaml --question "..."  # 运行一场辩论
//	debateflow health --config config.yaml                # 检查后端健康
//	debateflow version                                    # 显示版本信息
// =============================================================================
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/debateflow/config"
	"github.com/BaSui01/debateflow/debate"
	"github.com/BaSui01/debateflow/internal/metrics"
	"github.com/BaSui01/debateflow/internal/telemetry"
	"github.com/BaSui01/debateflow/llm"
	"github.com/BaSui01/debateflow/providers/claude"
	"github.com/BaSui01/debateflow/providers/gemini"
	"github.com/BaSui01/debateflow/providers/openai"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runDebate(os.Args[2:])
	case "health":
		runHealthCheck(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🗣️ run 命令
// =============================================================================

func runDebate(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	question := fs.String("question", "", "Question to debate")
	historyPath := fs.String("history", "", "Write full debate history JSON to this file")
	fs.Parse(args)

	if *question == "" {
		fmt.Fprintln(os.Stderr, "run requires --question")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting Debateflow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProviders.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector(cfg.Metrics.Namespace, nil, logger)
	if cfg.Metrics.Port > 0 {
		go serveMetrics(cfg.Metrics.Port, logger)
	}

	participants, err := buildParticipants(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build participants", zap.Error(err))
	}

	orch, err := debate.NewOrchestrator(participants, debateOptions(cfg.Debate), logger, collector)
	if err != nil {
		logger.Fatal("Failed to create orchestrator", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	verdict, history, err := orch.RunFullDebate(ctx, *question)
	if err != nil {
		logger.Fatal("Debate aborted", zap.Error(err))
	}

	if *historyPath != "" {
		if err := writeJSON(*historyPath, history); err != nil {
			logger.Error("Failed to write debate history", zap.Error(err))
		}
	}

	out, err := json.MarshalIndent(verdict, "", "  ")
	if err != nil {
		logger.Fatal("Failed to encode verdict", zap.Error(err))
	}
	fmt.Println(string(out))
}

// =============================================================================
// 🏥 health 命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := zap.NewNop()

	participants, err := buildParticipants(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build participants: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	failed := 0
	checked := map[string]bool{}
	for _, p := range participants {
		name := p.Provider.Name()
		if checked[name] {
			continue
		}
		checked[name] = true

		status, err := p.Provider.HealthCheck(ctx)
		if err != nil || !status.Healthy {
			fmt.Printf("%-8s FAIL (%v)\n", name, err)
			failed++
			continue
		}
		fmt.Printf("%-8s OK (%s)\n", name, status.Latency)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("Debateflow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`Debateflow - Multi-LLM Structured Debate

Usage:
  debateflow <command> [options]

Commands:
  run       Run a full debate and print the final verdict
  health    Check configured LLM backends
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>     Path to configuration file (YAML)
  --question <text>   Question to debate (required)
  --history <path>    Write full debate history JSON to a file

Examples:
  debateflow run --config config.yaml --question "Is P equal to NP?"
  debateflow run --question "..." --history debate.json
  debateflow health --config config.yaml
  debateflow version`)
}

// =============================================================================
// 🔧 初始化辅助
// =============================================================================

func loadConfig(path string) *config.Config {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func debateOptions(cfg config.DebateConfig) debate.Options {
	return debate.Options{
		AssessTemperature: cfg.AssessTemperature,
		SolveTemperature:  cfg.SolveTemperature,
		ReviewTemperature: cfg.ReviewTemperature,
		JudgeTemperature:  cfg.JudgeTemperature,
		CallTimeout:       cfg.CallTimeout.Std(),
		MaxTokens:         cfg.MaxTokens,
	}
}

// buildParticipants 按配置为每个参与者绑定后端实例。
// 同一后端类型的参与者共享一个 Provider 实例，因此也共享其限流器。
func buildParticipants(cfg *config.Config, logger *zap.Logger) ([]debate.Participant, error) {
	if len(cfg.Participants) == 0 {
		return nil, fmt.Errorf("no participants configured")
	}

	cache := map[string]llm.Provider{}
	provider := func(kind string) llm.Provider {
		if p, ok := cache[kind]; ok {
			return p
		}
		var p llm.Provider
		switch kind {
		case "gemini":
			p = gemini.NewGeminiProvider(cfg.Providers.Gemini, logger)
		case "claude":
			p = claude.NewClaudeProvider(cfg.Providers.Claude, logger)
		case "openai":
			p = openai.NewOpenAIProvider(cfg.Providers.OpenAI, logger)
		}
		cache[kind] = p
		return p
	}

	participants := make([]debate.Participant, 0, len(cfg.Participants))
	for _, pc := range cfg.Participants {
		backend := provider(pc.Provider)
		if backend == nil {
			return nil, fmt.Errorf("participant %q: unknown provider %q", pc.Name, pc.Provider)
		}

		model := pc.Model
		if model == "" {
			switch pc.Provider {
			case "gemini":
				model = cfg.Providers.Gemini.Model
			case "claude":
				model = cfg.Providers.Claude.Model
			case "openai":
				model = cfg.Providers.OpenAI.Model
			}
		}

		participants = append(participants, debate.Participant{
			Name:     pc.Name,
			Model:    model,
			Provider: backend,
		})
	}
	return participants, nil
}

func serveMetrics(port int, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics endpoint failed", zap.Error(err))
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// initLogger 按配置构建 zap logger。
func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

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

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
