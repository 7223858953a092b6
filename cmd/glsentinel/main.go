package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Aidin1998/glsentinel/internal/anomaly/engine"
	"github.com/Aidin1998/glsentinel/internal/gl/model"
	"github.com/Aidin1998/glsentinel/internal/gl/source"
	"github.com/Aidin1998/glsentinel/internal/infrastructure/config"
	"github.com/Aidin1998/glsentinel/pkg/logger"
	"github.com/Aidin1998/glsentinel/pkg/metrics"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML configuration file")
		itemsPath   = flag.String("items", "", "read line items from a JSON file instead of the database")
		tenantID    = flag.String("tenant", "default", "tenant identifier passed through to the result")
		fiscalYear  = flag.Int("fiscal-year", 0, "fiscal year to analyze (required)")
		period      = flag.Int("fiscal-period", 0, "fiscal period to analyze (optional)")
		companyCode = flag.String("company-code", "", "company code to analyze (optional)")
		account     = flag.String("account", "", "produce a risk profile for one GL account instead of a full run")
		dumpConfig  = flag.Bool("dump-config", false, "print the effective configuration as YAML and exit")
		metricsAddr = flag.String("metrics-addr", "", "expose prometheus metrics on this address (optional)")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	bootstrapLogger, err := logger.NewSugaredLogger("info")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	manager := config.NewManager(bootstrapLogger)
	cfg, err := manager.Load(*configPath)
	if err != nil {
		bootstrapLogger.Fatalw("Failed to load configuration", "error", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		bootstrapLogger.Fatalw("Failed to create logger", "error", err)
	}
	defer zapLogger.Sync()
	sugar := zapLogger.Sugar()

	if *dumpConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			sugar.Fatalw("Failed to marshal configuration", "error", err)
		}
		fmt.Print(string(out))
		return
	}

	if *fiscalYear == 0 {
		sugar.Fatal("The -fiscal-year flag is required")
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				sugar.Errorw("Metrics endpoint failed", "error", err)
			}
		}()
		sugar.Infow("Serving prometheus metrics", "addr", *metricsAddr)
	}

	dataSource, err := buildDataSource(*itemsPath, cfg, sugar)
	if err != nil {
		sugar.Fatalw("Failed to build GL data source", "error", err)
	}

	eng, err := engine.NewEngine(sugar, dataSource, cfg.Detection)
	if err != nil {
		sugar.Fatalw("Failed to build detection engine", "error", err)
	}

	filter := model.Filter{
		FiscalYear:   *fiscalYear,
		FiscalPeriod: *period,
		CompanyCode:  *companyCode,
	}

	ctx := context.Background()
	started := time.Now()

	var output interface{}
	if *account != "" {
		profiler := engine.NewProfiler(sugar, eng)
		profile, err := profiler.ProfileAccount(ctx, *tenantID, *account, filter)
		if err != nil {
			metrics.DetectionRuns.WithLabelValues("error").Inc()
			sugar.Fatalw("Account risk profiling failed", "error", err)
		}
		output = profile
		metrics.DetectionRuns.WithLabelValues("ok").Inc()
	} else {
		result, err := eng.Run(ctx, *tenantID, filter)
		if err != nil {
			metrics.DetectionRuns.WithLabelValues("error").Inc()
			sugar.Fatalw("Detection run failed", "error", err)
		}
		output = result
		metrics.DetectionRuns.WithLabelValues("ok").Inc()
		metrics.LineItemsScanned.Add(float64(result.TotalLineItems))
		for _, a := range result.Anomalies {
			metrics.AnomaliesDetected.WithLabelValues(string(a.Type), string(a.Severity)).Inc()
		}
	}
	metrics.RunDuration.Observe(time.Since(started).Seconds())

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		sugar.Fatalw("Failed to write result", "error", err)
	}
}

// buildDataSource returns a file-backed static source when -items is
// given, otherwise a database-backed source from config.
func buildDataSource(itemsPath string, cfg *config.Config, sugar *zap.SugaredLogger) (source.GLDataSource, error) {
	if itemsPath != "" {
		data, err := os.ReadFile(itemsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read items file: %w", err)
		}
		var items []model.LineItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to parse items file: %w", err)
		}
		sugar.Infow("Loaded line items from file", "file", itemsPath, "count", len(items))
		return source.NewStaticSource(items), nil
	}
	return source.NewGormSource(cfg.Database.Driver, cfg.Database.DSN, sugar)
}
