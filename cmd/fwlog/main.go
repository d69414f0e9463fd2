package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"fwlog/config"
	"fwlog/internal/directory"
	"fwlog/internal/logger"
	"fwlog/internal/metrics"
	"fwlog/internal/normalize"
	"fwlog/internal/orchestrator"
	"fwlog/internal/render"
	"fwlog/internal/rules"
	vendor "fwlog/internal/firewall"
	_ "fwlog/internal/firewall/paloalto"
	_ "fwlog/internal/firewall/secui"
	"fwlog/internal/firewall/transport"
	"fwlog/pkg/models"
)

var (
	configArg string
	username  string
	password  string
	jsonOut   bool

	deviceNames []string
	srcAddr     string
	dstAddr     string
	severity    string
	limit       int
)

var rootCmd = &cobra.Command{
	Use:   "fwlog",
	Short: "Retrieve and normalize firewall logs across vendors",
	Long: `fwlog queries the management plane of Palo Alto and SECUI Bluemax
firewalls for traffic and system logs and prints them as canonical records.

Devices come from the directory file named in the config. Traffic queries may
name devices explicitly or let the directory pick the devices that see a
source/destination pair.`,
	SilenceUsage: true,
}

var trafficCmd = &cobra.Command{
	Use:   "traffic",
	Short: "Fetch traffic logs by device or by source/destination",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, models.QueryRequest{
			Kind:    models.KindTraffic,
			Devices: deviceNames,
			Src:     srcAddr,
			Dst:     dstAddr,
			Limit:   limit,
		})
	},
}

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Fetch system logs of a severity from named devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, models.QueryRequest{
			Kind:     models.KindSystem,
			Devices:  deviceNames,
			Severity: severity,
			Limit:    limit,
		})
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the device directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(false)
		if err != nil {
			return err
		}
		defer logger.Sync()
		if jsonOut {
			return writeJSON(cmd, a.dir.ListAll())
		}
		fmt.Fprintln(cmd.OutOrStdout(), render.Devices(a.dir.ListAll()))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configArg, "config", "c", "", "Config file (default: ./fwlog.yml or next to the executable)")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "Override device username / client id")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "Override device password / client secret (or set FWLOG_PASSWORD)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print JSON instead of tables")

	for _, cmd := range []*cobra.Command{trafficCmd, systemCmd} {
		cmd.Flags().StringSliceVarP(&deviceNames, "device", "d", nil, "Device name (repeatable)")
		cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows per device (default from config)")
	}
	trafficCmd.Flags().StringVar(&srcAddr, "src", "", "Source address")
	trafficCmd.Flags().StringVar(&dstAddr, "dst", "", "Destination address")
	systemCmd.Flags().StringVarP(&severity, "severity", "s", "critical", "Severity (critical, high, medium, low, informational)")
	_ = systemCmd.MarkFlagRequired("device")

	rootCmd.AddCommand(trafficCmd, systemCmd, devicesCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg     *config.Config
	dir     *directory.Directory
	orch    *orchestrator.Orchestrator
	metrics *metrics.Metrics
}

func setup(withMetrics bool) (*app, error) {
	configPath := config.FindConfigFile(configArg)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if configArg != "" || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config %s: %w", configPath, err)
		}
		log.Printf("Warning: no config file found, using defaults")
		cfg = &config.Config{}
	}
	config.ApplyDefaults(cfg)
	c := &cfg.FWLog

	if err := logger.Init(c.Logging.Enabled, c.Logging.Level, c.Logging.File, c.Logging.Console); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.Infof("Config loaded from: %s", configPath)

	dir, err := directory.Load(c.Directory.Path)
	if err != nil {
		return nil, err
	}
	logger.Infof("Device directory loaded: %d device(s) from %s", dir.Len(), c.Directory.Path)

	normalizer := normalize.New(nil,
		normalize.DefaultTrafficColumns().WithExtra(c.Normalize.ExtraAliases.Traffic),
		normalize.DefaultSystemColumns().WithExtra(c.Normalize.ExtraAliases.System),
	)

	opts := []orchestrator.Option{
		orchestrator.WithWorkers(c.Retrieval.Workers),
		orchestrator.WithNormalizer(normalizer),
	}

	if c.Rules.Enabled {
		if strings.TrimSpace(c.Rules.Path) == "" {
			logger.Warnf("Rules enabled but rules.path is empty; record tagging disabled")
		} else {
			engine, stats, err := rules.NewSigmaEngine(c.Rules.Path)
			if err != nil {
				return nil, fmt.Errorf("load Sigma rules from %s: %w", c.Rules.Path, err)
			}
			logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_datasource=%d skipped_invalid=%d files=%d",
				stats.Loaded, stats.SkippedComplex, stats.SkippedDatasource, stats.SkippedInvalid, stats.TotalFiles)
			if stats.Loaded == 0 {
				logger.Warnf("No firewall-compatible Sigma rules loaded; record tagging is effectively disabled")
			}
			opts = append(opts, orchestrator.WithRules(engine))
		}
	}

	var m *metrics.Metrics
	if withMetrics {
		m = metrics.New()
		opts = append(opts, orchestrator.WithMetrics(m))
	}

	registry := vendor.NewRegistry(vendorOptions(c.Retrieval))
	return &app{
		cfg:     cfg,
		dir:     dir,
		orch:    orchestrator.New(registry, opts...),
		metrics: m,
	}, nil
}

func vendorOptions(r config.RetrievalConfig) vendor.Options {
	return vendor.Options{
		Poll:            vendor.PollPolicy{Interval: r.PollInterval, Deadline: r.Deadline},
		PageSize:        r.PageSize,
		MaxRows:         r.MaxRows,
		TeardownTimeout: r.TeardownTimeout,
		TrafficLookback: r.TrafficLookback,
		SystemLookback:  r.SystemLookback,
		Transport: transport.Options{
			Timeout:     r.HTTPTimeout,
			InsecureTLS: !r.VerifyTLS,
			RateLimit:   r.RateLimit,
			RateBurst:   r.RateBurst,
		},
	}
}

func runQuery(cmd *cobra.Command, req models.QueryRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	a, err := setup(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver := withCredentials(a.dir, username, passwordFromEnv(password))
	results, err := a.orch.Execute(ctx, resolver, req)
	if errors.Is(err, models.ErrNoCandidateDevices) {
		if jsonOut {
			return writeJSON(cmd, models.NewQueryResponse("", nil, err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), render.NoCandidateMessage(req.Src, req.Dst))
		return nil
	}
	if err != nil {
		return err
	}

	if jsonOut {
		return render.JSON(cmd.OutOrStdout(), results)
	}
	return render.Results(cmd.OutOrStdout(), results)
}

func passwordFromEnv(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("FWLOG_PASSWORD")
}
