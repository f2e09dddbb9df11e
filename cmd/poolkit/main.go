package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/poolkit/pkg/logger"
	"github.com/ajitpratap0/poolkit/pkg/observability"
	"github.com/ajitpratap0/poolkit/pkg/pool"
)

var version = "0.1.0"

// DemoFlags contains the tunables for the demo workload
type DemoFlags struct {
	PoolName      string        `json:"pool_name"`
	InitialSize   int           `json:"initial_size"`
	MaxCapacity   int           `json:"max_capacity"`
	Loans         int           `json:"loans"`
	HoldFor       time.Duration `json:"hold_for"`
	DeferReturn   time.Duration `json:"defer_return"`
	SweepInterval time.Duration `json:"sweep_interval"`
	LogLevel      string        `json:"log_level"`
}

// DefaultDemoFlags returns sensible defaults for the demo workload
func DefaultDemoFlags() *DemoFlags {
	return &DemoFlags{
		PoolName:      "demo",
		InitialSize:   2,
		MaxCapacity:   8,
		Loans:         5,
		HoldFor:       50 * time.Millisecond,
		DeferReturn:   200 * time.Millisecond,
		SweepInterval: pool.DefaultSweepInterval,
		LogLevel:      "info",
	}
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	root := &cobra.Command{
		Use:   "poolkit",
		Short: "Poolkit - Generic object pooling toolkit",
		Long: `Poolkit is a generic, thread-safe object pooling library with deferred
returns and lifecycle hooks. The CLI exercises a pool against a synthetic
workload so the behavior can be observed end to end.`,
	}

	// Version command
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Poolkit v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	// Demo command
	defaults := DefaultDemoFlags()
	var configFile string
	flags := &DemoFlags{}

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a demo workload against a pool",
		Long: `Run a synthetic workload against a pool: eager fill, a burst of
acquires past the reusable set, immediate and deferred returns, and a
final stats dump.

Example:
  poolkit demo --loans 10 --defer-return 500ms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			merged, err := loadDemoFlags(configFile, flags, defaults)
			if err != nil {
				return err
			}
			return runDemo(merged)
		},
	}

	demoCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to demo configuration file (optional, JSON or YAML)")
	demoCmd.Flags().StringVar(&flags.PoolName, "pool-name", defaults.PoolName, "Name of the demo pool, used in logs and metrics")
	demoCmd.Flags().IntVar(&flags.InitialSize, "initial-size", defaults.InitialSize, "Number of objects constructed eagerly at startup")
	demoCmd.Flags().IntVar(&flags.MaxCapacity, "max-capacity", defaults.MaxCapacity, "Maximum live objects; 0 means unbounded")
	demoCmd.Flags().IntVar(&flags.Loans, "loans", defaults.Loans, "Number of objects to acquire during the burst")
	demoCmd.Flags().DurationVar(&flags.HoldFor, "hold-for", defaults.HoldFor, "How long each object is held before being returned")
	demoCmd.Flags().DurationVar(&flags.DeferReturn, "defer-return", defaults.DeferReturn, "Delay for the deferred returns (e.g. 200ms, 1s)")
	demoCmd.Flags().DurationVar(&flags.SweepInterval, "sweep-interval", defaults.SweepInterval, "How often the deferred-return queue is swept")
	demoCmd.Flags().StringVar(&flags.LogLevel, "log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")

	root.AddCommand(demoCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadDemoFlags merges a configuration file, when given, with command line
// flags. Flags explicitly set on the command line win over the file.
func loadDemoFlags(filename string, cmdFlags, defaults *DemoFlags) (*DemoFlags, error) {
	if filename == "" {
		return cmdFlags, nil
	}

	v := viper.New()
	v.SetConfigFile(filename)
	v.SetEnvPrefix("POOLKIT")
	v.AutomaticEnv()

	v.SetDefault("pool_name", defaults.PoolName)
	v.SetDefault("initial_size", defaults.InitialSize)
	v.SetDefault("max_capacity", defaults.MaxCapacity)
	v.SetDefault("loans", defaults.Loans)
	v.SetDefault("hold_for", defaults.HoldFor)
	v.SetDefault("defer_return", defaults.DeferReturn)
	v.SetDefault("sweep_interval", defaults.SweepInterval)
	v.SetDefault("log_level", defaults.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	merged := &DemoFlags{
		PoolName:      v.GetString("pool_name"),
		InitialSize:   v.GetInt("initial_size"),
		MaxCapacity:   v.GetInt("max_capacity"),
		Loans:         v.GetInt("loans"),
		HoldFor:       v.GetDuration("hold_for"),
		DeferReturn:   v.GetDuration("defer_return"),
		SweepInterval: v.GetDuration("sweep_interval"),
		LogLevel:      v.GetString("log_level"),
	}

	// Override with command line flags if they were explicitly set
	if cmdFlags.PoolName != defaults.PoolName {
		merged.PoolName = cmdFlags.PoolName
	}
	if cmdFlags.InitialSize != defaults.InitialSize {
		merged.InitialSize = cmdFlags.InitialSize
	}
	if cmdFlags.MaxCapacity != defaults.MaxCapacity {
		merged.MaxCapacity = cmdFlags.MaxCapacity
	}
	if cmdFlags.Loans != defaults.Loans {
		merged.Loans = cmdFlags.Loans
	}
	if cmdFlags.HoldFor != defaults.HoldFor {
		merged.HoldFor = cmdFlags.HoldFor
	}
	if cmdFlags.DeferReturn != defaults.DeferReturn {
		merged.DeferReturn = cmdFlags.DeferReturn
	}
	if cmdFlags.SweepInterval != defaults.SweepInterval {
		merged.SweepInterval = cmdFlags.SweepInterval
	}
	if cmdFlags.LogLevel != defaults.LogLevel {
		merged.LogLevel = cmdFlags.LogLevel
	}

	return merged, nil
}

// session is the object type the demo pools
type session struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// runDemo executes the demo workload with the given configuration
func runDemo(flags *DemoFlags) error {
	if err := logger.Init(logger.Config{Level: flags.LogLevel, Encoding: "json"}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	obs := observability.DefaultConfig()
	if err := observability.Initialize(obs); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(ctx); err != nil {
			logger.Warn("observability shutdown", zap.Error(err))
		}
	}()

	log := logger.Get().With(
		zap.String("component", "poolkit-cli"),
		zap.String("pool", flags.PoolName),
	)

	log.Info("starting demo",
		zap.Int("initial_size", flags.InitialSize),
		zap.Int("max_capacity", flags.MaxCapacity),
		zap.Int("loans", flags.Loans),
		zap.Duration("defer_return", flags.DeferReturn))

	var nextID int64
	p, err := pool.New(pool.Config[*session]{
		Name:        flags.PoolName,
		InitialSize: flags.InitialSize,
		MaxCapacity: flags.MaxCapacity,
		Factory: func() (*session, error) {
			s := &session{ID: atomic.AddInt64(&nextID, 1), CreatedAt: time.Now()}
			log.Debug("constructed session", zap.Int64("id", s.ID))
			return s, nil
		},
		PreAcquire: func(s *session) {
			log.Info("handing out session", zap.Int64("id", s.ID))
		},
		PostRelease: func(s *session) {
			log.Info("session returned", zap.Int64("id", s.ID))
		},
		Teardown: func(s *session) {
			log.Info("session destroyed", zap.Int64("id", s.ID))
		},
		SweepInterval: flags.SweepInterval,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}

	tracer := observability.NewPoolTracer(flags.PoolName)
	ctx := context.Background()
	startTime := time.Now()

	handles := make([]*pool.Handle[*session], 0, flags.Loans)
	for i := 0; i < flags.Loans; i++ {
		err := tracer.TraceLoan(ctx, func(ctx context.Context) error {
			h, err := p.Acquire()
			if err != nil {
				return err
			}
			handles = append(handles, h)
			return nil
		})
		if err != nil {
			log.Warn("acquire failed", zap.Error(err))
		}
	}

	time.Sleep(flags.HoldFor)

	// Return half immediately, half on a delay
	for i, h := range handles {
		if i%2 == 0 {
			h.Release()
		} else {
			h.ReleaseAfter(flags.DeferReturn)
		}
	}

	// Wait out the deferred returns plus one sweep interval
	time.Sleep(flags.DeferReturn + flags.SweepInterval + 50*time.Millisecond)

	stats := p.Stats()
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	fmt.Println(string(out))

	log.Info("demo completed",
		zap.Duration("duration", time.Since(startTime)),
		zap.Int64("created", stats.Created),
		zap.Int64("reused", stats.Reused))

	p.Close()
	return nil
}
