// Package cmd provides CLI command implementations
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ChrisMcGann/MSTree/internal/config"
	"github.com/ChrisMcGann/MSTree/pkg/graph"
	"github.com/ChrisMcGann/MSTree/pkg/reader/mzxml"
	"github.com/ChrisMcGann/MSTree/pkg/source"
)

var (
	// Global flags
	configFile string

	// Shared by the scan commands
	inputFile    string
	outputFile   string
	topologyName string
	scanNumber   int
	parentScan   int
	msLevel      int

	cfg    *config.Config
	logger = zerolog.Nop()
)

// Persistent flags and the config keys they override
var flagKeys = map[string]string{
	"tolerance":         config.KeyTolerance,
	"ppm":               config.KeyPPM,
	"subtree-window":    config.KeySubtreeWindow,
	"progress-interval": config.KeyProgressInterval,
	"cache-size":        config.KeyCacheSize,
	"log-level":         config.KeyLogLevel,
	"log-format":        config.KeyLogFormat,
}

var rootCmd = &cobra.Command{
	Use:   "mstree",
	Short: "MSTree - Mass spectrometry scan hierarchy tool",
	Long: `MSTree reconstructs the parent/child scan hierarchy of mass spectrometry
runs stored as mzXML and matches quantified mass features against measured
peak lists.

Supported acquisition topologies:
- direct-infusion
- trapped-ion-mobility
- lc-msms (requires a scan, parent or MS level selector)
- ms-profile (a single scan with its full peak list)`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. An interrupt cancels a running build.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization
	// cycle: loadConfig refers to rootCmd.
	rootCmd.PersistentPreRunE = loadConfig

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(quantCmd)
	rootCmd.AddCommand(validateCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default ./mstree.yaml if present)")
	flags.Float64("tolerance", 10, "Matching tolerance, in ppm with --ppm or m/z units otherwise")
	flags.Bool("ppm", true, "Interpret --tolerance as parts per million")
	flags.Int("subtree-window", graph.DefaultSubtreeWindow, "Maximum number of scans read after a parent scan")
	flags.Int("progress-interval", graph.DefaultProgressInterval, "Report progress every N scans")
	flags.Int("cache-size", source.DefaultCacheSize, "Number of scans kept in the spectrum cache")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "console", "Log format: console or json")
}

// loadConfig merges defaults, config file, environment and changed flags
func loadConfig(cmd *cobra.Command, args []string) error {
	v := viper.New()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	loaded, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	cfg = loaded
	logger = cfg.Logger(cmd.ErrOrStderr())
	logger.Debug().
		Float64("tolerance", cfg.Matching.Tolerance).
		Bool("ppm", cfg.Matching.PPM).
		Int("subtree_window", cfg.Graph.SubtreeWindow).
		Msg("configuration loaded")
	return nil
}

// addSelectorFlags registers the input, topology and selector flags
func addSelectorFlags(cmd *cobra.Command, defaultTopology string) {
	cmd.Flags().StringVarP(&inputFile, "in", "i", "", "Input mzXML file (required)")
	cmd.Flags().StringVarP(&topologyName, "topology", "t", defaultTopology, "Topology: direct-infusion, trapped-ion-mobility, lc-msms, ms-profile")
	cmd.Flags().IntVar(&scanNumber, "scan", -1, "Scan number selector")
	cmd.Flags().IntVar(&parentScan, "parent", -1, "Parent scan number selector")
	cmd.Flags().IntVar(&msLevel, "ms-level", -1, "MS level selector")
	cmd.MarkFlagRequired("in")
}

func selectors() graph.Selectors {
	return graph.Selectors{
		MSLevel:          msLevel,
		ParentScanNumber: parentScan,
		ScanNumber:       scanNumber,
	}
}

// openSource opens an mzXML file behind a spectrum cache
func openSource(path string) (*source.Cache, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("input file does not exist: %s", path)
	}

	file, err := mzxml.Open(path)
	if err != nil {
		return nil, err
	}
	if err := file.Skipped(); err != nil {
		logger.Warn().Err(err).Str("file", path).Msg("some scan elements were skipped")
	}
	return source.NewCache(file, cfg.Graph.CacheSize)
}

// graphOptions returns builder options from config, logging to the CLI logger
func graphOptions() []graph.Option {
	return append(cfg.GraphOptions(),
		graph.WithSink(graph.LogSink{Logger: logger}),
		graph.WithLogger(logger),
	)
}

func logCacheStats(c *source.Cache) {
	hits, misses := c.Stats()
	logger.Debug().Int("hits", hits).Int("misses", misses).Msg("spectrum cache")
}
