package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/MSTree/pkg/core"
	"github.com/ChrisMcGann/MSTree/pkg/filter"
	"github.com/ChrisMcGann/MSTree/pkg/graph"
	"github.com/ChrisMcGann/MSTree/pkg/source"
	"github.com/ChrisMcGann/MSTree/pkg/writer/sqlite"
)

var (
	// Flags for build command
	subtree             bool
	topN                int
	cutoff              float64
	cutoffType          string
	precursorCutoff     float64
	precursorCutoffType string
)

func init() {
	addSelectorFlags(buildCmd, graph.DirectInfusion.String())
	buildCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output SQLite database (prints a table if not set)")
	buildCmd.Flags().BoolVar(&subtree, "subtree", false, "With --parent, follow declared precursor scans instead of scan order")
	buildCmd.Flags().IntVar(&topN, "top-n", 0, "Keep only top N most intense non-precursor peaks (0 = no limit)")
	buildCmd.Flags().Float64Var(&cutoff, "cutoff", 0, "Intensity cutoff for non-precursor peaks (0 = no cutoff)")
	buildCmd.Flags().StringVar(&cutoffType, "cutoff-type", "percentage", "Cutoff type: percentage of base peak or absolute")
	buildCmd.Flags().Float64Var(&precursorCutoff, "precursor-cutoff", 0, "Intensity cutoff for precursor peaks, dropping their child scans (0 = keep all)")
	buildCmd.Flags().StringVar(&precursorCutoffType, "precursor-cutoff-type", "percentage", "Precursor cutoff type: percentage or absolute")
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Reconstruct the scan hierarchy of an mzXML file",
	Long: `Reconstruct the parent/child scan hierarchy of an mzXML file and print it
as a table or export it to a SQLite database.

Examples:
  # Direct infusion run
  mstree build --in run.mzXML

  # One precursor scan of an LC-MS/MS run, exported to SQLite
  mstree build --in run.mzXML --topology lc-msms --parent 120 --out run.db

  # Top 50 peaks per scan, dropping children of precursors under 5% of the base peak
  mstree build --in run.mzXML --top-n 50 --precursor-cutoff 5`,
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	topology, err := graph.ParseTopology(topologyName)
	if err != nil {
		return err
	}
	filterConfig, err := newFilterConfig()
	if err != nil {
		return err
	}

	src, err := openSource(inputFile)
	if err != nil {
		return err
	}
	defer logCacheStats(src)

	scans, err := buildScans(cmd.Context(), src, topology)
	if err != nil {
		return err
	}

	if topology == graph.MsProfile {
		for _, scan := range scans {
			filter.RemoveZeroIntensityPeaks(scan)
		}
	}
	if filterConfig.Enabled() {
		before := len(scans)
		scans = filterConfig.ApplyAll(scans)
		logger.Info().Int("removed", before-len(scans)).Msg("filtered scans")
	}

	invalid := 0
	for _, scan := range scans {
		if err := scan.Validate(); err != nil {
			logger.Warn().Err(err).Int("scan", scan.ScanNumber).Msg("invalid scan")
			invalid++
		}
	}

	if outputFile == "" {
		return renderScans(cmd.OutOrStdout(), scans)
	}

	writer, err := sqlite.NewWriter(outputFile, sqlite.Header{SourceFile: inputFile, Topology: topology.String()})
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	for _, scan := range scans {
		if err := writer.WriteScan(scan); err != nil {
			return err
		}
	}
	if err := writer.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Written: %s scans\n", humanize.Comma(int64(len(scans))))
	if invalid > 0 {
		fmt.Fprintf(out, "Invalid: %d scans (see warnings)\n", invalid)
	}
	fmt.Fprintf(out, "Output: %s\n", outputFile)
	return nil
}

// buildScans runs the builder, following declared precursor scans with --subtree
func buildScans(ctx context.Context, src source.Source, topology graph.Topology) ([]*core.Scan, error) {
	builder := graph.NewBuilder(src, graphOptions()...)
	if !subtree {
		return builder.Build(ctx, topology, selectors())
	}
	if parentScan < 0 {
		return nil, fmt.Errorf("--subtree requires --parent")
	}
	subScans, err := source.SubScanMap(ctx, src)
	if err != nil {
		return nil, err
	}
	return builder.BuildSubtree(ctx, parentScan, subScans)
}

func newFilterConfig() (*filter.Config, error) {
	typ, err := filter.ParseCutoffType(cutoffType)
	if err != nil {
		return nil, err
	}
	precursorTyp, err := filter.ParseCutoffType(precursorCutoffType)
	if err != nil {
		return nil, err
	}
	return &filter.Config{
		TopN:                topN,
		Cutoff:              cutoff,
		CutoffType:          typ,
		PrecursorCutoff:     precursorCutoff,
		PrecursorCutoffType: precursorTyp,
	}, nil
}

func renderScans(w io.Writer, scans []*core.Scan) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Scan", "Level", "RT", "Parent", "Precursor m/z", "Charge", "Peaks", "TIC", "Children"})
	for _, s := range scans {
		parent := ""
		if s.HasParent() {
			parent = strconv.Itoa(s.ParentScanNumber)
		}
		precursor := ""
		if s.PrecursorMZ > 0 {
			precursor = strconv.FormatFloat(core.RoundFloat(s.PrecursorMZ, 4), 'f', -1, 64)
		}
		children := make([]string, len(s.Children))
		for i, c := range s.Children {
			children[i] = strconv.Itoa(c)
		}
		table.Append([]string{
			strconv.Itoa(s.ScanNumber),
			strconv.Itoa(s.MSLevel),
			strconv.FormatFloat(core.RoundFloat(s.RetentionTime, 2), 'f', -1, 64),
			parent,
			precursor,
			strconv.Itoa(s.PrecursorCharge),
			strconv.Itoa(len(s.Peaks)),
			humanize.SIWithDigits(s.TotalIntensity, 2, ""),
			strings.Join(children, ","),
		})
	}
	table.Render()
	return nil
}
