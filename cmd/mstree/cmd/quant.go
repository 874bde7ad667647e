package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/MSTree/pkg/core"
	"github.com/ChrisMcGann/MSTree/pkg/graph"
	"github.com/ChrisMcGann/MSTree/pkg/quant"
	"github.com/ChrisMcGann/MSTree/pkg/reader/extract"
	"github.com/ChrisMcGann/MSTree/pkg/writer/sqlite"
)

var (
	// Flags for quant command
	quantFormat   string
	referenceFile string
	referenceScan int
	referenceCSV  string
)

func init() {
	quantCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Target file: mzXML for full-ms, Xtract XML for xtract (required)")
	quantCmd.Flags().StringVarP(&quantFormat, "format", "f", "", "Input format: full-ms or xtract (auto-detect if not specified)")
	quantCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output SQLite database (prints a table if not set)")
	quantCmd.Flags().IntVar(&scanNumber, "scan", -1, "Target scan number (full-ms)")
	quantCmd.Flags().IntVar(&parentScan, "parent", -1, "Target parent scan number (full-ms)")
	quantCmd.Flags().StringVar(&referenceFile, "reference", "", "mzXML file holding the reference precursor scan (full-ms)")
	quantCmd.Flags().IntVar(&referenceScan, "reference-scan", -1, "Reference precursor scan (default first MS1 scan)")
	quantCmd.Flags().StringVar(&referenceCSV, "reference-csv", "", "CSV of reference precursors (MZ,Charge or Mass,Charge)")

	quantCmd.MarkFlagRequired("in")
}

var quantCmd = &cobra.Command{
	Use:   "quant",
	Short: "Match quantified peaks against a measured scan",
	Long: `Quantify reference precursor peaks against a full MS scan, or read an
Xtract quantitation file. Matching uses the configured tolerance.

Examples:
  # Precursors of MS1 scan 1 of ref.mzXML matched against target.mzXML
  mstree quant --in target.mzXML --reference ref.mzXML --reference-scan 1

  # Precursors from a CSV, 0.01 m/z absolute tolerance
  mstree quant --in target.mzXML --reference-csv precursors.csv --tolerance 0.01 --ppm=false

  # Xtract results
  mstree quant --in xtract.xml`,
	RunE: runQuant,
}

func runQuant(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputFile)
	}

	// Auto-detect format if not specified
	if quantFormat == "" {
		switch strings.ToLower(filepath.Ext(inputFile)) {
		case ".mzxml":
			quantFormat = "full-ms"
		case ".xml":
			quantFormat = "xtract"
		default:
			return fmt.Errorf("cannot auto-detect format from extension '%s', please specify --format", filepath.Ext(inputFile))
		}
	}

	var reader quant.Reader
	switch strings.ToLower(quantFormat) {
	case "full-ms", "fullms":
		peaks, err := referencePeaks(cmd.Context())
		if err != nil {
			return err
		}
		sel := graph.NoSelectors()
		sel.ScanNumber = scanNumber
		sel.ParentScanNumber = parentScan
		r := quant.NewFullMSReader(peaks, sel)
		r.GraphOptions = graphOptions()
		r.Logger = logger
		reader = r
	case "xtract":
		r := extract.NewReader()
		r.Logger = logger
		reader = r
	default:
		return fmt.Errorf("invalid format '%s', must be full-ms or xtract", quantFormat)
	}

	if !reader.IsValid(inputFile) {
		return fmt.Errorf("%s is not a valid %s file", inputFile, quantFormat)
	}

	data, err := reader.Read(cmd.Context(), inputFile, cfg.Matching.PPM, cfg.Matching.Tolerance)
	if err != nil {
		return err
	}

	if outputFile == "" {
		renderQuant(cmd.OutOrStdout(), data)
		return nil
	}

	writer, err := sqlite.NewWriter(outputFile, sqlite.Header{SourceFile: inputFile, Topology: graph.MsProfile.String()})
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()
	if err := writer.WriteQuant(data); err != nil {
		return err
	}
	if err := writer.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", outputFile)
	return nil
}

// referencePeaks loads the precursor peaks to quantify from a CSV file or
// from the precursor-flagged peaks of a reference scan
func referencePeaks(ctx context.Context) ([]core.Peak, error) {
	if referenceCSV != "" {
		return loadReferenceCSV(referenceCSV)
	}
	if referenceFile == "" {
		return nil, fmt.Errorf("full-ms quantitation requires --reference or --reference-csv")
	}

	src, err := openSource(referenceFile)
	if err != nil {
		return nil, err
	}
	builder := graph.NewBuilder(src, graphOptions()...)

	target := referenceScan
	if target < 0 {
		first, err := builder.FirstMS1Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("no reference scan: %w", err)
		}
		target = first.ScanNumber
	}

	sel := graph.NoSelectors()
	sel.ParentScanNumber = target
	scans, err := builder.Build(ctx, graph.LcMsMs, sel)
	if err != nil {
		return nil, err
	}
	scan, ok := core.IndexScans(scans)[target]
	if !ok {
		return nil, fmt.Errorf("reference scan %d not found in %s", target, referenceFile)
	}
	return scan.Peaks, nil
}

// loadReferenceCSV reads precursors from a CSV with a header row. A header
// starting with Mass gives neutral masses, otherwise the first column is m/z.
func loadReferenceCSV(path string) ([]core.Peak, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)

	masses := false
	if scanner.Scan() {
		header := strings.ToLower(strings.TrimSpace(scanner.Text()))
		masses = strings.HasPrefix(header, "mass")
	}

	var peaks []core.Peak
	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("line %d: expected 2 fields (MZ,Charge), got %d", lineNum, len(parts))
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid m/z value '%s': %w", lineNum, parts[0], err)
		}
		charge, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid charge '%s': %w", lineNum, parts[1], err)
		}

		mz := value
		if masses {
			if charge <= 0 {
				return nil, fmt.Errorf("line %d: a mass needs a positive charge", lineNum)
			}
			mz = core.MZFromMass(value, charge)
		}
		peaks = append(peaks, core.Peak{
			ID:              len(peaks) + 1,
			MZ:              mz,
			IsPrecursor:     true,
			PrecursorMZ:     mz,
			PrecursorCharge: charge,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return peaks, nil
}

func renderQuant(w io.Writer, data *quant.QuantPeakData) {
	fmt.Fprintf(w, "Scan: %d  RT: %.2f  Max intensity: %s\n",
		data.ScanNumber, data.RetentionTime, humanize.SIWithDigits(data.MaxIntensity, 2, ""))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Peak m/z", "Mono mass", "Charge", "Most abundant m/z", "Intensity", "Sum", "Min m/z", "Max m/z"})
	for _, m := range data.AllMatches() {
		table.Append([]string{
			fmt.Sprintf("%.4f", m.Peak.MZ),
			fmt.Sprintf("%.4f", m.Peak.MassMonoisotopic),
			strconv.Itoa(m.Charge),
			fmt.Sprintf("%.4f", m.MZMostAbundant),
			humanize.SIWithDigits(m.IntensitySum, 2, ""),
			humanize.SIWithDigits(m.Peak.SumIntensity, 2, ""),
			fmt.Sprintf("%.4f", m.MinMZ),
			fmt.Sprintf("%.4f", m.MaxMZ),
		})
	}
	table.Render()
}
