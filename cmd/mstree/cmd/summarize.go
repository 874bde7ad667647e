package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/MSTree/pkg/source"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize mzXML file contents",
	Long:  `Print summary statistics about an mzXML file including scan counts per MS level, the first readable scan and the top-level scans.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := openSource(args[0])
		if err != nil {
			return err
		}
		defer logCacheStats(src)

		summary, err := summarize(cmd.Context(), src)
		if err != nil {
			return err
		}
		if info, err := os.Stat(args[0]); err == nil {
			summary.size = uint64(info.Size())
		}
		renderSummary(cmd.OutOrStdout(), args[0], summary)
		return nil
	},
}

type fileSummary struct {
	size      uint64
	firstScan int
	maxScan   int
	minLevel  int
	topLevel  int
	hasMS1    bool
	levels    map[int]int // MS level to scan count
}

func summarize(ctx context.Context, src source.Source) (*fileSummary, error) {
	s := &fileSummary{
		firstScan: source.FirstScanNumber(src),
		maxScan:   src.MaxScanNumber(),
		minLevel:  source.MinMSLevel(src),
		hasMS1:    source.HasMS1Scan(src),
		levels:    make(map[int]int),
	}

	for i := 1; i <= s.maxScan; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := src.Header(i)
		if err != nil {
			continue
		}
		if _, ok := s.levels[h.MSLevel]; !ok {
			s.levels[h.MSLevel] = source.CountScans(src, h.MSLevel)
		}
	}

	top, err := source.ScanList(ctx, src, -1)
	if err != nil {
		return nil, err
	}
	s.topLevel = len(top)
	return s, nil
}

func renderSummary(w io.Writer, name string, s *fileSummary) {
	fmt.Fprintf(w, "File: %s (%s)\n", name, humanize.Bytes(s.size))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Property", "Value"})
	table.Append([]string{"First scan", strconv.Itoa(s.firstScan)})
	table.Append([]string{"Last scan", strconv.Itoa(s.maxScan)})
	table.Append([]string{"Lowest MS level", strconv.Itoa(s.minLevel)})
	table.Append([]string{"Top-level scans", humanize.Comma(int64(s.topLevel))})
	table.Append([]string{"MS1 with peaks", strconv.FormatBool(s.hasMS1)})

	levels := make([]int, 0, len(s.levels))
	for level := range s.levels {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	for _, level := range levels {
		table.Append([]string{fmt.Sprintf("MS%d scans", level), humanize.Comma(int64(s.levels[level]))})
	}
	table.Render()
}
