package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/ChrisMcGann/MSTree/pkg/core"
	"github.com/ChrisMcGann/MSTree/pkg/graph"
	"github.com/ChrisMcGann/MSTree/pkg/source"
	"github.com/ChrisMcGann/MSTree/pkg/view"
)

var listOnly bool

func init() {
	addSelectorFlags(viewCmd, graph.DirectInfusion.String())
	viewCmd.Flags().BoolVar(&listOnly, "list", false, "Only list the scans one level below --parent (top-level scans without it)")
}

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print the scan hierarchy as a tree",
	Long: `Print a lightweight tree of scan numbers, MS levels, retention times and
precursors without decoding peak lists.

Examples:
  mstree view --in run.mzXML
  mstree view --in run.mzXML --topology lc-msms --scan 42
  mstree view --in run.mzXML --list --parent 1`,
	RunE: runView,
}

func runView(cmd *cobra.Command, args []string) error {
	src, err := openSource(inputFile)
	if err != nil {
		return err
	}
	defer logCacheStats(src)

	if listOnly {
		scans, err := source.ScanList(cmd.Context(), src, parentScan)
		if err != nil {
			return err
		}
		for _, n := range scans {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	}

	topology, err := graph.ParseTopology(topologyName)
	if err != nil {
		return err
	}
	roots, err := view.NewBuilder(src, graphOptions()...).Build(cmd.Context(), topology, selectors())
	if err != nil {
		return err
	}
	renderTree(cmd.OutOrStdout(), inputFile, roots)
	return nil
}

func renderTree(w io.Writer, name string, roots []*core.ScanView) {
	tree := treeprint.NewWithRoot(name)
	for _, root := range roots {
		addView(tree, root)
	}
	fmt.Fprint(w, tree.String())
}

func addView(tree treeprint.Tree, v *core.ScanView) {
	label := fmt.Sprintf("scan %d MS%d RT %.2f", v.ScanNumber, v.MSLevel, v.RetentionTime)
	if v.PrecursorMZ > 0 {
		label += fmt.Sprintf(" precursor %.4f", v.PrecursorMZ)
	}
	if len(v.Children) == 0 {
		tree.AddNode(label)
		return
	}
	branch := tree.AddBranch(label)
	for _, c := range v.Children {
		addView(branch, c)
	}
}
