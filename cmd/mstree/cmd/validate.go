package cmd

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/MSTree/pkg/graph"
	"github.com/ChrisMcGann/MSTree/pkg/reader/extract"
	"github.com/ChrisMcGann/MSTree/pkg/reader/mzxml"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate input file format and contents",
	Long: `Validate that an input file is a readable mzXML or Xtract file. mzXML files
are rebuilt as a direct infusion hierarchy and every scan is checked.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	out := cmd.OutOrStdout()

	xtract := extract.NewReader()
	xtract.Logger = logger
	if xtract.IsValid(path) {
		fmt.Fprintf(out, "%s: valid Xtract file\n", path)
		return nil
	}
	if !mzxml.IsValid(path) {
		return fmt.Errorf("%s is not a valid mzXML or Xtract file", path)
	}

	src, err := openSource(path)
	if err != nil {
		return err
	}
	defer logCacheStats(src)

	scans, err := graph.NewBuilder(src, graphOptions()...).Build(cmd.Context(), graph.DirectInfusion, graph.NoSelectors())
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, scan := range scans {
		if err := scan.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %d of %d scans invalid: %w", path, len(result.Errors), len(scans), err)
	}

	fmt.Fprintf(out, "%s: valid mzXML file, %d scans\n", path, len(scans))
	return nil
}
