package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/NAMEAMITSONI/authopsy/pkg/report"
)

var reportCmd = &cobra.Command{
	Use:   "report <scan.json>",
	Short: "Render a previously exported JSON report",
	Long: `Loads a JSON export produced by 'scan --output' and renders it again,
to the console or as a standalone HTML page. The export is the stable
interchange shape, so reports can be archived and re-rendered later.`,
	Example: `  authopsy report scan.json
  authopsy report scan.json --html scan.html`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("html", "", "write an HTML report instead of console output")
}

func runReport(cmd *cobra.Command, args []string) error {
	r, err := report.LoadJSON(args[0])
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("html"); path != "" {
		if err := report.SaveHTML(path, r); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "HTML report written to %s\n", path)
		return nil
	}

	report.PrintReport(os.Stdout, r)
	return nil
}
