package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "List the endpoints an API document or endpoint list yields",
	Long: `Dry run of endpoint extraction: shows exactly which method/path pairs a
scan would replay, with the inferred type and default value of every path
parameter. Useful for checking a spec before pointing the scanner at a
live system.`,
	Example: `  authopsy parse --spec openapi.yaml
  authopsy parse --endpoints "GET /api/users/{id}, DELETE /api/users/{id}"`,
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	addEndpointSourceFlags(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	endpoints, err := loadEndpoints(cmd)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%d endpoints\n\n", len(endpoints))
	for _, ep := range endpoints {
		fmt.Fprintln(os.Stdout, ep.DisplayPath())
		for _, p := range ep.PathParams {
			fmt.Fprintf(os.Stdout, "    {%s} %s -> %q\n", p.Name, p.Type, p.DefaultValue())
		}
		if len(ep.QueryParams) > 0 {
			fmt.Fprintf(os.Stdout, "    query: %v\n", ep.QueryParams)
		}
		if len(ep.BodyExample) > 0 {
			fmt.Fprintf(os.Stdout, "    body: %s\n", ep.BodyExample)
		}
	}
	return nil
}
