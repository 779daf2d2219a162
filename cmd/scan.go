package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/NAMEAMITSONI/authopsy/internal/database"
	"github.com/NAMEAMITSONI/authopsy/pkg/authz"
	"github.com/NAMEAMITSONI/authopsy/pkg/report"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a differential authorization scan",
	Long: `Replays every endpoint under admin, user and anonymous identities and
classifies the differences: vertical escalation, missing authentication,
role confusion, sensitive field exposure, pagination bypass, size and
timing anomalies.

Per-endpoint failures (timeouts, connection errors, unresolvable path
parameters) become findings inside the report; the command only fails on
input errors.`,
	Example: `  # Scan from an OpenAPI document
  authopsy scan --target https://api.example.com --spec openapi.json \
    --admin-token "Bearer eyJ..." --user-token "Bearer eyJ..."

  # Scan a manual endpoint list with a custom auth header
  authopsy scan --target https://api.example.com \
    --endpoints "GET /api/users, GET /api/users/{id}, DELETE /api/users/{id}" \
    --auth-header X-API-Key --admin-token ak_admin --user-token ak_user

  # Export JSON and HTML, skip health endpoints
  authopsy scan --target https://api.example.com --spec api.yaml \
    --admin-token A --user-token U \
    --output scan.json --html scan.html --public /health --public /login`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("target", "", "base URL of the API under test (required)")
	scanCmd.MarkFlagRequired("target")
	addEndpointSourceFlags(scanCmd)

	scanCmd.Flags().String("admin-token", "", "credential for the admin identity (or AUTHOPSY_ADMIN_TOKEN)")
	scanCmd.Flags().String("user-token", "", "credential for the user identity (or AUTHOPSY_USER_TOKEN)")
	scanCmd.Flags().String("auth-header", "", "header the credentials are sent in (default Authorization)")
	scanCmd.Flags().Bool("anon", true, "include the anonymous identity")

	scanCmd.Flags().Int("concurrency", 0, "maximum in-flight requests (default 50)")
	scanCmd.Flags().Float64("size-threshold", 0, "relative size delta treated as anomalous (default 0.05)")
	scanCmd.Flags().StringArray("param", nil, "path parameter override name=value (repeatable)")
	scanCmd.Flags().StringArray("skip", nil, "path substring to exclude from classification (repeatable)")
	scanCmd.Flags().StringArray("public", nil, "path substring expected to answer everyone (repeatable)")
	scanCmd.Flags().StringArray("ignore", nil, "JSON key path to drop from structural diffs (repeatable)")

	scanCmd.Flags().String("output", "", "write the JSON report to this file")
	scanCmd.Flags().String("html", "", "write an HTML report to this file")
}

func runScan(cmd *cobra.Command, args []string) error {
	target, _ := cmd.Flags().GetString("target")

	endpoints, err := loadEndpoints(cmd)
	if err != nil {
		return err
	}

	resolver, err := buildResolver(cmd, target)
	if err != nil {
		return err
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency == 0 {
		concurrency = cfg.Scanner.Concurrency
	}

	threshold, _ := cmd.Flags().GetFloat64("size-threshold")
	if threshold == 0 {
		threshold = cfg.Scanner.SizeThreshold
	}
	skip, _ := cmd.Flags().GetStringArray("skip")
	public, _ := cmd.Flags().GetStringArray("public")
	ignore, _ := cmd.Flags().GetStringArray("ignore")
	anon, _ := cmd.Flags().GetBool("anon")

	scanner := &authz.Scanner{
		Resolver:   resolver,
		Dispatcher: buildDispatcher(concurrency),
		Classifier: &authz.Classifier{
			SizeThreshold: threshold,
			SkipPaths:     skip,
			PublicPaths:   public,
			IgnorePaths:   ignore,
		},
		Creds:    credentialsFromFlags(cmd),
		Log:      log.WithComponent("scanner").WithTarget(target),
		SkipAnon: !anon,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := scanner.Run(ctx, endpoints)
	if result == nil {
		return err
	}
	if err != nil {
		log.Warnw("Scan interrupted, reporting partial results", "error", err)
	}

	report.PrintReport(os.Stdout, result)

	if path, _ := cmd.Flags().GetString("output"); path != "" {
		if err := report.SaveJSON(path, result); err != nil {
			return err
		}
		log.Infow("JSON report written", "path", path)
	}
	if path, _ := cmd.Flags().GetString("html"); path != "" {
		if err := report.SaveHTML(path, result); err != nil {
			return err
		}
		log.Infow("HTML report written", "path", path)
	}

	if cfg.Database.DSN != "" {
		store, err := database.NewStore(cfg.Database, log)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SaveReport(context.Background(), result); err != nil {
			return err
		}
	}

	return nil
}
