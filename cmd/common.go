package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NAMEAMITSONI/authopsy/internal/httpclient"
	"github.com/NAMEAMITSONI/authopsy/internal/ratelimit"
	"github.com/NAMEAMITSONI/authopsy/pkg/authz"
	"github.com/NAMEAMITSONI/authopsy/pkg/openapi"
)

// addEndpointSourceFlags wires the two mutually exclusive endpoint sources.
func addEndpointSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("spec", "", "OpenAPI 3.x / Swagger 2.0 document (JSON or YAML)")
	cmd.Flags().String("endpoints", "", `manual endpoint list, e.g. "GET /api/users, POST /api/users/{id}"`)
}

// loadEndpoints resolves the endpoint source. Malformed input is
// session-fatal: a scan against the wrong endpoint set is worse than no
// scan.
func loadEndpoints(cmd *cobra.Command) ([]authz.Endpoint, error) {
	specPath, _ := cmd.Flags().GetString("spec")
	manual, _ := cmd.Flags().GetString("endpoints")

	switch {
	case specPath != "" && manual != "":
		return nil, fmt.Errorf("--spec and --endpoints are mutually exclusive")
	case specPath != "":
		spec, err := openapi.ParseFile(specPath)
		if err != nil {
			return nil, err
		}
		eps := spec.Endpoints()
		if len(eps) == 0 {
			return nil, fmt.Errorf("spec %s yields no endpoints", specPath)
		}
		return eps, nil
	case manual != "":
		return authz.ParseEndpointList(manual)
	default:
		return nil, fmt.Errorf("either --spec or --endpoints is required")
	}
}

// parseOverrides turns repeated "name=value" flags into the resolver's
// override map.
func parseOverrides(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	overrides := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q: expected name=value", pair)
		}
		overrides[name] = value
	}
	return overrides, nil
}

func buildResolver(cmd *cobra.Command, target string) (*authz.Resolver, error) {
	params, _ := cmd.Flags().GetStringArray("param")
	overrides, err := parseOverrides(params)
	if err != nil {
		return nil, err
	}
	resolver, err := authz.NewResolver(target, overrides)
	if err != nil {
		return nil, err
	}
	resolver.UserAgent = cfg.HTTP.UserAgent
	return resolver, nil
}

func buildDispatcher(concurrency int) *authz.Dispatcher {
	client := httpclient.NewClient(httpclient.ClientConfig{
		Timeout:         cfg.HTTP.Timeout,
		FollowRedirects: cfg.HTTP.FollowRedirects,
		MaxRedirects:    cfg.HTTP.MaxRedirects,
	})
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
	})
	d := authz.NewDispatcher(client, limiter, concurrency, cfg.HTTP.Timeout)
	d.Log = log.WithComponent("dispatcher")
	return d
}

// credentialsFromFlags reads tokens from flags, falling back to the
// AUTHOPSY_ADMIN_TOKEN / AUTHOPSY_USER_TOKEN environment bindings.
func credentialsFromFlags(cmd *cobra.Command) authz.CredentialSet {
	adminToken, _ := cmd.Flags().GetString("admin-token")
	userToken, _ := cmd.Flags().GetString("user-token")
	header, _ := cmd.Flags().GetString("auth-header")

	if adminToken == "" {
		adminToken = viper.GetString("scanner.admin_token")
	}
	if userToken == "" {
		userToken = viper.GetString("scanner.user_token")
	}

	creds := authz.NewCredentialSet(adminToken, userToken)
	if header != "" {
		creds.Header = header
	} else if cfg.Scanner.HeaderName != "" {
		creds.Header = cfg.Scanner.HeaderName
	}
	return creds
}
