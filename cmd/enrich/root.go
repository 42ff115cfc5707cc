package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/blackmichael/social-enrichment/internal/config"
	"github.com/blackmichael/social-enrichment/internal/domain"
	"github.com/blackmichael/social-enrichment/internal/instagram"
	"github.com/blackmichael/social-enrichment/internal/logging"
)

type options struct {
	apiBase      string
	accessToken  string
	cachedID     string
	logLevel     string
	clientID     string
	clientSecret string
	redirectURL  string
}

// newRootCmd builds the CLI. Flag defaults come from defaults, normally the
// INSTAGRAM_* environment.
func newRootCmd(defaults config.InstagramConfig) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "enrich",
		Short: "Fetch public Instagram data for a handle",
		Long: `enrich resolves an Instagram handle and prints the social data the
enrichment service would store for a lead, as JSON.

It can also walk through the OAuth flow that produces an access token.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger := logging.NewWithWriter(logging.Config{Level: opts.logLevel, Pretty: true}, cmd.ErrOrStderr())
			cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.apiBase, "api-base", defaults.APIBase, "Instagram API base URL")
	pf.StringVar(&opts.accessToken, "token", defaults.AccessToken, "Instagram access token")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	pf.StringVar(&opts.clientID, "client-id", defaults.ClientID, "OAuth client id")
	pf.StringVar(&opts.clientSecret, "client-secret", defaults.ClientSecret, "OAuth client secret")
	pf.StringVar(&opts.redirectURL, "redirect-url", defaults.RedirectURL, "OAuth redirect URL")
	pf.StringVar(&opts.cachedID, "id", "", "already resolved Instagram user id (skips the search)")

	root.AddCommand(
		newFetchCmd(opts, "profile", "Fetch a user's public profile", domain.FeaturePublicProfile),
		newFetchCmd(opts, "activity", "Fetch a user's recent photos and hashtags", domain.FeaturePublicActivity),
		newFetchCmd(opts, "all", "Fetch profile and activity", domain.FeaturePublicProfile, domain.FeaturePublicActivity),
		newAuthURLCmd(opts),
		newExchangeCmd(opts),
	)
	return root
}

func newFetchCmd(opts *options, use, short string, features ...domain.Feature) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <handle>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			integ := instagram.NewIntegration(instagram.NewClient(opts.apiBase, opts.accessToken))
			cache := &domain.SocialCache{ID: opts.cachedID}
			if err := fetch(cmd.Context(), integ, args[0], cache, features); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cache)
		},
	}
}

func fetch(ctx context.Context, integ domain.Integration, handle string, cache *domain.SocialCache, features []domain.Feature) error {
	if _, err := integ.ResolveUserID(ctx, handle, cache); err != nil {
		return fmt.Errorf("resolve %q: %w", handle, err)
	}
	for _, f := range features {
		switch f {
		case domain.FeaturePublicProfile:
			integ.FetchProfile(ctx, handle, cache)
		case domain.FeaturePublicActivity:
			integ.FetchPublicActivity(ctx, handle, cache)
		}
	}
	return nil
}

func newAuthURLCmd(opts *options) *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "auth-url",
		Short: "Print the URL that grants this application access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := instagram.NewOAuth(opts.clientID, opts.clientSecret, opts.redirectURL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), o.AuthCodeURL(state))
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "enrich", "opaque OAuth state value")
	return cmd
}

func newExchangeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "exchange <code>",
		Short: "Exchange an authorization code for an access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := instagram.NewOAuth(opts.clientID, opts.clientSecret, opts.redirectURL)
			if err != nil {
				return err
			}
			token, err := o.Exchange(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
