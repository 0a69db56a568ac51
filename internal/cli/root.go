package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewRootCmd builds the alertctl command tree.
func NewRootCmd() *cobra.Command {
	var apiURL, apiKey string

	root := &cobra.Command{
		Use:   "alertctl",
		Short: "Report health transitions to alertd",
		Long: `alertctl reports up/down transitions and free-form alerts to a running
alertd. alertd decides whether each report reaches the notification channel.`,
		Version:      Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiURL, "api", envOr("ALERT_API", "http://localhost:8080"), "alertd base URL")
	root.PersistentFlags().StringVar(&apiKey, "key", os.Getenv("ALERT_API_KEY"), "admin API key")

	client := func() *Client { return NewClient(apiURL, apiKey) }

	root.AddCommand(
		newReportCmd("down", "Report that a subject is failing", client),
		newReportCmd("up", "Report that a subject is healthy", client),
		newSendCmd(client),
		newClearCmd(client),
	)
	return root
}

func newReportCmd(use, short string, client func() *Client) *cobra.Command {
	var entity, subject, text string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := client()
			var err error
			if use == "down" {
				err = c.ReportDown(cmd.Context(), entity, subject, text)
			} else {
				err = c.ReportUp(cmd.Context(), entity, subject, text)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reported %s for %s/%s\n", use, entity, subject)
			return nil
		},
	}
	cmd.Flags().StringVarP(&entity, "entity", "e", "", "reporting entity (e.g. producer, consumer)")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "subject the health applies to (e.g. topic)")
	cmd.Flags().StringVarP(&text, "text", "t", "", "alert text")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newSendCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "send TEXT",
		Short: "Send a free-form alert, bypassing debouncing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().SendAlert(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "alert sent")
			return nil
		},
	}
}

func newClearCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget all tracked state and cooldowns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := client().Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "state cleared")
			return nil
		},
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
