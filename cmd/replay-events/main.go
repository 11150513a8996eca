package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/okian/leaderboard/internal/replay"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	url     string
	secret  string
	timeout time.Duration
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "replay-events",
		Short:         "Replay GitHub and blog events against a leaderboard service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.url, "url", "http://localhost:9080", "Base URL of the service")
	root.PersistentFlags().StringVar(&g.secret, "secret", os.Getenv("LEADERBOARD_GITHUB_WEBHOOK_SECRET"), "Webhook secret used to sign issue events")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", replay.DefaultTimeout, "HTTP request timeout")

	root.AddCommand(issueCmd(g))
	root.AddCommand(publishCmd(g))
	root.AddCommand(reconcileCmd(g))
	root.AddCommand(leaderboardCmd(g))
	return root
}

func (g *globalFlags) client() *replay.Client {
	return replay.New(g.url, replay.WithSecret(g.secret), replay.WithTimeout(g.timeout))
}

func issueCmd(g *globalFlags) *cobra.Command {
	var (
		label   string
		action  string
		number  int
		count   int
		workers int
	)
	cmd := &cobra.Command{
		Use:   "issue [login...]",
		Short: "Send labeled issue events for one or more GitHub logins",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if count > 1 {
				stats := replay.Burst(cmd.Context(), g.client(), label, args, count, workers)
				fmt.Fprintf(out, "sent %d, ok %d, failed %d\n", stats.Sent, stats.OK, stats.Failed)
				for token, n := range stats.Tokens {
					fmt.Fprintf(out, "  %-24q %d\n", token, n)
				}
				if stats.Failed > 0 {
					return fmt.Errorf("%d of %d events failed", stats.Failed, stats.Sent)
				}
				return nil
			}
			for _, login := range args {
				res, err := g.client().Issue(cmd.Context(), replay.Issue{
					Action: action,
					Label:  label,
					Login:  login,
					Number: number,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s: %s\n", res.DeliveryID, login, res.Body)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&label, "label", "l", "dogfooded", "Issue label")
	cmd.Flags().StringVarP(&action, "action", "a", "labeled", "Issue action")
	cmd.Flags().IntVarP(&number, "number", "n", 1, "Issue number")
	cmd.Flags().IntVarP(&count, "count", "c", 1, "Number of events to send round robin over the logins")
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "Concurrent senders when count > 1")
	return cmd
}

func publishCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "publish [author-id...]",
		Short: "Send blog publish events for one or more author ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, author := range args {
				res, err := g.client().Publish(cmd.Context(), author)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", author, res.Body)
			}
			return nil
		},
	}
}

func reconcileCmd(g *globalFlags) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Overwrite post counts from the service's feed or a local feed file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var feed []byte
			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				feed = raw
			}
			res, err := g.client().Reconcile(cmd.Context(), feed)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Body)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Statistics feed JSON to post instead of fetching")
	return cmd
}

func leaderboardCmd(g *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the current board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := g.client().Leaderboard(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, b.Title)
			fmt.Fprintln(out, strings.Repeat("=", len(b.Title)))
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tPLAYER\tPOSTS\tISSUES\tTOTAL")
			for _, e := range b.Entries {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\n", e.Rank, e.Username, e.Posts, e.Issues, e.Total)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d players, %d posts, %.1f issues\n", b.Players, b.Totals.Posts, b.Totals.Issues)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many players")
	return cmd
}
