// Command onboard runs the onboarding saga against a local badger store.
//
//	onboard run --actor u1 --payload payload.yaml
//	onboard plan --dot | dot -Tpng > plan.png
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fortressi/onboard"
	"github.com/fortressi/onboard/badgerstore"
	"github.com/fortressi/onboard/identity"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "onboard",
		Short:        "Run and inspect the tenant onboarding saga",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	root.AddCommand(
		newRunCmd(&configPath),
		newPlanCmd(),
	)
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	var (
		actorID     string
		payloadPath string
		showJournal bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one onboarding attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			payload, err := onboard.LoadPayload(payloadPath)
			if err != nil {
				return err
			}
			return runOnboarding(cmd.Context(), cmd.OutOrStdout(), cfg, actorID, payload, showJournal)
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "Actor (user) id to onboard (required)")
	cmd.Flags().StringVar(&payloadPath, "payload", "", "Path to the wizard payload (required)")
	cmd.Flags().BoolVar(&showJournal, "journal", false, "Print the saga journal")
	_ = cmd.MarkFlagRequired("actor")
	_ = cmd.MarkFlagRequired("payload")
	return cmd
}

func runOnboarding(ctx context.Context, out io.Writer, cfg *Config, actorID string, payload onboard.Payload, showJournal bool) error {
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := badgerstore.Open(badgerstore.Config{
		Path:       cfg.DataDir,
		InMemory:   cfg.InMemory,
		SyncWrites: true,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", zap.Error(err))
		}
	}()

	sessions := identity.NewSessions()
	sessions.Grant(actorID, cfg.SessionTTL)
	sessions.SetCurrent(actorID)

	m := onboard.NewManager(actorID, payload, onboard.Deps{
		Storage:  store,
		Identity: sessions,
		Logger:   logger,
	})

	report, runErr := onboard.Onboard(ctx, m, nil)
	printReport(out, report, m.Summary())
	if showJournal {
		fmt.Fprintln(out)
		fmt.Fprint(out, m.Journal().String())
	}
	return runErr
}

func printReport(out io.Writer, report onboard.Report, summary onboard.Summary) {
	fmt.Fprintf(out, "saga:    %s\n", report.SagaID)
	fmt.Fprintf(out, "actor:   %s\n", summary.ActorID)
	fmt.Fprintf(out, "state:   %s\n", summary.State)
	if report.UnitID != "" {
		fmt.Fprintf(out, "unit:    %s\n", report.UnitID)
	}
	for _, s := range report.Steps {
		fmt.Fprintf(out, "  %-28s %-9s %s\n", s.Type, s.Outcome, s.RecordID)
	}
	if report.RolledBack {
		fmt.Fprintln(out, "rolled back")
	}
}

func newPlanCmd() *cobra.Command {
	var asDOT bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the onboarding step order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printPlan(cmd.OutOrStdout(), onboard.DefaultPlan(), asDOT)
		},
	}
	cmd.Flags().BoolVar(&asDOT, "dot", false, "Print the plan as a Graphviz digraph")
	return cmd
}

func printPlan(out io.Writer, plan *onboard.Plan, asDOT bool) error {
	if asDOT {
		dot, err := plan.DOT()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, dot)
		return nil
	}

	order, err := plan.Order()
	if err != nil {
		return err
	}
	for i, t := range order {
		deps := plan.Dependencies(t)
		if len(deps) == 0 {
			fmt.Fprintf(out, "%d. %s\n", i+1, t)
			continue
		}
		fmt.Fprintf(out, "%d. %s (after %v)\n", i+1, t, deps)
	}
	return nil
}
