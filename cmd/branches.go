package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/zjrosen/switchyard/internal/git/gogit"
	"github.com/zjrosen/switchyard/internal/infrastructure/sqlite"
	"github.com/zjrosen/switchyard/internal/mru"
	"github.com/zjrosen/switchyard/internal/paths"
	"github.com/zjrosen/switchyard/internal/tracker"
)

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "Print the ranked branch list without starting the panel",
	Args:  cobra.NoArgs,
	RunE:  runBranches,
}

func init() {
	rootCmd.AddCommand(branchesCmd)
}

func runBranches(cmd *cobra.Command, args []string) error {
	store, db := openStore()
	if db != nil {
		defer func() { _ = db.Close() }()
	}

	provider, err := gogit.NewProvider()
	if err != nil {
		return fmt.Errorf("starting git provider: %w", err)
	}
	defer func() { _ = provider.Close() }()

	if err := openRepositories(provider); err != nil {
		return err
	}

	tr := tracker.New(store, cfg.Git.Remote)
	for _, repo := range provider.Repositories() {
		tr.SetActiveRepository(repo)
		view := tr.RankedView()
		fmt.Fprintf(cmd.OutOrStdout(), "%s (base: %s)\n", view.RepoPath, view.BaseBranch)
		renderBranchTable(cmd.OutOrStdout(), view)
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

func renderBranchTable(w io.Writer, view tracker.RankedBranchView) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"", "BRANCH", "LAST COMMIT"})

	for _, entry := range view.Entries {
		marker := " "
		if entry.IsCurrent {
			marker = "*"
		}
		tw.AppendRow(table.Row{marker, entry.Name, entry.Recency})
	}
	if len(view.Entries) == 0 {
		tw.AppendRow(table.Row{"", "(no branches visited yet)", ""})
	}
	tw.Render()
}

// historyCmd prints the raw stored MRU list, useful when debugging why the
// ranked view looks the way it does.
var historyCmd = &cobra.Command{
	Use:   "history <repo-path>",
	Short: "Print the raw stored MRU list for a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := sqlite.NewDB(paths.DatabasePath())
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() { _ = db.Close() }()

		store := mru.NewStore(db.MRU())
		ordered, err := store.Ordered(paths.ExpandHome(args[0]))
		if err != nil {
			return fmt.Errorf("loading branch history: %w", err)
		}
		if len(ordered) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "(empty)")
			return nil
		}
		for i, branch := range ordered {
			fmt.Fprintf(cmd.OutOrStdout(), "%2d  %s\n", i+1, branch)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
