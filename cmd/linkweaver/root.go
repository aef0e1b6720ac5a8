package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for linkweaver.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkweaver",
		Short: "Inject and validate internal links in topic clusters",
		Long: `linkweaver places planned internal links into page content.

Links are first placed by exact anchor matching inside paragraphs. Links that
cannot be matched are handed to an LLM rewriter that works the anchor into a
single paragraph. Once every page of a batch has settled, each topic cluster
is validated and the result is stored together with the content.`,
		Version:       readVersionInfo().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .linkweaver in current or home directory)")
	cmd.PersistentFlags().String("db-dir", "",
		"Directory of the content store (default: XDG data directory)")

	cmd.AddCommand(NewInjectCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewStripCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
