package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/curator/pkg/search"
)

func (c *CLI) searchCommand() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search npm and show metadata for the top matches",
		Long: `Search the npm registry and fetch metadata for up to 10 matching packages.

Candidates whose metadata cannot be fetched are left out.`,
		Example: `  curator search left-pad
  curator search "react state" --size 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			query := strings.Join(args, " ")

			reg, closeFn, err := c.newRegistry(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if size <= 0 {
				size = c.config().Search.Size
			}
			orch := search.NewOrchestrator(reg, search.Options{Size: size, Logger: logger})

			spin := newSpinnerWithContext(ctx, fmt.Sprintf("Searching %q", query))
			spin.Start()
			prog := newProgress(logger)
			res, err := orch.Search(ctx, query)
			spin.Stop()
			if err != nil {
				return err
			}
			prog.done("search complete", "candidates", len(res.Candidates), "records", len(res.Records))

			if len(res.Records) == 0 {
				printInfo("No packages match %q", query)
				return nil
			}
			printRecords(res.Records, false)
			if dropped := len(res.Candidates) - len(res.Records); dropped > 0 {
				printDetail("%d of %d candidates could not be fetched", dropped, len(res.Candidates))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "size", 0, "maximum number of candidates (1-10)")
	return cmd
}
