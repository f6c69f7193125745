package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/curator/pkg/manifest"
)

func (c *CLI) importCommand() *cobra.Command {
	var (
		dev         bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "import <package.json>",
		Short: "Import the dependencies of a package.json into a working table",
		Long: `Read a package.json, fetch a metadata record for every dependency and
print the resulting working table.

A leading caret is stripped from version specs (^4.17.21 fetches 4.17.21).
Other ranges are sent to the registry as written; dependencies that cannot
be fetched are listed separately.`,
		Example: `  curator import package.json
  curator import ./web/package.json --dev --concurrency 16`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			doc, err := manifest.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read manifest: %w", err)
			}

			cur, closeFn, err := c.newCurator(ctx, dev, concurrency)
			if err != nil {
				return err
			}
			defer closeFn()

			spin := newSpinnerWithContext(ctx, "Importing "+doc.Name)
			spin.Start()
			prog := newProgress(logger)
			res, err := cur.Import(ctx, doc)
			if err != nil {
				if notice, ok := importNotice(err); ok {
					spin.StopWithError(notice)
					logger.Debug("import rejected", "error", err)
					return nil
				}
				spin.Stop()
				return err
			}
			spin.Stop()
			prog.done("import complete", "entries", len(res.Entries), "records", len(res.Records))

			printSuccess("Imported %d of %d dependencies", res.Added, len(res.Entries))
			printRecords(cur.Table(), true)
			for _, e := range res.Failed {
				printWarning("%s %s could not be fetched", e.Name, e.VersionSpec)
			}
			printDetail("%s", statusSummary(cur.Counts()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dev, "dev", false, "also import devDependencies")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel registry fetches (default from config)")
	return cmd
}
