package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/curator/pkg/catalog"
)

func (c *CLI) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>[@version]",
		Short: "Show the metadata record of one package",
		Example: `  curator info lodash
  curator info react@18.2.0
  curator info @types/node@20.11.0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name, version := splitSpec(args[0])

			reg, closeFn, err := c.newRegistry(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			rec, err := reg.Fetch(ctx, name, version)
			if err != nil {
				return err
			}
			printRecord(rec)
			return nil
		},
	}
}

// splitSpec splits "name@version". A leading @ belongs to the scope.
func splitSpec(spec string) (name, version string) {
	at := strings.LastIndex(spec, "@")
	if at <= 0 {
		return spec, ""
	}
	return spec[:at], spec[at+1:]
}

func printRecord(r catalog.Record) {
	printKeyValue("name", r.Name)
	printKeyValue("version", r.Version)
	printKeyValue("licence", r.Licence)
	printKeyValue("author", r.Author)
	printKeyValue("description", r.Description)
	printKeyValue("repository", StyleLink.Render(r.RepositoryURL))
	printKeyValue("tarball", StyleLink.Render(r.TarballURL))
}
