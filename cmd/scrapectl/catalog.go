package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the titles on the source catalog page",
		Args:  cobra.NoArgs,
		RunE:  runCatalog,
	}
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	application, err := bootstrap()
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	entries, err := application.Pipeline.FetchCatalog(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tTITLE\tURL")
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", entry.Slug, entry.Title, entry.RemoteURL)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d titles on %s\n", len(entries), application.Pipeline.Snapshot().Source)
	return nil
}
