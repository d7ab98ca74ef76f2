package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List the proxy providers and whether each has a key",
		Args:  cobra.NoArgs,
		RunE:  runProviders,
	}
	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "List the registered site profiles",
		Args:  cobra.NoArgs,
		RunE:  runSources,
	}
	rootCmd.AddCommand(providersCmd, sourcesCmd)
}

func runProviders(_ *cobra.Command, _ []string) error {
	application, err := bootstrap()
	if err != nil {
		return err
	}
	defer application.Close()

	current := application.Pipeline.Snapshot().Proxy
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCONFIGURED\tRENDERING\t")
	for _, provider := range application.Proxies.List() {
		marker := ""
		if provider.ID == current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\n", provider.ID, provider.Name, provider.Configured, provider.SupportsRendering, marker)
	}
	return w.Flush()
}

func runSources(_ *cobra.Command, _ []string) error {
	application, err := bootstrap()
	if err != nil {
		return err
	}
	defer application.Close()

	current := application.Pipeline.Snapshot().Source
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tKIND\tBASE URL\tRENDER\tRENDER PAGES\t")
	for _, source := range application.Profiles.List() {
		marker := ""
		if source.Key == current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\t%s\n", source.Key, source.Name, source.Kind, source.BaseURL, source.NeedsRendering, source.NeedsPageRendering, marker)
	}
	return w.Flush()
}
