package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/soyeahso/rentdesk/internal/catalog"
	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/spf13/cobra"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tool backend catalog",
	}

	cmd.AddCommand(newToolsListCmd())
	cmd.AddCommand(newToolsFilterCmd())
	return cmd
}

// fetchCatalog lists the backend's tools without building a model client.
func fetchCatalog(ctx context.Context) ([]domain.ToolDescriptor, *catalog.Filter, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	a, err := newApp(ctx, cfg, log, appOptions{memoryOnly: true, skipModel: true})
	if err != nil {
		return nil, nil, err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	all, err := a.catalog.Tools(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing tools from %s: %w", a.backend.Name(), err)
	}
	return all, a.filter, nil
}

func newToolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every tool with its category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _, err := fetchCatalog(cmd.Context())
			if err != nil {
				return err
			}
			printTools(cmd.OutOrStdout(), all)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d tool(s)\n", len(all))
			return nil
		},
	}
}

func newToolsFilterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filter <message>",
		Short: "Preview which tools a message would offer to the model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, filter, err := fetchCatalog(cmd.Context())
			if err != nil {
				return err
			}
			sel := filter.Apply(all, strings.Join(args, " "))

			out := cmd.OutOrStdout()
			cats := make([]string, len(sel.Categories))
			for i, c := range sel.Categories {
				cats[i] = string(c)
			}
			note := ""
			if sel.Defaulted {
				note = " (default set, no keyword matched)"
			}
			fmt.Fprintf(out, "Categories: %s%s\n\n", strings.Join(cats, ", "), note)
			printTools(out, sel.Tools)
			fmt.Fprintf(out, "\n%d of %d tool(s), cap %d\n", len(sel.Tools), len(all), filter.Cap())
			return nil
		},
	}
}

func printTools(w io.Writer, list []domain.ToolDescriptor) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCATEGORY\tPARAMETERS\tDESCRIPTION")
	for _, t := range list {
		params := make([]string, 0, len(t.Parameters))
		for name, p := range t.Parameters {
			if p.Required {
				name += "*"
			}
			params = append(params, name)
		}
		sort.Strings(params)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, catalog.Classify(t), strings.Join(params, ","), oneLine(t.Description, 60))
	}
	_ = tw.Flush()
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-3]) + "..."
	}
	return s
}
