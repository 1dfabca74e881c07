package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vedran77/reviewhub/pkg/apiclient"
)

func newProductsCmd(load configLoader) *cobra.Command {
	var (
		apiURL string
		token  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "products",
		Short: "Inspect the product catalog of a running server",
	}
	cmd.PersistentFlags().StringVar(&apiURL, "api", "", "server base URL (default PUBLIC_BASE_URL or http://localhost:SERVER_PORT)")
	cmd.PersistentFlags().StringVar(&token, "token", "", "bearer token for write operations")
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print raw JSON")

	client := func() (*apiclient.Client, error) {
		base := apiURL
		if base == "" {
			cfg, err := load()
			if err != nil {
				return nil, err
			}
			base = cfg.PublicBaseURL
			if base == "" {
				base = "http://localhost:" + cfg.ServerPort
			}
		}
		return apiclient.New(base, apiclient.WithToken(token)), nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List products, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := client()
				if err != nil {
					return err
				}
				products, err := c.ListProducts(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), products)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tRATING\tREVIEWS")
				for _, p := range products {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.1f\t%d\n", p.ID.Hex(), p.Name, p.Category, p.Price, p.AvgRating, len(p.Reviews))
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show one product with its reviews",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := client()
				if err != nil {
					return err
				}
				product, err := c.GetProduct(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), product)
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a product",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := client()
				if err != nil {
					return err
				}
				if err := c.DeleteProduct(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
