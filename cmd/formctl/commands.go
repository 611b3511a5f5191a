package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pinkalP4120/order-metafields/internal/api/middleware"
	"github.com/pinkalP4120/order-metafields/internal/domain"
	"github.com/pinkalP4120/order-metafields/internal/repository/postgres"
)

func newFindOrderCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "find-order <name>",
		Short:   "Look up an order by name, e.g. 1033 or #1033",
		Args:    cobra.ExactArgs(1),
		Example: `  formctl find-order 1033`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			name := domain.Submission{OrderID: args[0]}.OrderName()
			order, err := a.Store.FindOrderByName(cmd.Context(), name)
			if err != nil {
				return err
			}

			c.printf("Order %s\n", order.Name)
			c.printf("  ID:       %s\n", order.ID)
			if order.Email != "" {
				c.printf("  Email:    %s\n", order.Email)
			}
			c.printf("  Total:    %s %s\n", order.TotalPrice.StringFixed(2), order.Currency)
			if order.CreatedAt != nil {
				c.printf("  Created:  %s\n", order.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newMetafieldsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "metafields <name>",
		Short: "Show the submission metafields stored on an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			details, err := a.Metafields.ReadOrderDetails(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			c.printf("Order %s (%s)\n", details.Order.Name, details.Order.ID)
			for _, mf := range details.Metafields {
				c.printf("  %s [%s] = %s\n", mf.FullKey(), mf.Type, mf.Value)
			}
			if len(details.SubmittedVariantIDs) > 0 {
				c.printf("Submitted variants: %s\n", strings.Join(details.SubmittedVariantIDs, ", "))
			}
			if len(details.Details) > 0 {
				pretty, err := json.MarshalIndent(details.Details, "", "  ")
				if err != nil {
					return err
				}
				c.printf("Details:\n%s\n", pretty)
			}
			return nil
		},
	}
}

func newSubmitCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "submit <order> <variant> [key=value...]",
		Short:   "Apply a form submission the same way POST /submit-form does",
		Args:    cobra.MinimumNArgs(2),
		Example: `  formctl submit 1033 44 base_cream=Shea first_essential_oil=Lavender`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sub := domain.Submission{OrderID: args[0], VariantID: args[1]}
			for _, kv := range args[2:] {
				key, value, ok := strings.Cut(kv, "=")
				if !ok || key == "" {
					return fmt.Errorf("invalid field %q, expected key=value", kv)
				}
				sub.Fields.Set(key, value)
			}

			a, _, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			record, result, err := a.Submissions.Submit(cmd.Context(), sub)
			if err != nil {
				if record != nil {
					c.printf("Submission %s: %s\n", record.ID, record.Status)
				}
				return err
			}

			c.printf("Submission %s: %s\n", record.ID, record.Status)
			for _, mf := range result.Metafields {
				c.printf("  %s = %s\n", mf.FullKey(), mf.Value)
			}
			return nil
		},
	}
}

func newSubmissionsCmd(c *cli) *cobra.Command {
	var (
		order  string
		status string
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "List recorded submissions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := domain.SubmissionFilter{Limit: limit, Offset: offset}
			if order != "" {
				filter.OrderName = domain.Submission{OrderID: order}.OrderName()
			}
			if status != "" {
				filter.Status = domain.SubmissionStatus(status)
				if !filter.Status.IsValid() {
					return fmt.Errorf("invalid status %q", status)
				}
			}

			a, _, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.Submissions.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tORDER\tVARIANT\tSTATUS\tCREATED")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.OrderName, r.VariantID, r.Status, r.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&order, "order", "", "filter by order name")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (received, applied, duplicate, not_found, failed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the submission tables in Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if !cfg.Database.Enabled() {
				return fmt.Errorf("DB_HOST is not set")
			}

			db, err := postgres.NewConnection(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.RunMigrations(cmd.Context(), db); err != nil {
				return err
			}
			c.printf("Migrations applied to %s\n", cfg.Database.DBName)
			return nil
		},
	}
}

func newHashKeyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <api-key>",
		Short: "Print the bcrypt hash to use as ADMIN_API_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := middleware.HashAPIKey(args[0])
			if err != nil {
				return err
			}
			c.printf("%s\n", hash)
			return nil
		},
	}
}
