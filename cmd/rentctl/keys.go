package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/rentdesk/internal/api/handler"
	"github.com/rentdesk/rentdesk/internal/config"
	"github.com/rentdesk/rentdesk/internal/store"
	"github.com/spf13/cobra"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}
	cmd.AddCommand(keysCreateCmd())
	return cmd
}

// keysCreateCmd bootstraps a key straight into the database, for the first
// admin key of a company before any key can call /admin/keys.
func keysCreateCmd() *cobra.Command {
	var (
		databaseURL string
		company     string
		name        string
		scopes      []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key and print it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range scopes {
				if s != "read" && s != "write" && s != "admin" {
					return fmt.Errorf("unknown scope %q: must be one of read, write, admin", s)
				}
			}
			url, err := resolveDatabaseURL(databaseURL)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := store.Connect(ctx, config.DatabaseConfig{URL: url, MaxOpenConns: 2, MaxIdleConns: 1})
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()
			st := store.NewPostgresStore(pool)

			var companyID uuid.UUID
			if company != "" {
				companyID, err = uuid.Parse(company)
				if err != nil {
					return fmt.Errorf("invalid --company: %w", err)
				}
			} else {
				c, err := st.GetDefaultCompany(ctx)
				if err != nil {
					return fmt.Errorf("look up default company: %w", err)
				}
				companyID = c.ID
			}

			key, raw, err := handler.NewAPIKey(companyID, name, scopes)
			if err != nil {
				return err
			}
			if err := st.CreateAPIKey(ctx, key); err != nil {
				return fmt.Errorf("store api key: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:     %s\n", key.ID)
			fmt.Fprintf(out, "scopes: %v\n", key.Scopes)
			fmt.Fprintf(out, "key:    %s\n", raw)
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres URL (defaults to $DATABASE_URL)")
	cmd.Flags().StringVar(&company, "company", "", "company ID (defaults to the seeded default company)")
	cmd.Flags().StringVar(&name, "name", "bootstrap", "key name")
	cmd.Flags().StringSliceVar(&scopes, "scopes", []string{"read", "write", "admin"}, "comma-separated scopes")

	return cmd
}
