package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/vimqa-core/internal/catalog"
	"github.com/nerrad567/vimqa-core/internal/infrastructure/database"
	"github.com/nerrad567/vimqa-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/vimqa-core/internal/resolver"
	"github.com/nerrad567/vimqa-core/internal/schema"
	"github.com/nerrad567/vimqa-core/internal/table"
)

// errBadFilter is returned for a --where flag that is not field=value.
var errBadFilter = errors.New("filter must be field=value")

func migrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or list schema migrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, closeDB, err := openCatalogue(cmd.Context(), *configPath)
				if err != nil {
					return err
				}
				defer closeDB()
				if err := c.exec.DB().Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("running migrations: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, closeDB, err := openCatalogue(cmd.Context(), *configPath)
				if err != nil {
					return err
				}
				defer closeDB()
				if err := c.exec.DB().MigrateDown(cmd.Context()); err != nil {
					return fmt.Errorf("rolling back migration: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migration rolled back")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, closeDB, err := openCatalogue(cmd.Context(), *configPath)
				if err != nil {
					return err
				}
				defer closeDB()
				applied, pending, err := c.exec.DB().GetMigrationStatus(cmd.Context())
				if err != nil {
					return fmt.Errorf("reading migration status: %w", err)
				}
				out := cmd.OutOrStdout()
				for _, m := range applied {
					fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
				}
				for _, m := range pending {
					fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
				}
				return nil
			},
		},
	)
	return cmd
}

func queryCmd(configPath *string) *cobra.Command {
	var where string
	var limit int

	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Print rows of a table as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeDB, err := openCatalogue(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer closeDB()

			tableName := args[0]
			addendum, binds, err := whereClause(c.mapping, tableName, where)
			if err != nil {
				return err
			}
			addendum += " ORDER BY " + idColumn(c.mapping, tableName)
			if limit > 0 {
				addendum += fmt.Sprintf(" LIMIT %d", limit)
			}

			return c.withHandle(cmd.Context(), func(h *database.Handle) error {
				records, err := c.tables.QueryRecords(cmd.Context(), h, tableName, addendum, binds...)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), records)
			})
		},
	}
	cmd.Flags().StringVarP(&where, "where", "w", "", "filter rows by field=value")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum rows to print (0 prints all)")
	return cmd
}

func countCmd(configPath *string) *cobra.Command {
	var where string

	cmd := &cobra.Command{
		Use:   "count <table>",
		Short: "Count the rows of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeDB, err := openCatalogue(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer closeDB()

			addendum, binds, err := whereClause(c.mapping, args[0], where)
			if err != nil {
				return err
			}
			return c.withHandle(cmd.Context(), func(h *database.Handle) error {
				n, err := c.tables.CountRows(cmd.Context(), h, args[0], addendum, binds...)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&where, "where", "w", "", "count only rows where field=value")
	return cmd
}

func resolveCmd(configPath *string) *cobra.Command {
	var ancestor string

	cmd := &cobra.Command{
		Use:   "resolve <table> <name-or-id>",
		Short: "Resolve a row's id, or an ancestor's id with --ancestor",
		Example: `  vimqa resolve module Alarms
  vimqa resolve test 12 --ancestor module`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeDB, err := openCatalogue(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer closeDB()

			tableName, key := args[0], args[1]
			return c.withHandle(cmd.Context(), func(h *database.Handle) error {
				id, err := c.resolver.ResolveID(cmd.Context(), h, tableName, key)
				if err != nil {
					return err
				}
				result := map[string]any{"table": tableName, "key": key, "id": id}
				if ancestor != "" && id != nil {
					ancestorID, err := c.resolver.ResolveAncestor(cmd.Context(), h, tableName, ancestor, *id)
					if err != nil {
						return err
					}
					result = map[string]any{"table": ancestor, "id": ancestorID, "from": id}
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVarP(&ancestor, "ancestor", "a", "", "resolve this ancestor table instead")
	return cmd
}

func procedureCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "procedure <testcase>",
		Short: "Print a test case's procedure steps in execution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeDB, err := openCatalogue(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer closeDB()

			return c.withHandle(cmd.Context(), func(h *database.Handle) error {
				steps, err := c.resolver.ProcedureSteps(cmd.Context(), h, args[0])
				if err != nil && !errors.Is(err, resolver.ErrMissingStep) {
					return err
				}
				if printErr := printJSON(cmd.OutOrStdout(), steps); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}
}

func analyzeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Refresh query planner statistics and report table sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, closeDB, err := openCatalogue(ctx, *configPath)
			if err != nil {
				return err
			}
			defer closeDB()

			var influxClient *influxdb.Client
			if c.cfg.InfluxDB.Enabled {
				influxClient, err = influxdb.Connect(c.cfg.InfluxDB)
				if err != nil {
					return fmt.Errorf("connecting to InfluxDB: %w", err)
				}
				defer func() {
					if closeErr := influxClient.Close(); closeErr != nil {
						c.log.Error("error closing InfluxDB", "error", closeErr)
					}
				}()
			}

			return c.withHandle(ctx, func(h *database.Handle) error {
				if err := c.tables.Analyze(ctx, h); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, name := range c.mapping.Tables() {
					n, err := c.tables.CountRows(ctx, h, name, "")
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%-16s %d\n", name, n)
					if influxClient != nil {
						influxClient.WriteTableRows(c.mapping.TableName(name), n)
					}
				}
				return nil
			})
		},
	}
}

func ageCmd(configPath *string) *cobra.Command {
	var where string

	cmd := &cobra.Command{
		Use:   "age <table> <field> <duration>",
		Short: "Move a timestamp field back in time",
		Long: `age subtracts duration from an epoch-seconds field on the rows matched
by --where, making them look older. Durations use Go syntax, e.g. 90m or 48h.`,
		Example: `  vimqa age bin_entry created 72h --where id=7`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			age, err := time.ParseDuration(args[2])
			if err != nil {
				return fmt.Errorf("parsing duration: %w", err)
			}
			field, value, ok := strings.Cut(where, "=")
			if !ok || field == "" {
				return fmt.Errorf("--where: %w", errBadFilter)
			}

			c, closeDB, err := openCatalogue(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer closeDB()

			store := catalog.NewStore(c.tables)
			return c.withHandle(cmd.Context(), func(h *database.Handle) error {
				n, err := store.AgeField(cmd.Context(), h, args[0], args[1], age, field, value)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "aged %d rows\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&where, "where", "w", "", "rows to age, as field=value (required)")
	_ = cmd.MarkFlagRequired("where")
	return cmd
}

func purgeCmd(configPath *string) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete bin entries older than their bin timer allows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, closeDB, err := openCatalogue(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer closeDB()

			store := catalog.NewStore(c.tables)
			now := time.Now()
			return c.withHandle(cmd.Context(), func(h *database.Handle) error {
				if dryRun {
					expired, err := store.ExpiredBinEntries(cmd.Context(), h, now)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), expired)
				}
				n, err := store.PurgeExpiredBinEntries(cmd.Context(), h, now)
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d entries\n", n)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list expired entries without deleting them")
	return cmd
}

// whereClause builds "WHERE col = ?" from a field=value filter. An empty
// filter gives an empty clause.
func whereClause(m *schema.Mapping, tableName, filter string) (string, []any, error) {
	if filter == "" {
		return "", nil, nil
	}
	field, value, ok := strings.Cut(filter, "=")
	if !ok || field == "" {
		return "", nil, errBadFilter
	}
	col := m.Column(tableName, field)
	if !schema.IsIdentifier(col) {
		return "", nil, fmt.Errorf("%w: field %q", table.ErrInvalidIdentifier, field)
	}
	return "WHERE " + col + " = ?", []any{value}, nil
}

func idColumn(m *schema.Mapping, tableName string) string {
	if t, ok := m.Table(tableName); ok {
		return t.Column(t.IDField)
	}
	return "id"
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
