package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/viant/myvector/admin"
	"github.com/viant/myvector/collection"
	"github.com/viant/myvector/store"
	"github.com/viant/myvector/vector"
	"github.com/viant/myvector/vecsync"
)

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "myvector",
		Short:         "Vector storage and similarity search inside SQLite",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config.json (default $XDG_CONFIG_HOME/myvector/config.json)")
	root.PersistentFlags().StringVar(&flags.dsn, "dsn", "", "sqlite DSN overriding storage.dsn")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newConstructCmd(),
		newDistanceCmd(),
		newAdminCmd(flags),
		newSearchCmd(flags),
		newSQLCmd(flags),
		newStoreCmd(flags),
		newTriggersCmd(flags),
		newSyncCmd(flags),
	)
	return root
}

// --- construct ---

func newConstructCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "construct <literal>",
		Short: "Parse a vector literal and print its canonical form",
		Long: `Parse a vector literal and print its canonical form.

Examples:
  myvector construct '[1, 2.5, 3]'
  myvector construct --hex '[1,2]'
  myvector construct --bv '[1,-1,1,1]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asHex, _ := cmd.Flags().GetBool("hex")
			binary, _ := cmd.Flags().GetBool("bv")
			v, err := vector.Construct(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if binary {
				bv := vector.Binarize(v)
				if asHex {
					blob, err := vector.EncodeBinary(bv)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(out, hex.EncodeToString(blob))
					return err
				}
				_, err = fmt.Fprintln(out, bv.String())
				return err
			}
			if asHex {
				blob, err := vector.EncodeValue(v)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, hex.EncodeToString(blob))
				return err
			}
			_, err = fmt.Fprintln(out, vector.Serialize(v))
			return err
		},
	}
	cmd.Flags().Bool("hex", false, "print the stored BLOB value as hex")
	cmd.Flags().Bool("bv", false, "binarize the vector (positive components become 1)")
	return cmd
}

// --- distance ---

func newDistanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distance <v1> <v2>",
		Short: "Compute the distance between two vector literals",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("metric")
			metric, err := vector.ParseMetric(name)
			if err != nil {
				return err
			}
			a, err := vector.Construct(args[0])
			if err != nil {
				return err
			}
			b, err := vector.Construct(args[1])
			if err != nil {
				return err
			}
			d, err := metric.Distance(a, b)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), d)
			return err
		},
	}
	cmd.Flags().String("metric", "l2", "l2, cosine or ip")
	return cmd
}

// --- admin ---

func newAdminCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "admin <command> [args...]",
		Short: "Build, refresh, save, load, drop or inspect indexes",
		Long: `Build, refresh, save, load, drop or inspect indexes.

Examples:
  myvector admin build main.items.embedding id type=hnsw,dim=768,metric=cosine
  myvector admin refresh main.items.embedding
  myvector admin status`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			rows, err := admin.Execute(cmd.Context(), a.registry, strings.Join(args, " "))
			if err != nil {
				return err
			}
			for _, row := range rows {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), row); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// --- search ---

func newSearchCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <name> <literal>",
		Short: "Print the nearest neighbours of a vector in a saved index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, _ := cmd.Flags().GetInt("k")
			ef, _ := cmd.Flags().GetInt("ef-search")
			q, err := vector.Construct(args[1])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			coll, err := a.registry.Get(args[0])
			if err != nil {
				return err
			}
			if k <= 0 {
				k = a.cfg.Search.DefaultNN
			}
			results, err := coll.SearchWith(q, collection.SearchOptions{NN: min(k, a.cfg.Search.MaxNN), EfSearch: ef})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDISTANCE")
			for _, r := range results {
				fmt.Fprintf(w, "%d\t%g\n", r.ID, r.Distance)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int("k", 0, "number of neighbours (default search.default_nn)")
	cmd.Flags().Int("ef-search", 0, "HNSW candidate list size for this query")
	return cmd
}

// --- sql ---

func newSQLCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sql <statement>",
		Short: "Run a statement with the myvector functions and virtual tables registered",
		Long: `Run a statement with the myvector functions and virtual tables registered.

Examples:
  myvector sql "SELECT myvector_display(myvector_construct('[1,2,3]'))"
  myvector sql "CREATE VIRTUAL TABLE IF NOT EXISTS knn USING myvector_search"
  myvector sql "SELECT id, distance FROM knn WHERE name='main.items.embedding' AND query MATCH '[1,2,3]' AND k=5"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			if !returnsRows(args[0]) {
				res, err := a.db.ExecContext(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				n, _ := res.RowsAffected()
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) affected\n", n)
				return err
			}
			rows, err := a.db.QueryxContext(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer rows.Close()
			cols, err := rows.Columns()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if len(cols) > 0 {
				fmt.Fprintln(w, strings.ToUpper(strings.Join(cols, "\t")))
			}
			for rows.Next() {
				vals, err := rows.SliceScan()
				if err != nil {
					return err
				}
				writeRow(w, vals)
			}
			if err := rows.Err(); err != nil {
				return err
			}
			return w.Flush()
		},
	}
}

func returnsRows(stmt string) bool {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "PRAGMA", "VALUES", "EXPLAIN":
		return true
	}
	return false
}

func writeRow(w io.Writer, vals []any) {
	cells := make([]string, len(vals))
	for i, v := range vals {
		cells[i] = formatCell(v)
	}
	fmt.Fprintln(w, strings.Join(cells, "\t"))
}

// formatCell renders vector values as literals and other BLOBs as hex.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		if vec, err := vector.DecodeValue(val); err == nil {
			return vector.Serialize(vec)
		}
		if bv, err := vector.DecodeBinary(val); err == nil {
			return bv.String()
		}
		return "x'" + hex.EncodeToString(val) + "'"
	default:
		return fmt.Sprint(val)
	}
}

// --- store ---

func newStoreCmd(flags *globalFlags) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Put, get or delete vector values by id",
		Long: `Put, get or delete vector values by id.

Examples:
  myvector store put 1 '[0.1, 0.2, 0.3]'
  myvector store get 1
  myvector admin build main.myvector_values.value id dim=3`,
	}
	cmd.PersistentFlags().StringVar(&table, "table", store.DefaultTable, "backing table")

	withStore := func(run func(cmd *cobra.Command, s *store.SQLStore, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			s, err := store.New(cmd.Context(), a.db, store.WithTable(table))
			if err != nil {
				return err
			}
			return run(cmd, s, args)
		}
	}
	parseID := func(s string) (int64, error) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: id %q", vector.ErrInvalidArgument, s)
		}
		return id, nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "put <id> <literal>",
			Short: "Insert or replace a vector",
			Args:  cobra.ExactArgs(2),
			RunE: withStore(func(cmd *cobra.Command, s *store.SQLStore, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				v, err := vector.Construct(args[1])
				if err != nil {
					return err
				}
				rec, err := s.Put(cmd.Context(), id, v)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", rec.ID, vector.Serialize(rec.Vector))
				return err
			}),
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Print a stored vector",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(cmd *cobra.Command, s *store.SQLStore, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				rec, err := s.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !rec.Valid {
					return fmt.Errorf("%w: record %d", vector.ErrInvalidValue, id)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", rec.ID, vector.Serialize(rec.Vector))
				return err
			}),
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a stored vector",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(cmd *cobra.Command, s *store.SQLStore, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				ok, err := s.Delete(cmd.Context(), id)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), ok)
				return err
			}),
		},
		&cobra.Command{
			Use:   "count",
			Short: "Print the number of stored vectors",
			Args:  cobra.NoArgs,
			RunE: withStore(func(cmd *cobra.Command, s *store.SQLStore, _ []string) error {
				n, err := s.Count(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			}),
		},
	)
	return cmd
}

// --- triggers ---

func newTriggersCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triggers",
		Short: "Install or remove index maintenance triggers",
	}
	install := &cobra.Command{
		Use:   "install <name> <id column>",
		Short: "Create triggers keeping an index in step with its base table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logged, _ := cmd.Flags().GetBool("logged")
			mode := vecsync.Direct
			if logged {
				mode = vecsync.Logged
			}
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := vecsync.Install(cmd.Context(), a.db, args[0], args[1], mode); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "installed triggers for %s\n", args[0])
			return err
		},
	}
	install.Flags().Bool("logged", false, "append changes to the change log instead of updating the index directly")
	uninstall := &cobra.Command{
		Use:   "uninstall <name>",
		Short: "Drop the triggers of an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := vecsync.Uninstall(cmd.Context(), a.db, args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed triggers for %s\n", args[0])
			return err
		},
	}
	cmd.AddCommand(install, uninstall)
	return cmd
}

// --- sync ---

func newSyncCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Apply the change log to loaded indexes",
		Long: `Apply the change log written by logged triggers to loaded indexes.

With --once a single pass is made and applied indexes are saved; otherwise
the log is polled until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			once, _ := cmd.Flags().GetBool("once")
			interval, _ := cmd.Flags().GetDuration("interval")
			prune, _ := cmd.Flags().GetBool("prune")
			a, err := openApp(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			syncer := vecsync.NewSyncer(a.db, a.registry, vecsync.Config{Interval: interval}, a.logger)
			if !once {
				return syncer.Run(cmd.Context())
			}
			n, err := syncer.Sync(cmd.Context())
			if err != nil {
				return err
			}
			if n > 0 {
				for _, st := range a.registry.List() {
					if _, err := a.registry.Save(cmd.Context(), st.Name); err != nil {
						return err
					}
				}
			}
			if prune {
				if _, err := syncer.Prune(cmd.Context()); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "applied %d change(s)\n", n)
			return err
		},
	}
	cmd.Flags().Bool("once", false, "make a single pass and exit")
	cmd.Flags().Bool("prune", false, "delete applied log entries after a single pass")
	cmd.Flags().Duration("interval", 0, "polling interval (default 1s)")
	return cmd
}
