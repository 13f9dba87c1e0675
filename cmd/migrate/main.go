package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/medsupply/backend/internal/infrastructure/catalogimport"
	"github.com/medsupply/backend/internal/infrastructure/config"
	"github.com/medsupply/backend/internal/infrastructure/logger"
	"github.com/medsupply/backend/internal/infrastructure/migration"
	"github.com/medsupply/backend/internal/infrastructure/persistence"
	"github.com/medsupply/backend/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

type cli struct {
	migrationsPath string
	logLevel       string
	log            *zap.Logger
}

func main() {
	c := &cli{}
	root := &cobra.Command{
		Use:   "migrate",
		Short: "Medical supply database migration tool",
		Long: `Applies and inspects the SQL schema migrations.

Without --path the migrations embedded in the binary are used. Database
settings come from config.toml and MEDSUPPLY_DATABASE_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(&logger.Config{
				Level:      c.logLevel,
				Format:     "console",
				Output:     "stdout",
				TimeFormat: "2006-01-02 15:04:05",
			})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.migrationsPath, "path", "", "migrations directory (default: embedded migrations)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		c.upCmd(),
		c.downCmd(),
		c.stepCmd(),
		c.versionCmd(),
		c.gotoCmd(),
		c.forceCmd(),
		c.createCmd(),
		c.listCmd(),
		c.checkCmd(),
		c.seedCatalogCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func (c *cli) upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withMigrator(func(m *migration.Migrator) error { return m.Up() })
		},
	}
}

func (c *cli) downCmd() *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("rolling back every migration drops all tables; rerun with --confirm")
			}
			return c.withMigrator(func(m *migration.Migrator) error { return m.Down() })
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm a full rollback")
	return cmd
}

func (c *cli) stepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "step <n>",
		Short: "Apply n migrations (positive = up, negative = down)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n == 0 {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return c.withMigrator(func(m *migration.Migrator) error { return m.Steps(n) })
		},
	}
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withMigrator(func(m *migration.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				if version == 0 {
					c.log.Info("No migrations applied")
					return nil
				}
				c.log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
				return nil
			})
		},
	}
}

func (c *cli) gotoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "goto <version>",
		Short: "Migrate up or down to a specific version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil || version == 0 {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return c.withMigrator(func(m *migration.Migrator) error { return m.Goto(uint(version)) })
		},
	}
}

func (c *cli) forceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Set the migration version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return c.withMigrator(func(m *migration.Migrator) error { return m.Force(version) })
		},
	}
}

func (c *cli) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> [description]",
		Short: "Create the next sequential migration pair",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.directory()
			if err != nil {
				return err
			}
			description := ""
			if len(args) > 1 {
				description = args[1]
			}
			mf, err := migration.CreateMigration(dir, args[0], description)
			if err != nil {
				return err
			}
			c.log.Info("Migration created",
				zap.Uint("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath),
			)
			return nil
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := migration.ListMigrations(c.source())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				c.log.Info("No migrations found")
				return nil
			}
			out := cmd.OutOrStdout()
			for _, m := range list {
				fmt.Fprintf(out, "  %06d  %-40s up=%t down=%t\n", m.Version, m.Name, m.HasUp, m.HasDown)
			}
			return nil
		},
	}
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify every migration has both up and down files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := migration.ListMigrations(c.source())
			if err != nil {
				return err
			}
			if err := migration.CheckPairs(list); err != nil {
				return err
			}
			c.log.Info("Migrations are complete", zap.Int("count", len(list)))
			return nil
		},
	}
}

func (c *cli) seedCatalogCmd() *cobra.Command {
	var (
		encoding  string
		delimiter string
		maxErrors int
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "seed-catalog <file.csv>",
		Short: "Load supply catalog entries from a CSV file",
		Long: `Upserts catalog entries keyed by code. Columns: code, name, unit and
unit_price are required; category and active are optional. Nothing is
written when any row is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len([]rune(delimiter)) != 1 {
				return fmt.Errorf("delimiter must be a single character")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := catalogimport.Parse(f, maxErrors,
				catalogimport.WithEncoding(encoding),
				catalogimport.WithDelimiter([]rune(delimiter)[0]))
			if err != nil {
				return err
			}
			if !res.Valid() {
				fmt.Fprintln(cmd.ErrOrStderr(), res.Errors.String())
				return fmt.Errorf("%d of %d rows rejected", res.Errors.Total(), res.Rows)
			}
			if dryRun {
				c.log.Info("Catalog file is valid", zap.Int("entries", len(res.Entries)))
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			db, err := persistence.NewDatabase(&cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			_, err = catalogimport.Apply(cmd.Context(), persistence.NewGormCatalogRepository(db.DB), res.Entries, c.log)
			return err
		},
	}
	cmd.Flags().StringVar(&encoding, "encoding", "", "source charset, e.g. windows-874 (default UTF-8)")
	cmd.Flags().StringVar(&delimiter, "delimiter", ",", "field delimiter")
	cmd.Flags().IntVar(&maxErrors, "max-errors", 50, "row errors to report")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	return cmd
}

// withMigrator opens the database, runs fn and releases everything
func (c *cli) withMigrator(fn func(*migration.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	var m *migration.Migrator
	if c.migrationsPath == "" {
		c.log.Debug("Using embedded migrations")
		m, err = migration.NewFromFS(db, migrations.FS, c.log)
	} else {
		dir, derr := filepath.Abs(c.migrationsPath)
		if derr != nil {
			return derr
		}
		c.log.Debug("Using migrations directory", zap.String("path", dir))
		m, err = migration.NewFromDir(db, dir, c.log)
	}
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			c.log.Warn("Failed to close migrator", zap.Error(cerr))
		}
	}()
	return fn(m)
}

// source returns the migration files to inspect
func (c *cli) source() fs.FS {
	if c.migrationsPath == "" {
		return migrations.FS
	}
	return os.DirFS(c.migrationsPath)
}

// directory resolves the on-disk migrations directory for create
func (c *cli) directory() (string, error) {
	if c.migrationsPath != "" {
		return filepath.Abs(c.migrationsPath)
	}
	if _, err := os.Stat(defaultMigrationsPath); err == nil {
		return filepath.Abs(defaultMigrationsPath)
	}
	return "", fmt.Errorf("no %s directory in the working directory; pass --path", defaultMigrationsPath)
}
