package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/app"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

// offline commands run without a database connection.
var offline = map[string]func(options) error{
	"create": func(o options) error {
		if o.name == "" {
			return fmt.Errorf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(o.dir, o.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	},
	"validate": func(o options) error {
		if err := migrate.ValidateDir(o.dir); err != nil {
			return err
		}
		if o.dir == migrate.DefaultDir {
			if err := migrate.ValidateFS(migrate.Embedded(), "migrations"); err != nil {
				return fmt.Errorf("embedded: %w", err)
			}
		}
		fmt.Println("migration validation passed")
		return nil
	},
}

type onlineFn func(ctx context.Context, client *db.Client, sqlDB *sql.DB, o options) error

func gooseCmd(name string) onlineFn {
	return func(ctx context.Context, _ *db.Client, sqlDB *sql.DB, o options) error {
		return migrate.Run(ctx, sqlDB, o.dir, name)
	}
}

var online = map[string]onlineFn{
	"up":     gooseCmd("up"),
	"down":   gooseCmd("down"),
	"status": gooseCmd("status"),
	"version": func(ctx context.Context, _ *db.Client, sqlDB *sql.DB, o options) error {
		if o.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, o.dir, o.version)
	},
	"automigrate": func(_ context.Context, client *db.Client, _ *sql.DB, _ options) error {
		return migrate.AutoMigrateModels(client.DB())
	},
}

func commandNames() string {
	names := make([]string, 0, len(offline)+len(online))
	for k := range offline {
		names = append(names, k)
	}
	for k := range online {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func main() {
	cmd := flag.String("cmd", "up", "migration command: "+commandNames())
	var o options
	flag.StringVar(&o.dir, "dir", migrate.DefaultDir, "migrations directory (the default is embedded in the binary)")
	flag.StringVar(&o.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&o.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if fn, ok := offline[*cmd]; ok {
		if err := fn(o); err != nil {
			fmt.Fprintf(os.Stderr, "%s failed: %v\n", *cmd, err)
			os.Exit(1)
		}
		return
	}
	fn, ok := online[*cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown -cmd %q (want %s)\n", *cmd, commandNames())
		os.Exit(2)
	}

	proc, err := app.Start("migrate")
	if err != nil {
		os.Exit(1)
	}
	ctx := proc.Logger.WithFields(context.Background(), map[string]any{"cmd": *cmd, "dir": o.dir})

	// No dev auto-migration here: goose owns the schema for this binary.
	client, err := db.New(ctx, proc.Config.DB, proc.Config.FeatureFlags, proc.Logger)
	if err != nil {
		proc.Exit(ctx, "connect database", err)
	}
	proc.OnClose("database", client.Close)

	sqlDB, err := client.DB().DB()
	if err == nil {
		err = fn(ctx, client, sqlDB, o)
	}
	proc.Exit(ctx, "migration command failed", err)
	proc.Logger.Info(ctx, "migration command finished")
}
