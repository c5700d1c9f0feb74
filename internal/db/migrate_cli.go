package db

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		log.Fatalf("Failed to get migrations filesystem: %v", err)
	}

	// migrations manage the schema, so open without applying them
	database, err := OpenDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	switch action := args[0]; action {
	case "up":
		log.Printf("Running migrations...")
		if err := database.MigrateUp(migrationsFS); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		printVersion(database, migrationsFS)

	case "down":
		log.Printf("Rolling back one migration...")
		if err := database.MigrateDown(migrationsFS); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		printVersion(database, migrationsFS)

	case "status":
		status, err := database.GetMigrationStatus(migrationsFS)
		if err != nil {
			log.Fatalf("Failed to get migration status: %v", err)
		}
		fmt.Println("=== Migration Status ===")
		fmt.Printf("Current version: %d\n", status.CurrentVersion)
		fmt.Printf("Latest available: %d\n", status.LatestVersion)
		fmt.Printf("Dirty: %v\n", status.Dirty)
		if status.Dirty {
			fmt.Println("A migration failed mid-execution. Inspect the database, then run: trackme migrate force <version>")
		}

	case "version":
		v := parseVersionArg(args, "version")
		if err := database.MigrateTo(migrationsFS, uint(v)); err != nil {
			log.Fatalf("Migration to version %d failed: %v", v, err)
		}
		printVersion(database, migrationsFS)

	case "force":
		v := parseVersionArg(args, "force")
		if err := database.MigrateForce(migrationsFS, v); err != nil {
			log.Fatalf("Force migration failed: %v", err)
		}
		log.Printf("Migration version forced to %d", v)

	case "help":
		PrintMigrateHelp()

	default:
		fmt.Printf("Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp()
		os.Exit(1)
	}
}

func parseVersionArg(args []string, action string) int {
	if len(args) < 2 {
		log.Fatalf("Usage: trackme migrate %s <version_number>", action)
	}
	v, err := strconv.Atoi(args[1])
	if err != nil || v < 0 {
		log.Fatalf("Invalid version number: %s", args[1])
	}
	return v
}

func printVersion(database *DB, migrationsFS fs.FS) {
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		log.Printf("Failed to read migration version: %v", err)
		return
	}
	log.Printf("Current version: %d (dirty: %v)", version, dirty)
}

// PrintMigrateHelp displays the help message for the migrate command.
func PrintMigrateHelp() {
	fmt.Println("Database Migration Commands")
	fmt.Println()
	fmt.Println("Usage: trackme migrate <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up              Apply all pending migrations")
	fmt.Println("  down            Roll back one migration")
	fmt.Println("  status          Show current migration status and version")
	fmt.Println("  version <N>     Migrate to specific version N")
	fmt.Println("  force <N>       Force migration version to N (recovery only)")
	fmt.Println("  help            Show this help message")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -db <path>      Path to database file (default: track.db)")
}
