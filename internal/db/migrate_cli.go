package db

import (
	"fmt"
	"io"
	"io/fs"
	"strconv"
)

// MigrateActions lists the actions RunMigrate understands.
var MigrateActions = []string{"up", "down", "status", "force"}

// RunMigrate performs one migrate action against database and writes a
// human-readable report to w. force takes the target version as its only
// argument.
func RunMigrate(database *DB, migrations fs.FS, action string, args []string, w io.Writer) error {
	switch action {
	case "up":
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
		fmt.Fprintln(w, "✓ All migrations applied successfully")
	case "down":
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
		fmt.Fprintln(w, "✓ Migration rolled back successfully")
	case "status":
	case "force":
		if len(args) != 1 {
			return fmt.Errorf("usage: migrate force <version>")
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[0])
		}
		if err := database.MigrateForce(migrations, v); err != nil {
			return err
		}
		fmt.Fprintf(w, "✓ Migration version forced to %d\n", v)
	default:
		return fmt.Errorf("unknown migrate action: %s", action)
	}
	return printStatus(database, migrations, w)
}

func printStatus(database *DB, migrations fs.FS, w io.Writer) error {
	st, err := database.MigrationStatus(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "=== Migration Status ===")
	fmt.Fprintf(w, "Current version: %d\n", st.Current)
	fmt.Fprintf(w, "Latest available: %d\n", st.Latest)
	fmt.Fprintf(w, "Dirty: %v\n", st.Dirty)
	switch {
	case st.Dirty:
		fmt.Fprintln(w, "⚠️  Database is in a dirty state. Inspect it, then run: exoquest migrate force <version>")
	case st.Pending() > 0:
		fmt.Fprintf(w, "⚠️  Database is %d version(s) behind. Run 'exoquest migrate up' to update.\n", st.Pending())
	default:
		fmt.Fprintln(w, "✓ Database is up to date!")
	}
	return nil
}
