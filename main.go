// Command mcr manages a measurement database for MCR microarray images:
// it imports device result directories, lists what is stored and exports
// the spot results as tab-separated text.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"mcr-analyzer/internal/export"
	"mcr-analyzer/internal/importer"
	"mcr-analyzer/internal/store"
	"mcr-analyzer/internal/version"
)

const defaultDatabase = "measurements.mcrdb"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "import":
		cmdImport(os.Args[2:])
	case "list":
		cmdList(os.Args[2:])
	case "export":
		cmdExport(os.Args[2:])
	case "version":
		fmt.Println(version.String())
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: mcr <command> [options]

Commands:
  import   Import device result directories into a database
  list     List stored measurements
  export   Export measurements as tab-separated text
  version  Print version information

Run 'mcr <command> -h' for command options.`)
}

// newLogger builds the console logger shared by the subcommands.
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dbPath := fs.String("db", defaultDatabase, "Path to the measurement database")
	redetect := fs.Bool("redetect", false, "Rerun grid detection instead of trusting the declared geometry")
	verbose := fs.Bool("v", false, "Enable debug logging")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: mcr import [-db file] [-redetect] [-v] <directory>")
		os.Exit(1)
	}

	logger := newLogger(*verbose)

	db, err := store.LoadOrNew(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}

	im := importer.New(db, logger)
	im.Redetect = *redetect

	statuses, err := im.ImportDir(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}

	counts := make(map[importer.State]int)
	for _, s := range statuses {
		counts[s.State]++
	}
	logger.Info().
		Int("imported", counts[importer.StateImported]).
		Int("duplicates", counts[importer.StateDuplicate]).
		Int("parse_failures", counts[importer.StateParseFailed]).
		Int("image_failures", counts[importer.StateImageFailed]).
		Msg("import finished")

	if counts[importer.StateImported] > 0 {
		if err := db.Save(*dbPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save database: %v\n", err)
			os.Exit(1)
		}
		logger.Info().Str("database", *dbPath).Msg("database saved")
	}
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dbPath := fs.String("db", defaultDatabase, "Path to the measurement database")
	fs.Parse(args)

	db, err := store.Load(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-5s %-20s %-10s %-12s %-12s %-7s %s\n",
		"ID", "Timestamp", "Device", "Chip", "Probe", "Grid", "Image")
	for _, m := range db.List() {
		fmt.Printf("%-5d %-20s %-10s %-12s %-12s %3dx%-3d %s\n",
			m.ID,
			m.Timestamp.Format("2006-01-02 15:04:05"),
			m.DeviceID,
			m.ChipID,
			m.ProbeID,
			m.ColumnCount,
			m.RowCount,
			m.ImagePath)
	}
	fmt.Printf("\nTotal: %d measurements\n", len(db.Measurements))
}

func cmdExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dbPath := fs.String("db", defaultDatabase, "Path to the measurement database")
	out := fs.String("o", "", "Output file (default stdout)")
	from := fs.String("from", "", "Only measurements on or after this date (YYYY-MM-DD)")
	to := fs.String("to", "", "Only measurements before this date (YYYY-MM-DD)")
	fs.Parse(args)

	db, err := store.Load(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}

	list, err := filterByDate(db.List(), *from, *to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad date filter: %v\n", err)
		os.Exit(1)
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	if err := export.WriteTSV(w, list); err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
}

// filterByDate keeps measurements within [from, to), both given as local
// calendar dates. Empty bounds stay open.
func filterByDate(list []*store.Measurement, from, to string) ([]*store.Measurement, error) {
	const layout = "2006-01-02"

	if from != "" {
		bound, err := time.ParseInLocation(layout, from, time.Local)
		if err != nil {
			return nil, err
		}
		list = keepAfter(list, bound)
	}
	if to != "" {
		bound, err := time.ParseInLocation(layout, to, time.Local)
		if err != nil {
			return nil, err
		}
		list = keepBefore(list, bound)
	}
	return list, nil
}

func keepAfter(list []*store.Measurement, bound time.Time) []*store.Measurement {
	var kept []*store.Measurement
	for _, m := range list {
		if !m.Timestamp.Before(bound) {
			kept = append(kept, m)
		}
	}
	return kept
}

func keepBefore(list []*store.Measurement, bound time.Time) []*store.Measurement {
	var kept []*store.Measurement
	for _, m := range list {
		if m.Timestamp.Before(bound) {
			kept = append(kept, m)
		}
	}
	return kept
}
