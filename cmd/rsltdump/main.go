// Command rsltdump parses device result files and prints their contents.
package main

import (
	"flag"
	"fmt"
	"os"

	"mcr-analyzer/internal/rslt"
)

func main() {
	table := flag.Bool("table", false, "Print the device result table of each file")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Println("Usage: rsltdump [-table] <file.rslt | directory>...")
		os.Exit(1)
	}

	exitCode := 0
	for _, path := range flag.Args() {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to stat %s: %v\n", path, err)
			exitCode = 1
			continue
		}

		if info.IsDir() {
			if !dumpDir(path, *table) {
				exitCode = 1
			}
			continue
		}

		r, err := rslt.ParseFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to parse %s: %v\n", path, err)
			exitCode = 1
			continue
		}
		dump(r, *table)
	}
	os.Exit(exitCode)
}

func dumpDir(path string, table bool) bool {
	list, failed, err := rslt.ParseDir(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to walk %s: %v\n", path, err)
		return false
	}

	for _, r := range list {
		dump(r, table)
	}

	fmt.Printf("Parsed %d measurements\n", len(list))
	for _, name := range failed {
		fmt.Fprintf(os.Stderr, "Failed to parse %s\n", name)
	}
	return len(failed) == 0
}

func dump(r *rslt.Rslt, table bool) {
	fmt.Printf("%s\n", r.Path)
	fmt.Printf("  Date/time:    %s\n", r.DateTime.Format("2006-01-02 15:04"))
	fmt.Printf("  Device:       %s\n", r.DeviceID)
	fmt.Printf("  Probe:        %s\n", r.ProbeID)
	fmt.Printf("  Chip:         %s\n", r.ChipID)
	fmt.Printf("  Image:        %s\n", r.ResultImagePGM)
	if r.DarkFramePGM != "" {
		fmt.Printf("  Dark frame:   %s\n", r.DarkFramePGM)
	}
	fmt.Printf("  Temperature:  %s\n", okString(r.TemperatureOK))
	fmt.Printf("  Clean image:  %s\n", okString(r.CleanImage))
	fmt.Printf("  Thresholds:   %v\n", r.Thresholds)
	fmt.Printf("  Grid:         %d columns x %d rows, spot size %d\n",
		r.ColumnCount, r.RowCount, r.SpotSize)
	fmt.Printf("  Corners:      (%.0f, %.0f) (%.0f, %.0f) (%.0f, %.0f) (%.0f, %.0f)\n",
		r.Corners.TopLeft.X, r.Corners.TopLeft.Y,
		r.Corners.TopRight.X, r.Corners.TopRight.Y,
		r.Corners.BottomRight.X, r.Corners.BottomRight.Y,
		r.Corners.BottomLeft.X, r.Corners.BottomLeft.Y)

	if table {
		fmt.Printf("  Results:\n")
		for _, row := range r.Results {
			fmt.Printf("   ")
			for _, v := range row {
				fmt.Printf(" %6d", v)
			}
			fmt.Printf("\n")
		}
	}
	fmt.Println()
}

func okString(ok bool) string {
	if ok {
		return "ok"
	}
	return "NOT OK"
}
