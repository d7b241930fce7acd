// Package export renders measurement records as tab-separated text for
// spreadsheet import.
package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"mcr-analyzer/internal/store"
)

// timestampLayout formats row timestamps in local time.
const timestampLayout = "2006-01-02 15:04:05"

// numericCellRe matches cells that pass through without quoting.
var numericCellRe = regexp.MustCompile(`^[-+]?[0-9.,]+$`)

// WriteTSV writes one tab-separated line per measurement: timestamp,
// chip ID, probe ID, notes, then the mean of the valid replicates of
// every populated column. Columns without a single valid value are left
// out of their row.
func WriteTSV(w io.Writer, measurements []*store.Measurement) error {
	bw := bufio.NewWriter(w)

	for _, m := range measurements {
		items := []string{
			escapeCell(m.Timestamp.Format(timestampLayout)),
			escapeCell(m.ChipID),
			escapeCell(m.ProbeID),
			escapeCell(m.Notes),
		}

		for column := 0; column < m.ColumnCount; column++ {
			var valid []float64
			for row := 0; row < m.RowCount; row++ {
				if replicateValid(m, row, column) {
					valid = append(valid, m.Values[row][column])
				}
			}
			if len(valid) > 0 {
				items = append(items, strconv.Itoa(int(math.Round(stat.Mean(valid, nil)))))
			}
		}

		if _, err := fmt.Fprintln(bw, strings.Join(items, "\t")); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func replicateValid(m *store.Measurement, row, column int) bool {
	if row >= len(m.Valid) || column >= len(m.Valid[row]) {
		return false
	}
	if row >= len(m.Values) || column >= len(m.Values[row]) {
		return false
	}
	return m.Valid[row][column] && !math.IsNaN(m.Values[row][column])
}

// escapeCell makes value safe as a spreadsheet cell. Numeric cells pass
// through bare. Everything else is quoted with doubled quotation marks,
// and cells that would start with a formula character additionally get a
// leading apostrophe with their line breaks flattened.
func escapeCell(value string) string {
	if numericCellRe.MatchString(value) {
		return value
	}

	body := strings.ReplaceAll(value, `"`, `""`)
	cell := `"` + body + `"`
	if startsWithFormulaChar(body) {
		cell = strings.ReplaceAll(cell, "\n", `\n`)
		cell = strings.ReplaceAll(cell, "\r", `\r`)
		cell = "'" + cell
	}
	return cell
}

// startsWithFormulaChar checks the first two characters, matching how
// spreadsheets sniff for formulas past a leading quote.
func startsWithFormulaChar(body string) bool {
	const symbols = "@+-=|%"

	runes := []rune(body)
	for i := 0; i < len(runes) && i < 2; i++ {
		if strings.ContainsRune(symbols, runes[i]) {
			return true
		}
	}
	return false
}
