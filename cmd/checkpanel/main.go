// Command checkpanel validates a panel CSV produced by a download run: the
// UTF-8 signature, the header layout, value parseability, and region-year
// uniqueness. Useful as a post-run integrity gate before handing the file to
// spreadsheet users.
//
// Usage:
//
//	go run ./cmd/checkpanel -panel data/panel_region_year.csv
package main

import (
	"bytes"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
)

var utf8Signature = []byte{0xEF, 0xBB, 0xBF}

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	panelPath := flag.String("panel", "", "path to the panel CSV")
	flag.Parse()

	if *panelPath == "" {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(*panelPath))
}

func run(path string) int {
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read panel: %v\n", err)
		return 1
	}

	fmt.Println("=== Panel CSV Validation ===")
	fmt.Println()

	encoding := checkEncoding(raw)
	raw = bytes.TrimPrefix(raw, utf8Signature)

	rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse csv: %v\n", err)
		return 1
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "FATAL: empty file")
		return 1
	}

	header := rows[0]
	phases := []*phase{
		encoding,
		checkHeader(header),
		checkRows(header, rows[1:]),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-32s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d data rows, %d indicator columns\n", len(rows)-1, max(len(header)-3, 0))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func checkEncoding(raw []byte) *phase {
	p := &phase{name: "Encoding (UTF-8 signature)"}
	if !bytes.HasPrefix(raw, utf8Signature) {
		p.errorf("file does not start with the UTF-8 signature; Excel will mangle Chinese names")
	}
	return p
}

// checkHeader verifies the fixed layout: reg, year, indicator columns, prov.
func checkHeader(header []string) *phase {
	p := &phase{name: "Header layout"}
	if len(header) < 3 {
		p.errorf("header has %d columns, need at least reg, year, prov", len(header))
		return p
	}
	if header[0] != "reg" {
		p.errorf("column 1 is %q, expected \"reg\"", header[0])
	}
	if header[1] != "year" {
		p.errorf("column 2 is %q, expected \"year\"", header[1])
	}
	if last := header[len(header)-1]; last != "prov" {
		p.errorf("last column is %q, expected \"prov\"", last)
	}
	seen := map[string]bool{}
	for _, col := range header {
		if seen[col] {
			p.errorf("duplicate column %q", col)
		}
		seen[col] = true
	}
	return p
}

func checkRows(header []string, rows [][]string) *phase {
	p := &phase{name: "Row integrity"}
	seen := map[string]int{}

	for i, row := range rows {
		line := i + 2
		if len(row) != len(header) {
			p.errorf("line %d: %d fields, header has %d", line, len(row), len(header))
			continue
		}
		if row[0] == "" {
			p.errorf("line %d: empty region code", line)
		}
		if _, err := strconv.Atoi(row[1]); err != nil {
			p.errorf("line %d: year %q is not an integer", line, row[1])
		}

		key := row[0] + "-" + row[1]
		if prev, dup := seen[key]; dup {
			p.errorf("line %d: duplicate region-year %s (first seen line %d)", line, key, prev)
		} else {
			seen[key] = line
		}

		// Indicator columns sit between year and prov; empty means no value
		// published, anything else must parse as a float.
		for j := 2; j < len(row)-1; j++ {
			if row[j] == "" {
				continue
			}
			if _, err := strconv.ParseFloat(row[j], 64); err != nil {
				p.errorf("line %d: column %q value %q is not numeric", line, header[j], row[j])
			}
		}
	}
	return p
}
