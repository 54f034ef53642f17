// Package csvsink persists run artifacts as CSV files.
package csvsink

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/HarllyZhou/statcn-etl/internal/domain"
)

// utf8Signature is prepended to every artifact so spreadsheet tools detect
// UTF-8; the files carry Chinese region and indicator names.
var utf8Signature = []byte{0xEF, 0xBB, 0xBF}

// Writer writes artifacts into one output directory, overwriting files from
// earlier runs.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at dir. The directory is created on the
// first write.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// WriteTree persists a catalog tree as tree_<db>_<wdcode>.csv and returns
// the file path.
func (w *Writer) WriteTree(db, wdcode string, nodes []domain.TreeNode) (string, error) {
	rows := make([][]string, 0, len(nodes)+1)
	rows = append(rows, []string{"id", "name", "pid", "isParent"})
	for _, n := range nodes {
		rows = append(rows, []string{n.ID, n.Name, n.PID, strconv.FormatBool(n.IsParent)})
	}
	return w.writeFile(fmt.Sprintf("tree_%s_%s.csv", db, wdcode), rows)
}

// WriteRegionNames persists the region code to display name table as
// region_names.csv, sorted by code.
func (w *Writer) WriteRegionNames(names map[string]string) (string, error) {
	codes := make([]string, 0, len(names))
	for code := range names {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	rows := make([][]string, 0, len(names)+1)
	rows = append(rows, []string{"reg", "prov"})
	for _, code := range codes {
		rows = append(rows, []string{code, names[code]})
	}
	return w.writeFile("region_names.csv", rows)
}

// WritePanel persists the joined panel as panel_region_year.csv with columns
// reg, year, one column per indicator label, and prov. Missing observations
// render as empty cells.
func (w *Writer) WritePanel(p *domain.Panel) (string, error) {
	header := append([]string{"reg", "year"}, p.Columns...)
	header = append(header, "prov")

	panelRows := p.Rows()
	rows := make([][]string, 0, len(panelRows)+1)
	rows = append(rows, header)
	for _, row := range panelRows {
		record := make([]string, 0, len(header))
		record = append(record, row.Reg, strconv.Itoa(row.Year))
		for _, label := range p.Columns {
			record = append(record, formatValue(row.Values[label]))
		}
		record = append(record, row.Province)
		rows = append(rows, record)
	}
	return w.writeFile("panel_region_year.csv", rows)
}

func formatValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func (w *Writer) writeFile(name string, rows [][]string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}

	if _, err := f.Write(utf8Signature); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	w.logger.Info("artifact written", "path", path, "rows", len(rows)-1)
	return path, nil
}
