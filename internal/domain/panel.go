package domain

import "sort"

// PanelKey identifies one region-year row.
type PanelKey struct {
	Reg  string
	Year int
}

// PanelRow is one region-year with one value slot per indicator label.
// A label absent from Values means that indicator has no observation for
// this region-year; a present nil means the source reported an empty cell.
// Both render as empty in the CSV artifact.
type PanelRow struct {
	Reg      string
	Year     int
	Province string
	Values   map[string]*float64
}

// Panel is the joined region-year table. Columns preserve the configured
// indicator order; row content is independent of the order series were
// merged in.
type Panel struct {
	Columns []string
	rows    map[PanelKey]*PanelRow
}

// AssemblePanel outer-joins indicator series on (region, year). A region-year
// present in any series appears exactly once, with values only for the series
// that cover it.
func AssemblePanel(series []Series) *Panel {
	p := &Panel{
		Columns: make([]string, 0, len(series)),
		rows:    make(map[PanelKey]*PanelRow),
	}
	for _, s := range series {
		p.Columns = append(p.Columns, s.Label)
		for _, obs := range s.Observations {
			key := PanelKey{Reg: obs.Reg, Year: obs.Year}
			row, ok := p.rows[key]
			if !ok {
				row = &PanelRow{
					Reg:    obs.Reg,
					Year:   obs.Year,
					Values: make(map[string]*float64, len(series)),
				}
				p.rows[key] = row
			}
			row.Values[s.Label] = obs.Value
		}
	}
	return p
}

// AttachNames left-joins region display names onto the panel. Rows whose
// region code is absent from the table keep an empty province name.
func (p *Panel) AttachNames(names map[string]string) {
	for _, row := range p.rows {
		row.Province = names[row.Reg]
	}
}

// Rows returns the panel sorted by region code, then year.
func (p *Panel) Rows() []*PanelRow {
	rows := make([]*PanelRow, 0, len(p.rows))
	for _, row := range p.rows {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Reg != rows[j].Reg {
			return rows[i].Reg < rows[j].Reg
		}
		return rows[i].Year < rows[j].Year
	})
	return rows
}

// Len reports the number of region-year rows.
func (p *Panel) Len() int {
	return len(p.rows)
}
