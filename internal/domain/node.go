package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// TreeNode is one entry in an indicator or region catalog tree.
type TreeNode struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PID      string `json:"pid"`
	IsParent bool   `json:"isParent"`
}

// DataNode is one raw cell from a QueryData response, keyed by the composite
// wds dimension string.
type DataNode struct {
	WDS  string   `json:"wds"`
	Data DataCell `json:"data"`
}

// DataCell is the nested value holder inside a data node. The server also
// sends a hasdata flag and a preformatted strdata string; decoding is driven
// by the raw value alone, but both are carried for diagnostics.
type DataCell struct {
	Data    json.RawMessage `json:"data"`
	HasData bool            `json:"hasdata"`
	StrData string          `json:"strdata"`
}

// Value decodes the cell into a nullable float. Empty strings, null, and
// unparseable values all map to nil, never to zero.
func (c DataCell) Value() *float64 {
	raw := bytes.TrimSpace(c.Data)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Observation is a decoded data node: one value for one indicator in one
// region and year. A nil Value means the source reported no observation.
type Observation struct {
	Reg   string
	Year  int
	Value *float64
	Zb    string
}

// Indicator names one series requested for the panel. Label becomes the
// panel column name; Code is the zb leaf code in the source catalog.
type Indicator struct {
	Label string `mapstructure:"label" yaml:"label"`
	Code  string `mapstructure:"code"  yaml:"code"`
}

// Series holds the decoded observations of one indicator.
type Series struct {
	Label        string
	Code         string
	Observations []Observation
}

// QueryResult is the usable content of one QueryData response: decoded
// observations, the count of nodes dropped for undecodable wds strings, and
// the region display names that rode along in the dimension metadata.
type QueryResult struct {
	Observations []Observation
	Dropped      int
	RegionNames  map[string]string
}
