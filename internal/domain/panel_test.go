package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func revenueSeries() Series {
	return Series{
		Label: "gpb_rev_total",
		Code:  "A0801",
		Observations: []Observation{
			{Reg: "11", Year: 2020, Value: ptr(100), Zb: "A0801"},
			{Reg: "12", Year: 2020, Value: ptr(200), Zb: "A0801"},
		},
	}
}

func taxSeries() Series {
	return Series{
		Label: "gpb_tax_rev",
		Code:  "A0802",
		Observations: []Observation{
			{Reg: "11", Year: 2020, Value: ptr(80), Zb: "A0802"},
			{Reg: "13", Year: 2020, Value: ptr(150), Zb: "A0802"},
		},
	}
}

func TestAssemblePanel_OuterJoin(t *testing.T) {
	panel := AssemblePanel([]Series{revenueSeries(), taxSeries()})

	require.Equal(t, 3, panel.Len())
	rows := panel.Rows()
	byReg := make(map[string]*PanelRow, len(rows))
	for _, row := range rows {
		byReg[row.Reg] = row
	}

	// Region 11 is covered by both series.
	require.Contains(t, byReg, "11")
	assert.Equal(t, 100.0, *byReg["11"].Values["gpb_rev_total"])
	assert.Equal(t, 80.0, *byReg["11"].Values["gpb_tax_rev"])

	// Region 12 only appears in the revenue series; the tax column is absent.
	require.Contains(t, byReg, "12")
	assert.Equal(t, 200.0, *byReg["12"].Values["gpb_rev_total"])
	_, covered := byReg["12"].Values["gpb_tax_rev"]
	assert.False(t, covered)

	// Region 13 only appears in the tax series.
	require.Contains(t, byReg, "13")
	assert.Equal(t, 150.0, *byReg["13"].Values["gpb_tax_rev"])
	_, covered = byReg["13"].Values["gpb_rev_total"]
	assert.False(t, covered)
}

func TestAssemblePanel_OrderIndependent(t *testing.T) {
	forward := AssemblePanel([]Series{revenueSeries(), taxSeries()})
	reversed := AssemblePanel([]Series{taxSeries(), revenueSeries()})

	// Column order follows input order; row content must not.
	assert.Equal(t, []string{"gpb_rev_total", "gpb_tax_rev"}, forward.Columns)
	assert.Equal(t, []string{"gpb_tax_rev", "gpb_rev_total"}, reversed.Columns)

	fRows, rRows := forward.Rows(), reversed.Rows()
	require.Equal(t, len(fRows), len(rRows))
	for i := range fRows {
		assert.Equal(t, fRows[i].Reg, rRows[i].Reg)
		assert.Equal(t, fRows[i].Year, rRows[i].Year)
		assert.Equal(t, fRows[i].Values, rRows[i].Values)
	}
}

func TestAssemblePanel_NilValueSurvivesJoin(t *testing.T) {
	s := Series{
		Label:        "gpb_rev_total",
		Observations: []Observation{{Reg: "11", Year: 2019, Value: nil}},
	}
	panel := AssemblePanel([]Series{s})

	rows := panel.Rows()
	require.Len(t, rows, 1)
	value, covered := rows[0].Values["gpb_rev_total"]
	assert.True(t, covered)
	assert.Nil(t, value)
}

func TestPanelAttachNames(t *testing.T) {
	panel := AssemblePanel([]Series{revenueSeries()})
	panel.AttachNames(map[string]string{"11": "北京市"})

	for _, row := range panel.Rows() {
		if row.Reg == "11" {
			assert.Equal(t, "北京市", row.Province)
		} else {
			assert.Empty(t, row.Province)
		}
	}
}

func TestPanelRows_Deterministic(t *testing.T) {
	s := Series{
		Label: "x",
		Observations: []Observation{
			{Reg: "12", Year: 2019},
			{Reg: "11", Year: 2020},
			{Reg: "11", Year: 2019},
		},
	}
	rows := AssemblePanel([]Series{s}).Rows()

	require.Len(t, rows, 3)
	assert.Equal(t, "11", rows[0].Reg)
	assert.Equal(t, 2019, rows[0].Year)
	assert.Equal(t, "11", rows[1].Reg)
	assert.Equal(t, 2020, rows[1].Year)
	assert.Equal(t, "12", rows[2].Reg)
}
