package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title:   "Attendance History",
		Headers: []string{"Date", "Course", "Status"},
		Rows: [][]string{
			{"2024-03-04 09:05", "CS101", "Present"},
			{"2024-03-05 09:02", "MA201, Section B", "Present"},
		},
		Footer: []string{"Attended 2 of 2 lectures"},
	}
}

func TestCSVRendererQuotesCells(t *testing.T) {
	out, err := NewCSVRenderer().Render(sampleTable())
	require.NoError(t, err)
	assert.Equal(t, "Date,Course,Status\n2024-03-04 09:05,CS101,Present\n2024-03-05 09:02,\"MA201, Section B\",Present\n", string(out))
}

func TestRenderersRejectRaggedRows(t *testing.T) {
	table := sampleTable()
	table.Rows = append(table.Rows, []string{"only one"})

	_, err := NewCSVRenderer().Render(table)
	assert.Error(t, err)
	_, err = NewPDFRenderer().Render(table)
	assert.Error(t, err)

	_, err = NewCSVRenderer().Render(Table{})
	assert.Error(t, err)
}

func TestPDFRendererProducesDocument(t *testing.T) {
	table := sampleTable()
	for i := 0; i < 60; i++ {
		table.Rows = append(table.Rows, []string{"2024-03-06 09:00", "PH110", "Present"})
	}
	out, err := NewPDFRenderer().Render(table)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
