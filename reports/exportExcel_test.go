package reports

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/mmdatafocus/moldpark_backend/monitor"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleSnapshot() monitor.Snapshot {
	return monitor.Snapshot{
		GeneratedAt: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC),
		Status: monitor.SystemStatus{
			System: monitor.SystemInfo{Status: monitor.HealthGood, HealthScore: 80, Database: "connected", Cache: "healthy"},
			Users:  monitor.UserStats{Total: 12, Centers: 4, Producers: 3, VerifiedProducers: 2},
			Orders: monitor.OrderStats{Total: 9, Active: 4, Revenue30d: decimal.RequireFromString("200.50")},
		},
		Pipeline: monitor.Pipeline{
			TotalActiveOrders: 4,
			Stages: []monitor.PipelineStage{
				{Stage: "Received Orders", StageCode: models.OrderStatusReceived, Count: 3, Percentage: 75},
				{Stage: "In Production", StageCode: models.OrderStatusProduction, Count: 1, Percentage: 25},
			},
		},
		Alerts: monitor.AlertList{Alerts: []monitor.Alert{
			{Type: "overdue", Title: "Overdue orders", Message: "2 orders are past their delivery date", Count: 2, Priority: "high"},
		}},
	}
}

func TestStatusWorkbook(t *testing.T) {
	f, err := StatusWorkbook(sampleSnapshot())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, PipelineSheet, AlertsSheet}, f.GetSheetList())

	cell := func(sheet, name string) string {
		v, err := f.GetCellValue(sheet, name)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Metric", cell(SummarySheet, "A1"))
	assert.Equal(t, "2026-10-14 12:00:00", cell(SummarySheet, "B2"))
	assert.Equal(t, "good", cell(SummarySheet, "B3"))
	assert.Equal(t, "80", cell(SummarySheet, "B4"))
	assert.Equal(t, "Revenue (30 days)", cell(SummarySheet, "A16"))
	assert.Equal(t, "200.5", cell(SummarySheet, "B16"))

	assert.Equal(t, "Stage", cell(PipelineSheet, "A1"))
	assert.Equal(t, "Received Orders", cell(PipelineSheet, "A2"))
	assert.Equal(t, "received", cell(PipelineSheet, "B2"))
	assert.Equal(t, "3", cell(PipelineSheet, "C2"))
	assert.Equal(t, "25", cell(PipelineSheet, "D3"))

	assert.Equal(t, "Overdue orders", cell(AlertsSheet, "B2"))
	assert.Equal(t, "high", cell(AlertsSheet, "E2"))
	assert.Equal(t, "", cell(AlertsSheet, "A3"))
}

func TestWriteAndSaveStatusWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStatusWorkbook(&buf, sampleSnapshot()))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	assert.Len(t, f.GetSheetList(), 3)
	require.NoError(t, f.Close())

	path := filepath.Join(t.TempDir(), "status.xlsx")
	require.NoError(t, SaveStatusWorkbook(path, sampleSnapshot()))
	saved, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer saved.Close()
	v, err := saved.GetCellValue(AlertsSheet, "D2")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}
