package reports

import (
	"io"

	"github.com/mmdatafocus/moldpark_backend/monitor"
	"github.com/xuri/excelize/v2"
)

// ExcelExporter is one row of a sheet.
type ExcelExporter interface {
	GetCellValues() []interface{}
}

type row []interface{}

func (r row) GetCellValues() []interface{} { return r }

func writeSheet(f *excelize.File, sheetName string, headings []string, data []ExcelExporter) error {
	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}
	for r, d := range data {
		for c, value := range d.GetCellValues() {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}

const (
	SummarySheet  = "Summary"
	PipelineSheet = "Pipeline"
	AlertsSheet   = "Alerts"
)

// StatusWorkbook lays a snapshot out as Summary, Pipeline and Alerts sheets.
func StatusWorkbook(snap monitor.Snapshot) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	for _, name := range []string{PipelineSheet, AlertsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	if err := writeSheet(f, SummarySheet, []string{"Metric", "Value"}, summaryRows(snap)); err != nil {
		return nil, err
	}

	var stages []ExcelExporter
	for _, s := range snap.Pipeline.Stages {
		stages = append(stages, row{s.Stage, string(s.StageCode), s.Count, s.Percentage})
	}
	if err := writeSheet(f, PipelineSheet, []string{"Stage", "Code", "Orders", "Percentage"}, stages); err != nil {
		return nil, err
	}

	var alerts []ExcelExporter
	for _, a := range snap.Alerts.Alerts {
		alerts = append(alerts, row{a.Type, a.Title, a.Message, a.Count, a.Priority})
	}
	if err := writeSheet(f, AlertsSheet, []string{"Type", "Title", "Message", "Count", "Priority"}, alerts); err != nil {
		return nil, err
	}
	return f, nil
}

func summaryRows(snap monitor.Snapshot) []ExcelExporter {
	s := snap.Status
	return []ExcelExporter{
		row{"Generated at", snap.GeneratedAt.Format("2006-01-02 15:04:05")},
		row{"Health status", string(s.System.Status)},
		row{"Health score", s.System.HealthScore},
		row{"Database", s.System.Database},
		row{"Cache", s.System.Cache},
		row{"Disk usage (%)", s.System.DiskUsage},
		row{"Users", s.Users.Total},
		row{"Centers", s.Users.Centers},
		row{"Producers", s.Users.Producers},
		row{"Verified producers", s.Users.VerifiedProducers},
		row{"Orders", s.Orders.Total},
		row{"Active orders", s.Orders.Active},
		row{"Completed (30 days)", s.Orders.Completed30d},
		row{"Overdue orders", s.Orders.Overdue},
		row{"Revenue (30 days)", s.Orders.Revenue30d.InexactFloat64()},
		row{"Molds", s.Molds.Total},
		row{"Active networks", s.Networks.Active},
		row{"Average delivery days", s.Performance.AvgDeliveryDays},
		row{"Completion rate (%)", s.Performance.CompletionRate},
		row{"Critical items", len(s.Critical)},
	}
}

func WriteStatusWorkbook(w io.Writer, snap monitor.Snapshot) error {
	f, err := StatusWorkbook(snap)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func SaveStatusWorkbook(filename string, snap monitor.Snapshot) error {
	f, err := StatusWorkbook(snap)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(filename)
}
