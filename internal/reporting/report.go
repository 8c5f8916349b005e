package reporting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	location "wms-core/internal/location/domain"
)

// Format selects the rendered report type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// ErrUnknownFormat is returned for formats other than xlsx and pdf.
var ErrUnknownFormat = errors.New("reporting: unknown format")

// LocationReport is a point-in-time snapshot of groups and locations.
type LocationReport struct {
	GeneratedAt time.Time
	Groups      []location.LocationGroup
	Locations   []location.Location
}

// Builder assembles location reports from repositories.
type Builder struct {
	locations location.LocationRepository
	groups    location.GroupRepository
	now       func() time.Time
}

// NewBuilder constructs a report builder.
func NewBuilder(locations location.LocationRepository, groups location.GroupRepository) (*Builder, error) {
	if locations == nil {
		return nil, errors.New("reporting: nil location repository")
	}
	if groups == nil {
		return nil, errors.New("reporting: nil group repository")
	}
	return &Builder{locations: locations, groups: groups, now: time.Now}, nil
}

// Snapshot loads every group and location, sorted by name and key.
func (b *Builder) Snapshot(ctx context.Context) (LocationReport, error) {
	groups, err := b.groups.List(ctx)
	if err != nil {
		return LocationReport{}, err
	}
	locs, err := b.locations.List(ctx)
	if err != nil {
		return LocationReport{}, err
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	sort.Slice(locs, func(i, j int) bool { return locs[i].PK.String() < locs[j].PK.String() })
	return LocationReport{GeneratedAt: b.now().UTC(), Groups: groups, Locations: locs}, nil
}

// Render snapshots and renders in the given format.
func (b *Builder) Render(ctx context.Context, format Format) ([]byte, error) {
	if format != FormatXLSX && format != FormatPDF {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	report, err := b.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if format == FormatPDF {
		return BuildLocationPDF(report)
	}
	return BuildLocationXLSX(report)
}

var locationColumns = []string{"Location", "PLC Code", "ERP Code", "Group", "Infeed", "Outfeed", "PLC State", "Updated"}

func locationRow(loc location.Location) []string {
	updated := ""
	if !loc.UpdatedAt.IsZero() {
		updated = loc.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		loc.PK.String(),
		loc.PLCCode,
		loc.ERPCode,
		loc.GroupName,
		activeLabel(loc.InfeedActive),
		activeLabel(loc.OutfeedActive),
		strconv.Itoa(loc.PLCState),
		updated,
	}
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "locked"
}

// BuildLocationXLSX renders a groups sheet and a locations sheet.
func BuildLocationXLSX(report LocationReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	groupsSheet := "groups"
	locationsSheet := "locations"
	if err := f.SetSheetName("Sheet1", groupsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(locationsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(groupsSheet, "A1", "Group")
	_ = f.SetCellValue(groupsSheet, "B1", "Parent")
	_ = f.SetCellValue(groupsSheet, "C1", "State In")
	_ = f.SetCellValue(groupsSheet, "D1", "State Out")
	_ = f.SetCellValue(groupsSheet, "E1", "Mode")
	for i, group := range report.Groups {
		row := i + 2
		_ = f.SetCellValue(groupsSheet, fmt.Sprintf("A%d", row), group.Name)
		_ = f.SetCellValue(groupsSheet, fmt.Sprintf("B%d", row), group.ParentName)
		_ = f.SetCellValue(groupsSheet, fmt.Sprintf("C%d", row), string(group.GroupStateIn))
		_ = f.SetCellValue(groupsSheet, fmt.Sprintf("D%d", row), string(group.GroupStateOut))
		_ = f.SetCellValue(groupsSheet, fmt.Sprintf("E%d", row), string(group.OperationMode))
	}

	for col, title := range locationColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(locationsSheet, cell, title)
	}
	for i, loc := range report.Locations {
		for col, value := range locationRow(loc) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(locationsSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildLocationPDF renders a landscape table of all locations.
func BuildLocationPDF(report LocationReport) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Location State Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Groups: %d  Locations: %d", len(report.Groups), len(report.Locations)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	for _, group := range report.Groups {
		pdf.Cell(0, 5, fmt.Sprintf("%s  in=%s out=%s mode=%s", group.Name, group.GroupStateIn, group.GroupStateOut, group.OperationMode))
		pdf.Ln(5)
	}
	pdf.Ln(3)

	widths := []float64{55, 30, 30, 35, 20, 20, 22, 45}
	for i, title := range locationColumns {
		pdf.CellFormat(widths[i], 6, title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, loc := range report.Locations {
		for i, value := range locationRow(loc) {
			pdf.CellFormat(widths[i], 6, value, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
