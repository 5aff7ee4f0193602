package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/examination-service/internal/models"
)

func exportEnv(t *testing.T) (*testEnv, ExportService) {
	t.Helper()
	env := newTestEnv(t)
	ctx := context.Background()
	for _, d := range []*models.Department{{Name: "Physics", Code: "PHY"}, {Name: "Chemistry, Organic", Code: "CHEM"}} {
		if err := env.repo.departments.Create(ctx, nil, d); err != nil {
			t.Fatal(err)
		}
	}
	return env, NewExportService(env.deps)
}

func TestExportService_CSV(t *testing.T) {
	_, svc := exportEnv(t)

	file, err := svc.Export(context.Background(), examiner, "departments", ListQuery{}, ExportCSV)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if file.ContentType != "text/csv" {
		t.Errorf("content type = %q", file.ContentType)
	}
	if file.Filename != "departments-20250310-090000.csv" {
		t.Errorf("filename = %q", file.Filename)
	}

	records, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	if err != nil {
		t.Fatalf("exported csv does not parse: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header plus 2 rows", len(records))
	}
	if records[0][0] != "ID" || records[0][1] != "Name" {
		t.Errorf("header = %v", records[0])
	}
	if records[2][1] != "Chemistry, Organic" {
		t.Errorf("quoted cell = %q", records[2][1])
	}
}

func TestExportService_XLSX(t *testing.T) {
	_, svc := exportEnv(t)

	file, err := svc.Export(context.Background(), admin, "departments", ListQuery{}, ExportXLSX)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.HasSuffix(file.Filename, ".xlsx") {
		t.Errorf("filename = %q", file.Filename)
	}

	book, err := excelize.OpenReader(bytes.NewReader(file.Data))
	if err != nil {
		t.Fatalf("exported workbook does not open: %v", err)
	}
	defer book.Close()

	rows, err := book.GetRows("departments")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[1][1] != "Physics" || rows[1][2] != "PHY" {
		t.Errorf("first data row = %v", rows[1])
	}
}

func TestExportService_Errors(t *testing.T) {
	env, svc := exportEnv(t)
	ctx := context.Background()

	if _, err := svc.Export(ctx, admin, "widgets", ListQuery{}, ExportCSV); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown resource error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Export(ctx, admin, "departments", ListQuery{}, "pdf"); !IsValidationError(err) {
		t.Errorf("unknown format error = %v, want validation error", err)
	}
	if _, err := svc.Export(ctx, env.candidate(t), "papers", ListQuery{}, ExportCSV); !errors.Is(err, ErrForbidden) {
		t.Errorf("candidate export error = %v, want ErrForbidden", err)
	}

	resources := svc.Resources()
	if len(resources) == 0 || resources[0] != "departments" {
		t.Errorf("Resources() = %v, want sorted names starting with departments", resources)
	}
}
