package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/examination-service/internal/authz"
	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/repositories"
)

// exportRowLimit caps one export; narrower filters are needed beyond it
const exportRowLimit = 10000

const (
	contentTypeCSV  = "text/csv"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type exportTable struct {
	kind   authz.Kind
	header []string
	rows   func(ctx context.Context, query ListQuery) ([][]string, error)
}

type exportService struct {
	deps   *ServiceDeps
	tables map[string]exportTable
}

func NewExportService(deps *ServiceDeps) ExportService {
	repo := deps.Repo
	tables := map[string]exportTable{
		"departments": tableOf(repo.Department(), authz.KindDepartment,
			[]string{"ID", "Name", "Code", "Description", "Created At"},
			func(d *models.Department) []string {
				return []string{fmtID(d.ID), d.Name, d.Code, fmtString(d.Description), fmtTime(&d.CreatedAt)}
			}),
		"faculty-members": tableOf(repo.FacultyMember(), authz.KindFacultyMember,
			[]string{"ID", "Name", "Email", "Department ID", "Designation", "Phone", "Joining Date"},
			func(f *models.FacultyMember) []string {
				return []string{fmtID(f.ID), f.Name, f.Email, fmtID(f.DepartmentID), fmtString(f.Designation), fmtString(f.Phone), fmtTime(f.JoiningDate)}
			}),
		"subjects": tableOf(repo.Subject(), authz.KindSubject,
			[]string{"ID", "Name", "Code", "Department ID", "Description"},
			func(s *models.Subject) []string {
				return []string{fmtID(s.ID), s.Name, s.Code, fmtID(s.DepartmentID), fmtString(s.Description)}
			}),
		"paper-categories": tableOf(repo.PaperCategory(), authz.KindPaperCategory,
			[]string{"ID", "Name", "Description"},
			func(c *models.PaperCategory) []string {
				return []string{fmtID(c.ID), c.Name, fmtString(c.Description)}
			}),
		"papers": tableOf(repo.Paper(), authz.KindPaper,
			[]string{"ID", "Name", "Subject ID", "Category ID", "Status", "Duration", "Total Marks", "Passing %", "Start Time", "End Time"},
			func(p *models.Paper) []string {
				return []string{fmtID(p.ID), p.Name, fmtID(p.SubjectID), fmtID(p.PaperCategoryID), string(p.Status),
					strconv.Itoa(p.Duration), fmtNumber(p.TotalMarks), fmtNumber(p.PassingPercentage), fmtTime(p.StartTime), fmtTime(p.EndTime)}
			}),
		"question-types": tableOf(repo.QuestionType(), authz.KindQuestionType,
			[]string{"ID", "Name", "Code", "Requires Options", "Auto Gradable"},
			func(t *models.QuestionType) []string {
				return []string{fmtID(t.ID), t.Name, t.Code, strconv.FormatBool(t.RequiresOptions), strconv.FormatBool(t.AutoGradable)}
			}),
		"questions": tableOf(repo.Question(), authz.KindQuestion,
			[]string{"ID", "Text", "Subject ID", "Type ID", "Difficulty", "Marks", "Negative Marks", "Status"},
			func(q *models.Question) []string {
				return []string{fmtID(q.ID), q.Text, fmtID(q.SubjectID), fmtID(q.QuestionTypeID), string(q.DifficultyLevel),
					fmtNumber(q.Marks), fmtNumber(q.NegativeMarks), string(q.Status)}
			}),
		"question-options": tableOf(repo.QuestionOption(), authz.KindQuestionOption,
			[]string{"ID", "Question ID", "Text", "Correct", "Order"},
			func(o *models.QuestionOption) []string {
				return []string{fmtID(o.ID), fmtID(o.QuestionID), o.Text, strconv.FormatBool(o.IsCorrect), strconv.Itoa(o.Order)}
			}),
		"user-categories": tableOf(repo.UserCategory(), authz.KindUserCategory,
			[]string{"ID", "Name", "Description"},
			func(c *models.UserCategory) []string {
				return []string{fmtID(c.ID), c.Name, fmtString(c.Description)}
			}),
		"users": tableOf(repo.User(), authz.KindUser,
			[]string{"ID", "Name", "Email", "Role", "Status", "Category ID", "Last Login"},
			func(u *models.User) []string {
				return []string{fmtID(u.ID), u.Name, u.Email, string(u.Role), string(u.Status), fmtOptionalID(u.UserCategoryID), fmtTime(u.LastLoginAt)}
			}),
		"test-attempts": {
			kind:   authz.KindAttempt,
			header: []string{"ID", "User ID", "Paper ID", "Attempt", "Status", "Start Time", "End Time", "Score", "Max Score", "Percentage", "Passed", "End Reason"},
			rows: func(ctx context.Context, query ListQuery) ([][]string, error) {
				filters := attemptFilters(query)
				filters.Limit, filters.Offset = exportRowLimit, 0
				attempts, _, err := repo.Attempt().List(ctx, nil, filters)
				if err != nil {
					return nil, err
				}
				rows := make([][]string, len(attempts))
				for i, a := range attempts {
					rows[i] = []string{fmtID(a.ID), fmtID(a.UserID), fmtID(a.PaperID), strconv.Itoa(a.AttemptNumber), string(a.Status),
						fmtTime(a.StartTime), fmtTime(a.EndTime), fmtNumber(a.Score), fmtNumber(a.MaxScore), fmtNumber(a.Percentage),
						strconv.FormatBool(a.Passed), fmtString(a.EndReason)}
				}
				return rows, nil
			},
		},
	}
	return &exportService{deps: deps, tables: tables}
}

func (s *exportService) Resources() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *exportService) Export(ctx context.Context, actor authz.Actor, resource string, query ListQuery, format ExportFormat) (*ExportFile, error) {
	table, ok := s.tables[resource]
	if !ok {
		return nil, NewNotFoundError("export "+resource, 0)
	}
	if err := s.deps.authorize(ctx, actor, authz.ActionExport, authz.Resource{Kind: table.kind}); err != nil {
		return nil, err
	}

	rows, err := table.rows(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s for export: %w", resource, err)
	}

	stamp := s.deps.now().UTC().Format("20060102-150405")
	file := &ExportFile{}
	switch format {
	case ExportCSV, "":
		file.Data, err = renderCSV(table.header, rows)
		file.ContentType = contentTypeCSV
		file.Filename = fmt.Sprintf("%s-%s.csv", resource, stamp)
	case ExportXLSX:
		file.Data, err = renderXLSX(resource, table.header, rows)
		file.ContentType = contentTypeXLSX
		file.Filename = fmt.Sprintf("%s-%s.xlsx", resource, stamp)
	default:
		return nil, ValidationErrors{{Field: "format", Message: "must be csv or xlsx", Value: format, Rule: "oneof"}}
	}
	if err != nil {
		return nil, err
	}

	s.deps.Logger.InfoContext(ctx, "Export rendered", "resource", resource, "format", format, "rows", len(rows), "actor_id", actor.UserID)
	return file, nil
}

// tableOf exports any CRUD listing through the same filters as the list view
func tableOf[T any](store repositories.CRUDRepository[T], kind authz.Kind, header []string, row func(*T) []string) exportTable {
	return exportTable{
		kind:   kind,
		header: header,
		rows: func(ctx context.Context, query ListQuery) ([][]string, error) {
			items, _, err := store.List(ctx, nil, repositories.ListFilters{
				Search:    query.Search,
				Equals:    query.Equals,
				Limit:     exportRowLimit,
				SortBy:    query.SortBy,
				SortOrder: query.SortOrder,
			})
			if err != nil {
				return nil, err
			}
			rows := make([][]string, len(items))
			for i, item := range items {
				rows[i] = row(item)
			}
			return rows, nil
		},
	}
}

func renderCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}

func renderXLSX(sheetName string, header []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	sheet = sheetName

	for col, h := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write xlsx header: %w", err)
		}
	}
	for r, row := range rows {
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write xlsx row %d: %w", r+1, err)
			}
		}
	}
	if len(header) > 0 {
		last, _ := excelize.ColumnNumberToName(len(header))
		_ = f.SetColWidth(sheet, "A", last, 20)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func fmtID(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func fmtOptionalID(v *uint) string {
	if v == nil {
		return ""
	}
	return fmtID(*v)
}

func fmtString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func fmtNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fmtTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
