package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/John-Robertt/siteaudit/internal/domain"
	"github.com/John-Robertt/siteaudit/internal/infra/fsx"
)

const summarySheet = "summary"

var issueHeader = []any{"file", "line", "type", "severity", "target", "count", "message", "video_id", "video_title"}

// WriteXLSX 导出表格：summary 页 + 每个分类一页（空分类也保留表头）。
func WriteXLSX(path string, r domain.Report) error {
	b, err := EncodeXLSX(r)
	if err != nil {
		return err
	}
	return fsx.WriteFile(path, b)
}

// EncodeXLSX 返回 xlsx 文件内容。
func EncodeXLSX(r domain.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return nil, err
	}
	rows := [][]any{
		{"root", r.Root},
		{"generated_at", r.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z")},
		{"partial", r.Partial},
		{"video_check", r.VideoCheck},
		{"files_total", r.FilesAudited.Total},
	}
	for _, c := range domain.Categories {
		rows = append(rows, []any{string(c), len(IssuesOf(r, c))})
	}
	for i, row := range rows {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return nil, err
		}
	}

	for _, c := range domain.Categories {
		sheet := string(c)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		if err := setRow(f, sheet, 1, issueHeader); err != nil {
			return nil, err
		}
		for i, it := range IssuesOf(r, c) {
			if err := setRow(f, sheet, i+2, issueRow(it)); err != nil {
				return nil, err
			}
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("xlsx %s 第 %d 行: %w", sheet, row, err)
	}
	return nil
}

func issueRow(it domain.Issue) []any {
	var id, title string
	if it.Video != nil {
		id, title = it.Video.VideoID, it.Video.Title
	}
	var line, count any = "", ""
	if it.Line > 0 {
		line = it.Line
	}
	if it.Count > 0 {
		count = it.Count
	}
	return []any{it.File, line, it.Type, string(it.Severity), it.Target, count, it.Message, id, title}
}
