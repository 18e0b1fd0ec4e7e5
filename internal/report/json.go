package report

import (
	"encoding/json"
	"io"

	"github.com/John-Robertt/siteaudit/internal/domain"
	"github.com/John-Robertt/siteaudit/internal/infra/fsx"
)

// StdoutPath 表示 JSON 报告写到 stdout。
const StdoutPath = "-"

// Marshal 返回带缩进的完整 JSON（不截断，以换行结尾）。
func Marshal(r domain.Report) ([]byte, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// WriteJSON 写出完整报告：path 为 "-" 时写 stdout，否则原子写文件。
func WriteJSON(path string, stdout io.Writer, r domain.Report) error {
	b, err := Marshal(r)
	if err != nil {
		return err
	}
	if path == StdoutPath {
		_, err := stdout.Write(b)
		return err
	}
	return fsx.WriteFile(path, b)
}
