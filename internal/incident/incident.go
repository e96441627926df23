// 包 incident：读取犯罪事件 CSV，按文件顺序解析为记录序列
package incident

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DistrictColumn：表头中的辖区列名（区分大小写）
const DistrictColumn = "DISTRICT"

// ErrNoDistrictColumn：表头缺少 DISTRICT 列
var ErrNoDistrictColumn = errors.New("header has no " + DistrictColumn + " column")

// Record：一行事件数据
// 约束：HasDistrict 为 false 表示该行不含 DISTRICT 字段（行短于表头），与空字符串区分；
// Malformed 行无法解析，Fields 为空，聚合时计入丢弃
type Record struct {
	Line        int
	District    string
	HasDistrict bool
	Malformed   bool
	Fields      map[string]string
}

// LoadError：带阶段与行号的解析错误
type LoadError struct {
	Stage string
	Line  int
	Err   error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load error at %s stage, line %d: %v", e.Stage, e.Line, e.Err)
	}
	return fmt.Sprintf("load error at %s stage: %v", e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load：解析带表头的 CSV
// 背景：源数据存在列数不齐的行，按表头位置对齐，缺失列不写入 Fields
// 约束：引号宽松解析；单行语法错误只标记该行为 Malformed，不中断加载
// 异常：表头缺失/无法解析或读取失败时返回 *LoadError；空行由 csv.Reader 跳过
func Load(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, &LoadError{Stage: "header", Err: errors.New("empty input")}
	}
	if err != nil {
		return nil, &LoadError{Stage: "header", Line: 1, Err: err}
	}
	cols := make([]string, len(header))
	idx := -1
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		cols[i] = h
		if h == DistrictColumn && idx < 0 {
			idx = i
		}
	}
	if idx < 0 {
		return nil, &LoadError{Stage: "header", Line: 1, Err: ErrNoDistrictColumn}
	}
	var out []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			out = append(out, Record{Line: pe.StartLine, Malformed: true})
			continue
		}
		if err != nil {
			return nil, &LoadError{Stage: "row", Err: err}
		}
		line, _ := cr.FieldPos(0)
		rec := Record{Line: line, Fields: make(map[string]string, len(row))}
		for i, v := range row {
			if i < len(cols) {
				rec.Fields[cols[i]] = v
			}
		}
		if idx < len(row) {
			rec.District = row[idx]
			rec.HasDistrict = true
		}
		out = append(out, rec)
	}
	return out, nil
}
