// 包 neighborhood：辖区代码到街区名称的对照表
package neighborhood

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table：辖区代码 → 街区名称
type Table map[string]string

// defaults：波士顿警区固定对照，External 为市外兜底
var defaults = Table{
	"B2":       "Roxbury",
	"A1":       "Downtown",
	"C6":       "South Boston",
	"C11":      "Dorchester",
	"D4":       "South End",
	"E13":      "Jamaica Plain",
	"B3":       "Mattapan",
	"A7":       "East Boston",
	"E18":      "Hyde Park",
	"A15":      "Charlestown",
	"E5":       "West Roxbury",
	"D14":      "Brighton",
	"External": "Out of Boston",
}

// Default 返回固定对照表的副本
func Default() Table {
	t := make(Table, len(defaults))
	for k, v := range defaults {
		t[k] = v
	}
	return t
}

// Name：未收录的代码原样返回
func (t Table) Name(code string) string {
	if n, ok := t[code]; ok && n != "" {
		return n
	}
	return code
}

// LoadYAML：读取 YAML 映射文件并覆盖到默认表之上
// 约束：path 为空时直接返回默认表；空键被忽略
func LoadYAML(path string) (Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read neighborhoods: %w", err)
	}
	var m map[string]string
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse neighborhoods %s: %w", path, err)
	}
	for k, v := range m {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		t[k] = v
	}
	return t, nil
}
