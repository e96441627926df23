// 包 aggregate：按辖区统计事件数量并按数量降序排列
package aggregate

import (
	"sort"

	"district-chart/internal/incident"
)

// 两类伤害罪标签及合并后的标签
const (
	AssaultSimple     = "ASSAULT - SIMPLE"
	AssaultAggravated = "ASSAULT - AGGRAVATED"
	AssaultCombined   = "ASSAULT (SIMPLE & AGGRAVATED)"
)

// DistrictCount：单个辖区的计数
// 约束：Count >= 1；结果序列中 District 不重复
type DistrictCount struct {
	District string `json:"district"`
	Count    int    `json:"count"`
}

// Summary：一次聚合的行数统计
type Summary struct {
	Rows      int `json:"rows"`
	Kept      int `json:"kept"`
	Dropped   int `json:"dropped"`
	Districts int `json:"districts"`
}

// Tally：丢弃辖区为空或缺失的记录后按辖区计数
// 约束：不做 trim，" " 视为有效辖区
func Tally(records []incident.Record) map[string]int {
	m := make(map[string]int)
	for _, r := range records {
		if !r.HasDistrict || r.District == "" {
			continue
		}
		m[r.District]++
	}
	return m
}

// Districts：聚合入口
// 背景：计数 → 转为序列（首次出现顺序）→ 伤害罪标签合并 → 按数量稳定降序
// 约束：合并规则比较的是辖区字段本身，真实辖区代码永远不会命中；保持该行为不变
func Districts(records []incident.Record) []DistrictCount {
	out, _ := Run(records)
	return out
}

// Run：同 Districts，附带行数统计
func Run(records []incident.Record) ([]DistrictCount, Summary) {
	var sum Summary
	sum.Rows = len(records)
	pos := make(map[string]int)
	var out []DistrictCount
	for _, r := range records {
		if !r.HasDistrict || r.District == "" {
			sum.Dropped++
			continue
		}
		sum.Kept++
		if i, ok := pos[r.District]; ok {
			out[i].Count++
			continue
		}
		pos[r.District] = len(out)
		out = append(out, DistrictCount{District: r.District, Count: 1})
	}
	out = mergeAssault(out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	sum.Districts = len(out)
	return out, sum
}

// mergeAssault：将两类伤害罪标签改名为合并标签
// 约束：多条命中（含已是合并标签的条目）时折叠为一条，计数相加，保留先出现者的位置
func mergeAssault(in []DistrictCount) []DistrictCount {
	out := in[:0]
	merged := -1
	for _, d := range in {
		if d.District == AssaultSimple || d.District == AssaultAggravated || d.District == AssaultCombined {
			if merged >= 0 {
				out[merged].Count += d.Count
				continue
			}
			d.District = AssaultCombined
			merged = len(out)
		}
		out = append(out, d)
	}
	return out
}
