package chart

import (
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

var (
	e10 = math.Sqrt(50)
	e5  = math.Sqrt(10)
	e2  = math.Sqrt(2)
)

// Linear：连续线性比例尺，domain → range
type Linear struct {
	D0, D1 float64
	R0, R1 float64
}

// Scale：定义域退化（D0 == D1）时返回值域中点
func (s Linear) Scale(v float64) float64 {
	d := s.D1 - s.D0
	if d == 0 {
		return (s.R0 + s.R1) / 2
	}
	return s.R0 + (v-s.D0)/d*(s.R1-s.R0)
}

// Ticks：在定义域内取约 count 个 1/2/5×10^n 对齐的刻度
func (s Linear) Ticks(count int) []float64 {
	lo, hi := s.D0, s.D1
	if hi < lo {
		lo, hi = hi, lo
	}
	return ticks(lo, hi, float64(count))
}

// TickStep：与 Ticks 相同参数下的刻度间距
func (s Linear) TickStep(count int) float64 {
	lo, hi := s.D0, s.D1
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo || count <= 0 {
		return 0
	}
	_, _, inc := tickSpec(lo, hi, float64(count))
	if inc < 0 {
		return 1 / -inc
	}
	return inc
}

func tickSpec(start, stop, count float64) (i1, i2, inc float64) {
	step := (stop - start) / math.Max(0, count)
	power := math.Floor(math.Log10(step))
	e := step / math.Pow(10, power)
	factor := 1.0
	switch {
	case e >= e10:
		factor = 10
	case e >= e5:
		factor = 5
	case e >= e2:
		factor = 2
	}
	if power < 0 {
		inc = math.Pow(10, -power) / factor
		i1 = math.Round(start * inc)
		i2 = math.Round(stop * inc)
		if i1/inc < start {
			i1++
		}
		if i2/inc > stop {
			i2--
		}
		inc = -inc
	} else {
		inc = math.Pow(10, power) * factor
		i1 = math.Round(start / inc)
		i2 = math.Round(stop / inc)
		if i1*inc < start {
			i1++
		}
		if i2*inc > stop {
			i2--
		}
	}
	if i2 < i1 && 0.5 <= count && count < 2 {
		return tickSpec(start, stop, count*2)
	}
	return i1, i2, inc
}

func ticks(start, stop, count float64) []float64 {
	if !(count > 0) {
		return nil
	}
	if start == stop {
		return []float64{start}
	}
	i1, i2, inc := tickSpec(start, stop, count)
	if !(i2 >= i1) {
		return nil
	}
	n := int(i2-i1) + 1
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if inc < 0 {
			out[i] = (i1 + float64(i)) / -inc
		} else {
			out[i] = (i1 + float64(i)) * inc
		}
	}
	return out
}

// tickPrecision：刻度间距所需的小数位数
func tickPrecision(step float64) int {
	if step <= 0 {
		return 0
	}
	p := -int(math.Floor(math.Log10(math.Abs(step))))
	if p < 0 {
		return 0
	}
	return p
}

// formatTick：千分位分组并保留 prec 位小数
func formatTick(v float64, prec int) string {
	if prec <= 0 {
		return humanize.Comma(int64(math.Round(v)))
	}
	s := strconv.FormatFloat(v, 'f', prec, 64)
	ip, frac, _ := strings.Cut(s, ".")
	n, err := strconv.ParseInt(ip, 10, 64)
	if err != nil {
		return s
	}
	return humanize.Comma(n) + "." + frac
}

// Band：离散带状比例尺，等宽分配值域并在两端与带间留白
// 约束：padding 同时作用于带间与两端，居中对齐
type Band struct {
	index     map[string]int
	start     float64
	step      float64
	bandwidth float64
}

func NewBand(domain []string, r0, r1, padding float64) Band {
	b := Band{index: make(map[string]int, len(domain))}
	for _, d := range domain {
		if _, ok := b.index[d]; !ok {
			b.index[d] = len(b.index)
		}
	}
	n := float64(len(b.index))
	b.step = (r1 - r0) / math.Max(1, n-padding+padding*2)
	b.start = r0 + (r1-r0-b.step*(n-padding))*0.5
	b.bandwidth = b.step * (1 - padding)
	return b
}

// Scale：未知取值返回 ok=false
func (b Band) Scale(d string) (float64, bool) {
	i, ok := b.index[d]
	if !ok {
		return 0, false
	}
	return b.start + b.step*float64(i), true
}

func (b Band) Bandwidth() float64 { return b.bandwidth }

func (b Band) Step() float64 { return b.step }
