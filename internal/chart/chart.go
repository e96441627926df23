// 包 chart：把辖区计数绘制为水平条形图（SVG / 带交互的 HTML 页面）
package chart

import (
	"fmt"
	"html"
	"io"
	"strconv"

	"district-chart/internal/aggregate"
	"district-chart/internal/neighborhood"
)

// DefaultTitle：默认图表标题
const DefaultTitle = "Count Plot of the Frequency of Crime in Each Boston District"

// 坐标轴绘制常量：外刻度长度、刻度文字间距、像素对齐偏移
const (
	tickSizeOuter = 6
	tickPadding   = 3
	axisOffset    = 0.5
	barFill       = "steelblue"
)

// Margin：四边留白（像素）
type Margin struct {
	Top, Bottom, Left, Right float64
}

// Options：画布与坐标轴参数；零值字段使用默认值
type Options struct {
	Width  float64
	Height float64
	Margin Margin
	Title  string
	Ticks  int
}

// Defaults：800x600 绘图区，外加 150/50/50/50 边距，横轴 21 个刻度
func Defaults() Options {
	return Options{
		Width:  800,
		Height: 600,
		Margin: Margin{Top: 50, Bottom: 50, Left: 150, Right: 50},
		Title:  DefaultTitle,
		Ticks:  21,
	}
}

func (o Options) withDefaults() Options {
	d := Defaults()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.Margin == (Margin{}) {
		o.Margin = d.Margin
	}
	if o.Title == "" {
		o.Title = d.Title
	}
	if o.Ticks <= 0 {
		o.Ticks = d.Ticks
	}
	return o
}

// Bar：单根条形的几何与提示文字
type Bar struct {
	District string
	Label    string
	Tooltip  string
	Count    int
	X, Y     float64
	Width    float64
	Height   float64
}

// Tick：坐标轴刻度（Pos 为轴内坐标）
type Tick struct {
	Pos   float64
	Label string
}

// Layout：一次绘制所需的全部几何信息，与输出格式无关
type Layout struct {
	Opts   Options
	Bars   []Bar
	XTicks []Tick
	YTicks []Tick
	X      Linear
	Y      Band
}

// Tooltip：提示文字，如 "Roxbury: 3 crimes"
func Tooltip(name string, count int) string {
	return name + ": " + strconv.Itoa(count) + " crimes"
}

// Build：计算比例尺、刻度与条形位置
// 约束：横轴定义域为 [0, 最大计数]，最大计数不大于 0 时取 [0, 1]；条形起点为左边距 +1
func Build(counts []aggregate.DistrictCount, names neighborhood.Table, opts Options) Layout {
	o := opts.withDefaults()
	m := o.Margin
	maxCount := 0
	for _, c := range counts {
		if c.Count > maxCount {
			maxCount = c.Count
		}
	}
	hi := float64(maxCount)
	if hi <= 0 {
		hi = 1
	}
	x := Linear{D0: 0, D1: hi, R0: 0, R1: o.Width - m.Left - m.Right}
	domain := make([]string, len(counts))
	for i, c := range counts {
		domain[i] = c.District
	}
	y := NewBand(domain, m.Top, o.Height-m.Bottom, 0.5)

	l := Layout{Opts: o, X: x, Y: y}
	prec := tickPrecision(x.TickStep(o.Ticks))
	for _, v := range x.Ticks(o.Ticks) {
		l.XTicks = append(l.XTicks, Tick{Pos: x.Scale(v) + axisOffset, Label: formatTick(v, prec)})
	}
	seen := make(map[string]bool, len(counts))
	for _, c := range counts {
		yy, _ := y.Scale(c.District)
		name := names.Name(c.District)
		if !seen[c.District] {
			seen[c.District] = true
			l.YTicks = append(l.YTicks, Tick{Pos: yy + y.Bandwidth()/2, Label: name})
		}
		l.Bars = append(l.Bars, Bar{
			District: c.District,
			Label:    name,
			Tooltip:  Tooltip(name, c.Count),
			Count:    c.Count,
			X:        m.Left + 1,
			Y:        yy,
			Width:    x.Scale(float64(c.Count)),
			Height:   y.Bandwidth(),
		})
	}
	return l
}

// ew：累积首个写入错误，避免每次写入都判断
type ew struct {
	w   io.Writer
	err error
}

func (e *ew) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func esc(s string) string { return html.EscapeString(s) }

// WriteSVG：输出独立 SVG 文档，每根条形带 <title> 作为原生提示
func WriteSVG(w io.Writer, l Layout) error {
	e := &ew{w: w}
	writeSVG(e, l, true)
	return e.err
}

func writeSVG(e *ew, l Layout, titles bool) {
	o := l.Opts
	m := o.Margin
	innerW := o.Width - m.Left - m.Right
	innerH := o.Height - m.Top - m.Bottom
	e.printf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`+"\n",
		num(o.Width+m.Left+m.Right), num(o.Height+m.Top+m.Bottom), num(o.Width+m.Left+m.Right), num(o.Height+m.Top+m.Bottom))
	e.printf(`<text class="title" x="%s" y="%s" text-anchor="middle" style="font-size: 16px; font-family: Arial; font-weight: bold;">%s</text>`+"\n",
		num(innerW/2+m.Left), num(m.Top/2), esc(o.Title))

	// 横轴：网格线向上延伸至绘图区顶部，刻度文字旋转 -90°
	e.printf(`<g class="axis x-axis" transform="translate(%s,%s)" fill="none" font-size="10" font-family="sans-serif" text-anchor="middle">`+"\n",
		num(m.Left), num(o.Height-m.Bottom))
	e.printf(`<path class="domain" stroke="currentColor" d="M%s,%sV%sH%sV%s"></path>`+"\n",
		num(axisOffset), num(tickSizeOuter), num(axisOffset), num(innerW+axisOffset), num(tickSizeOuter))
	for _, t := range l.XTicks {
		e.printf(`<g class="tick" opacity="1" transform="translate(%s,0)"><line stroke="currentColor" y2="%s"></line><text fill="currentColor" y="%d" dy=".15em" dx="-.8em" transform="rotate(-90)" style="text-anchor: end;">%s</text></g>`+"\n",
			num(t.Pos), num(-innerH), tickPadding, esc(t.Label))
	}
	e.printf("</g>\n")

	e.printf(`<g class="axis y-axis" transform="translate(%s,0)" fill="none" font-size="10" font-family="sans-serif" text-anchor="end">`+"\n", num(m.Left))
	e.printf(`<path class="domain" stroke="currentColor" d="M%s,%sH%sV%sH%s"></path>`+"\n",
		num(-tickSizeOuter), num(m.Top+axisOffset), num(axisOffset), num(o.Height-m.Bottom+axisOffset), num(-tickSizeOuter))
	for _, t := range l.YTicks {
		e.printf(`<g class="tick" opacity="1" transform="translate(0,%s)"><line stroke="currentColor" x2="%s"></line><text fill="currentColor" x="%d" dy="0.32em">%s</text></g>`+"\n",
			num(t.Pos), num(innerW), -tickPadding, esc(t.Label))
	}
	e.printf("</g>\n")

	e.printf(`<text class="label x-label" x="%s" y="%s" text-anchor="middle" style="font-size: 14px; font-family: Arial; font-weight: bold;">Count</text>`+"\n",
		num(innerW/2+m.Left), num(25+o.Height))
	e.printf(`<text class="label y-label" transform="rotate(-90)" x="%s" y="%s" text-anchor="middle" style="font-size: 14px; font-family: Arial; font-weight: bold;">District</text>`+"\n",
		num(-o.Height/2), num(m.Left/2))

	for _, b := range l.Bars {
		e.printf(`<rect class="bar" x="%s" y="%s" width="%s" height="%s" fill="%s" data-district="%s" data-tooltip="%s">`,
			num(b.X), num(b.Y), num(b.Width), num(b.Height), barFill, esc(b.District), esc(b.Tooltip))
		if titles {
			e.printf(`<title>%s</title>`, esc(b.Tooltip))
		}
		e.printf("</rect>\n")
	}
	e.printf("</svg>\n")
}
