package chart

import "io"

// 悬停：黑色描边并在指针处显示提示；移出：恢复填充与描边并隐藏提示；点击：1 秒内渐变为红色
const pageScript = `<script>
(function () {
  var tip = document.querySelector('.tooltip');
  document.querySelectorAll('rect.bar').forEach(function (bar) {
    bar.addEventListener('mouseover', function (ev) {
      bar.setAttribute('stroke', 'black');
      bar.setAttribute('stroke-width', '2');
      tip.textContent = bar.getAttribute('data-tooltip');
      tip.style.display = 'block';
      tip.style.left = ev.pageX + 'px';
      tip.style.top = ev.pageY + 'px';
    });
    bar.addEventListener('mouseout', function () {
      if (!bar.dataset.fading) {
        bar.style.transition = '';
        bar.style.fill = '';
      }
      bar.setAttribute('stroke', 'none');
      tip.style.display = 'none';
    });
    bar.addEventListener('click', function () {
      bar.dataset.fading = '1';
      bar.style.transition = 'fill 1000ms';
      bar.style.fill = 'red';
      setTimeout(function () { delete bar.dataset.fading; }, 1000);
    });
  });
})();
</script>
`

const tooltipStyle = `position: absolute; padding: 20px; background-color: white; color: black; border-radius: 5px; display: none; font-family: Arial;`

// WriteHTML：输出完整页面（内联 SVG + 提示框 + 交互脚本）
func WriteHTML(w io.Writer, l Layout) error {
	e := &ew{w: w}
	e.printf("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", esc(l.Opts.Title))
	writeSVG(e, l, false)
	e.printf(`<div class="tooltip" style="%s"></div>`+"\n", tooltipStyle)
	e.printf("%s", pageScript)
	e.printf("</body>\n</html>\n")
	return e.err
}
