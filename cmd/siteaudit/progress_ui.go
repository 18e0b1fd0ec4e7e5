package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/siteaudit/internal/app/audit"
	"github.com/John-Robertt/siteaudit/internal/config"
)

var _ audit.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的简洁进度输出。
//
// 所有过程信息写 stderr，不污染 stdout 的摘要/JSON；长时间没有阶段完成时定期输出一行 keepalive。
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	phase       string
	filesTotal  int
	filesDone   int
	findings    int
	videosTotal int
	videosDone  int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] siteaudit audit\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  root: %s\n", eff.Root)
	if eff.ConfigFileUsed != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFileUsed)
	}
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  exclude: [%s]\n", strings.Join(eff.Exclude, ", "))
	if eff.Video.Skip {
		fmt.Fprintln(p.w, "  video: off")
	} else {
		fmt.Fprintf(p.w, "  video: on (concurrency=%d rate=%.1f/s max=%s)\n",
			eff.Video.Concurrency, eff.Video.RatePerSecond, formatLimit(eff.Video.MaxVideos))
	}
	fmt.Fprintln(p.w)

	p.phase = audit.PhaseCollect
	p.lastPrinted = time.Now()
	if !p.tickerStarted {
		p.startTickerLocked()
	}
}

// nextPhase 是某阶段完成后进入的阶段（keepalive 用）。
var nextPhase = map[string]string{
	audit.PhaseCollect: audit.PhaseAnalyze,
	audit.PhaseAnalyze: audit.PhaseResolve,
	audit.PhaseResolve: audit.PhaseOrphans,
	audit.PhaseOrphans: audit.PhaseVideos,
	audit.PhaseVideos:  audit.PhaseReport,
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.phase = nextPhase[name]
	took := formatShortDuration(dur)
	switch name {
	case audit.PhaseCollect:
		p.filesTotal = intField(fields, "files")
		fmt.Fprintf(p.w, "扫描: files=%d html=%d unreadable=%d (%s)\n",
			p.filesTotal, intField(fields, "html"), intField(fields, "unreadable"), took)
	case audit.PhaseAnalyze:
		fmt.Fprintf(p.w, "分析: files=%d refs=%d issues=%d (%s)\n",
			intField(fields, "analyzed"), intField(fields, "refs"), intField(fields, "issues"), took)
	case audit.PhaseResolve:
		fmt.Fprintf(p.w, "解析: referenced=%d broken=%d (%s)\n", intField(fields, "referenced"), intField(fields, "broken"), took)
	case audit.PhaseOrphans:
		fmt.Fprintf(p.w, "孤儿: orphans=%d (%s)\n", intField(fields, "orphans"), took)
	case audit.PhaseVideos:
		check, _ := fields["check"].(string)
		fmt.Fprintf(p.w, "视频: check=%s checked=%d skipped=%d issues=%d (%s)\n",
			check, intField(fields, "checked"), intField(fields, "skipped"), intField(fields, "issues"), took)
	case audit.PhaseReport:
		partial := ""
		if b, _ := fields["partial"].(bool); b {
			partial = " PARTIAL"
		}
		fmt.Fprintf(p.w, "完成: broken_links=%d json_broken_refs=%d lint_errors=%d%s elapsed=%s\n\n",
			intField(fields, "broken_links"), intField(fields, "json_broken_refs"), intField(fields, "lint_errors"),
			partial, formatElapsed(time.Since(p.startedAt)))
		p.stopTickerLocked()
	}

	p.lastPrinted = time.Now()
}

// OnFileDone 只维护计数；单个文件不单独打印（站点可能有上万个文件）。
func (p *progressUI) OnFileDone(idx, total int, rel string, findings int, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filesDone = idx
	p.filesTotal = total
	p.findings += findings
}

func (p *progressUI) OnVideoChecked(done, total int, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.videosDone = done
	p.videosTotal = total
}

// Stop 停止 keepalive（可重复调用）。
func (p *progressUI) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

// progressLineLocked 返回当前阶段的一行进度；没有可报告的内容时返回空串。
func (p *progressUI) progressLineLocked() string {
	elapsed := formatElapsed(time.Since(p.startedAt))
	switch p.phase {
	case audit.PhaseAnalyze:
		return fmt.Sprintf("进度: files=%d/%d findings=%d elapsed=%s", p.filesDone, p.filesTotal, p.findings, elapsed)
	case audit.PhaseVideos:
		return fmt.Sprintf("进度: videos=%d/%d elapsed=%s", p.videosDone, p.videosTotal, elapsed)
	case "":
		return ""
	default:
		return fmt.Sprintf("进度: phase=%s elapsed=%s", p.phase, elapsed)
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval, threshold, stop := p.tickerInterval, p.keepaliveThreshold, p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if time.Since(p.lastPrinted) > threshold {
					if line := p.progressLineLocked(); line != "" {
						fmt.Fprintln(p.w, line)
						p.lastPrinted = time.Now()
					}
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (p *progressUI) stopTickerLocked() {
	if !p.tickerStarted {
		return
	}
	close(p.stopCh)
	p.tickerStarted = false
}

func formatLimit(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", n)
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, sec/60%60, sec%60)
}

func intField(fields map[string]any, key string) int {
	n, _ := fields[key].(int)
	return n
}
