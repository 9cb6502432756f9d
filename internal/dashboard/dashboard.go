// Package dashboard renders a live terminal view of a repetition run.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/repeater/internal/metrics"
	"github.com/torosent/repeater/internal/output"
)

// RunInfo describes the run being displayed.
type RunInfo struct {
	RunID          string
	Request        string // request path in the collection
	Target         string // resolved method and URL of the base request
	Mode           string
	Environment    string
	Planned        int
	MaxConcurrency int
	Delay          time.Duration
}

// Dashboard renders run progress, latency and outcomes.
type Dashboard struct {
	collector    *metrics.Collector
	info         RunInfo
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	latest output.RunStatistics

	grid           *ui.Grid
	summaryPara    *widgets.Paragraph
	progressGauge  *widgets.Gauge
	countsPara     *widgets.Paragraph
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	outcomeList    *widgets.List
	failureList    *widgets.List
}

// New initialises the terminal. shutdownFunc is called when the user presses
// q or Ctrl-C; it should cancel the run.
func New(collector *metrics.Collector, info RunInfo, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		collector:    collector,
		info:         info,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		latest:       output.RunStatistics{Total: info.Planned},
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run"
	d.summaryPara.Text = formatRunInfo(d.info)
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Progress"
	d.progressGauge.BarColor = ui.ColorBlue
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan
	d.progressGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.countsPara = widgets.NewParagraph()
	d.countsPara.Title = "Iterations"
	d.countsPara.Text = "Waiting for results..."
	d.countsPara.BorderStyle.Fg = ui.ColorCyan

	sparkline := widgets.NewSparkline()
	sparkline.Title = "Latency (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}
	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Recent Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = formatLatency(metrics.Stats{})
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.outcomeList = widgets.NewList()
	d.outcomeList.Title = "Outcomes"
	d.outcomeList.Rows = []string{"Awaiting data"}
	d.outcomeList.BorderStyle.Fg = ui.ColorCyan

	d.failureList = widgets.NewList()
	d.failureList.Title = "Failures"
	d.failureList.Rows = []string{"[No failures](fg:green)"}
	d.failureList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.failureList.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.2,
			ui.NewCol(0.5, d.progressGauge),
			ui.NewCol(0.5, d.countsPara),
		),
		ui.NewRow(0.32,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.32,
			ui.NewCol(0.5, d.outcomeList),
			ui.NewCol(0.5, d.failureList),
		),
	)
}

// Update records the latest run statistics. Wire it to
// output.ObserverOptions.OnUpdate.
func (d *Dashboard) Update(stats output.RunStatistics) {
	d.mu.Lock()
	d.latest = stats
	d.mu.Unlock()
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop draws the final state, stops the loop and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	d.refresh()
	d.render()
	ui.Close()
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			return
		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.mu.Lock()
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				d.mu.Unlock()
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.refresh()
			d.render()
		}
	}
}

// refresh copies collector and observer state into the widgets.
func (d *Dashboard) refresh() {
	d.mu.Lock()
	defer d.mu.Unlock()

	run := d.latest
	stats := d.collector.Stats(run.Elapsed)

	d.progressGauge.Percent = progressPercent(run)
	d.progressGauge.Label = formatProgressLabel(run)
	d.countsPara.Text = formatCounts(run)

	if recent := d.collector.RecentLatencies(); len(recent) > 0 {
		d.latencySparkle.Sparklines[0].Data = recent
		last := recent[len(recent)-1]
		d.latencySparkle.Title = fmt.Sprintf("Recent Latency | Last: %.2fms | Max: %.2fms", last, stats.MaxLatencyMs)
	}
	d.latencyPara.Text = formatLatency(stats)
	d.outcomeList.Rows = formatOutcomeRows(stats.StatusBuckets)
	d.failureList.Rows = formatFailureRows(d.collector.FailureKinds(), stats.Errors)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func formatRunInfo(info RunInfo) string {
	env := info.Environment
	if env == "" {
		env = "none"
	}
	parts := []string{
		fmt.Sprintf("Mode: %s", info.Mode),
		fmt.Sprintf("Planned: %d", info.Planned),
		fmt.Sprintf("Concurrency: %d", info.MaxConcurrency),
	}
	if info.Delay > 0 {
		parts = append(parts, fmt.Sprintf("Delay: %s", info.Delay))
	}
	parts = append(parts, fmt.Sprintf("Environment: %s", env))
	return fmt.Sprintf("Request: %s\nTarget: %s\n%s\nRun: %s",
		info.Request, info.Target, strings.Join(parts, " | "), info.RunID)
}

func progressPercent(run output.RunStatistics) int {
	if run.Total <= 0 {
		if run.Final {
			return 100
		}
		return 0
	}
	pct := run.Completed * 100 / run.Total
	if pct > 100 {
		pct = 100
	}
	return pct
}

func formatProgressLabel(run output.RunStatistics) string {
	label := fmt.Sprintf("%d / %d", run.Completed, run.Total)
	switch {
	case run.Final:
		label += " | done in " + run.Elapsed.Round(time.Millisecond).String()
	case run.EstimatedRemaining > 0:
		label += " | ETA " + run.EstimatedRemaining.Round(time.Second).String()
	}
	return label
}

func formatCounts(run output.RunStatistics) string {
	return fmt.Sprintf(
		"Dispatched:  %d\nCompleted:   %d\nSuccessful:  %d\nFailed:      %d\nCancelled:   %d\nElapsed:     %s",
		run.Dispatched,
		run.Completed,
		run.Successful,
		run.Failed,
		run.Cancelled,
		run.Elapsed.Round(time.Second),
	)
}

func formatLatency(stats metrics.Stats) string {
	return fmt.Sprintf(
		"Min:  %.2fms\nMean: %.2fms\nP50:  %.2fms\nP90:  %.2fms\nP95:  %.2fms\nP99:  %.2fms",
		stats.MinLatencyMs,
		stats.MeanLatencyMs,
		stats.P50LatencyMs,
		stats.P90LatencyMs,
		stats.P95LatencyMs,
		stats.P99LatencyMs,
	)
}

func formatOutcomeRows(buckets map[string]map[string]int) []string {
	rows := metrics.FlattenStatusBuckets(buckets)
	if len(rows) == 0 {
		return []string{"Awaiting data"}
	}
	if len(rows) > 10 {
		rows = rows[:10]
	}
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		color := "red"
		if row.Successful() {
			color = "green"
		}
		formatted = append(formatted, fmt.Sprintf("[%s %s](fg:%s) %d", strings.ToUpper(row.Protocol), row.Code, color, row.Count))
	}
	return formatted
}

func formatFailureRows(kinds []string, counts map[string]int) []string {
	if len(kinds) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	if len(kinds) > 10 {
		kinds = kinds[:10]
	}
	rows := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		rows = append(rows, fmt.Sprintf("%s x%d", kind, counts[kind]))
	}
	return rows
}
