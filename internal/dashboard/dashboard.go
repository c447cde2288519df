// Package dashboard renders a live terminal view of a benchmark run.
package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/tzervas/context-mcp/internal/metrics"
)

// RunConfig holds run parameters shown in the summary panel.
type RunConfig struct {
	ServerCommand string
	ServerName    string
	StressOps     int
	Workers       int
	Rate          int
	ConfigFile    string
}

// Dashboard renders a live terminal UI for benchmark metrics.
type Dashboard struct {
	collector    *metrics.Collector
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	opsList        *widgets.List
	summaryPara    *widgets.Paragraph
	latencyHistory []float64
	startTime      time.Time
	runConfig      RunConfig
}

// New creates a new Dashboard. The shutdownFunc runs when the user quits from
// the dashboard.
func New(collector *metrics.Collector, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		collector:      collector,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, 100),
		startTime:      time.Now(),
		runConfig:      cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "p50 (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Live Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Snapshot"
	d.latencyPara.Text = "p50: 0ms\np99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.opsList = widgets.NewList()
	d.opsList.Title = "Operations"
	d.opsList.Rows = []string{"Awaiting data"}
	d.opsList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.opsList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Benchmark Run"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.2,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.3,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.5,
			ui.NewCol(1.0, d.opsList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
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
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Do not return here; wait for Stop() to cancel context
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes widget data from the collector.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := d.collector.Live()
	p50Ms := float64(snap.P50.Microseconds()) / 1000.0
	p99Ms := float64(snap.P99.Microseconds()) / 1000.0

	if snap.Total > 0 {
		d.latencyHistory = append(d.latencyHistory, p50Ms)
		if len(d.latencyHistory) > 100 {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf("Live Latency | p50 %.2fms | p99 %.2fms", p50Ms, p99Ms)
	}

	d.latencyPara.Text = fmt.Sprintf("p50: %.2fms\np99: %.2fms", p50Ms, p99Ms)

	d.summaryPara.Text = fmt.Sprintf(
		"Server: %s\n%s\nElapsed: %s | Ops: %d | Rate: %.1f ops/sec",
		d.serverLabel(),
		d.formatRunParams(),
		snap.Elapsed.Round(time.Second),
		snap.Total,
		snap.OpsPerSec,
	)

	rows := make([]string, 0)
	for _, summary := range d.collector.Summaries() {
		rows = append(rows, fmt.Sprintf(
			"%-16s n=%-5d mean %7.2fms  p95 %7.2fms  max %7.2fms",
			summary.Label, summary.Count, summary.MeanMs, summary.P95Ms, summary.MaxMs,
		))
	}
	if len(rows) == 0 {
		rows = []string{"Awaiting data"}
	}
	d.opsList.Rows = rows
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()
	ui.Render(d.grid)
}

func (d *Dashboard) serverLabel() string {
	if d.runConfig.ServerName != "" {
		return fmt.Sprintf("%s (%s)", d.runConfig.ServerName, d.runConfig.ServerCommand)
	}
	return d.runConfig.ServerCommand
}

func (d *Dashboard) formatRunParams() string {
	params := fmt.Sprintf("Stress: %d ops x2 | Workers: %d", d.runConfig.StressOps, d.runConfig.Workers)
	if d.runConfig.Rate > 0 {
		params += fmt.Sprintf(" | Rate: %d ops/sec", d.runConfig.Rate)
	}
	if d.runConfig.ConfigFile != "" {
		params += fmt.Sprintf(" | Config: %s", d.runConfig.ConfigFile)
	}
	return params
}
