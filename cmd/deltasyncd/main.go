// Command deltasyncd is a thin operational harness around the
// delta-transfer core: a "plan" subcommand that runs one planning call
// against a checksum blob already saved to disk and a set of candidate
// files, and a "serve" subcommand that starts the background services
// (traffic-shaper ticker, api-pool reaper) under a supervisor, the way
// a full sync client would host them alongside its own sync engine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/thejerf/suture/v4"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/deltasync/deltasync/internal/config"
	"github.com/deltasync/deltasync/internal/logger"
	"github.com/deltasync/deltasync/lib/apipool"
	"github.com/deltasync/deltasync/lib/blockmatch"
	"github.com/deltasync/deltasync/lib/checksum"
	"github.com/deltasync/deltasync/lib/rangeplan"
	"github.com/deltasync/deltasync/lib/shaper"
)

var l = logger.New("deltasyncd")

type planCmd struct {
	Checksum   string   `arg:"" help:"Path to a saved checksum blob (header + block table)."`
	FileSize   uint64   `arg:"" help:"The remote file's size, as reported by its metadata."`
	Candidates []string `arg:"" optional:"" help:"Local candidate files to scan, in priority order."`
}

func (c *planCmd) Run(cli *CLI) error {
	f, err := os.Open(c.Checksum)
	if err != nil {
		return fmt.Errorf("open checksum blob: %w", err)
	}
	defer f.Close()

	hdr, err := checksum.DecodeHeader(f)
	if err != nil {
		return fmt.Errorf("decode checksum header: %w", err)
	}
	table, err := checksum.DecodeTable(f, hdr)
	if err != nil {
		return fmt.Errorf("decode checksum table: %w", err)
	}

	var ranges []rangeplan.Range
	if len(c.Candidates) == 0 || table.FileSize != c.FileSize {
		ranges = rangeplan.FullTransfer(c.FileSize)
	} else {
		hash := checksum.NewHash(table)
		actions := blockmatch.NewActions(len(table.Blocks))
		for src, path := range c.Candidates {
			if err := blockmatch.Scan(path, table, hash, actions, uint32(src)); err != nil {
				return fmt.Errorf("scan candidate %s: %w", path, err)
			}
		}
		ranges = rangeplan.Build(actions, c.Candidates, c.FileSize, table.BlockSize)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(ranges)
}

type serveCmd struct{}

func (c *serveCmd) Run(cli *CLI) error {
	settings, err := config.Load(cli.Config)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load config: %w", err)
	}
	if err := l.SetRavenDSN(settings.SentryDSN); err != nil {
		l.Warnln("raven DSN rejected:", err)
	}

	registry := prometheus.NewRegistry()
	dlGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deltasync_download_speed_bytes", Help: "Current download throughput average.",
	})
	ulGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deltasync_upload_speed_bytes", Help: "Current upload throughput average.",
	})
	registry.MustRegister(dlGauge, ulGauge)

	dlAccountant := shaper.NewAccountant(shaper.WithGauge(dlGauge))
	ulAccountant := shaper.NewAccountant(shaper.WithGauge(ulGauge))

	pool, err := apipool.New(apipool.Config{
		Factory: func(ctx context.Context) (apipool.Handle, error) {
			return nil, fmt.Errorf("deltasyncd: no transport configured for this harness")
		},
		Destroy:     func(apipool.Handle) {},
		MaxIdle:     settings.APIPool.MaxIdle,
		MaxActive:   settings.APIPool.MaxActive,
		MaxIdleSecs: settings.APIPool.MaxIdleSecs,
		TLSMode:     func() bool { return settings.UseSSL },
		Registerer:  registry,
	})
	if err != nil {
		return fmt.Errorf("build api pool: %w", err)
	}

	sup := suture.NewSimple("deltasyncd")
	sup.Add(&shaper.Ticker{Accountant: dlAccountant, Interval: time.Second})
	sup.Add(&shaper.Ticker{Accountant: ulAccountant, Interval: time.Second})
	sup.Add(&apipool.Reaper{Pool: pool, Interval: 10 * time.Second})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l.Infoln("deltasyncd running; ctrl-c to stop")
	return sup.Serve(ctx)
}

// CLI is the top-level command tree parsed by kong.
type CLI struct {
	Config string   `help:"Path to a YAML settings file." default:"deltasyncd.yaml"`
	Plan   planCmd  `cmd:"" help:"Produce a range plan from a saved checksum blob and candidate files."`
	Serve  serveCmd `cmd:"" help:"Run deltasyncd's background services (shaper tickers, api-pool reaper)."`
}

func main() {
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		l.Debugf(format, args...)
	}))
	defer undo()
	if err != nil {
		l.Warnln("automaxprocs:", err)
	}

	var cli CLI
	ctx := kong.Parse(&cli, kong.Name("deltasyncd"),
		kong.Description("Delta-transfer core operational harness."))
	if err := ctx.Run(&cli); err != nil {
		l.Warnln("fatal:", err)
		os.Exit(1)
	}
}
