package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/nugget/mould/internal/config"
	"github.com/nugget/mould/internal/interaction"
	"github.com/nugget/mould/internal/mould"
	"github.com/nugget/mould/internal/obs"
	"github.com/nugget/mould/internal/wsdial"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

// callCmd implements the "call" subcommand: dial the configured
// endpoint, run exactly one interaction, and print the items collected
// along the way as a JSON array.
type callCmd struct {
	Endpoint string `long:"endpoint" short:"e" description:"ws:// or wss:// server URL (overrides config)"`
	Service  string `long:"service" short:"s" description:"service name (overrides config default)"`
	Action   string `long:"action" short:"a" description:"action name (overrides config default)"`
	Payload  string `long:"payload" short:"p" default:"{}" description:"JSON object sent as the request payload"`
	Metrics  bool   `long:"metrics" description:"serve Prometheus metrics on metrics.address:port while this call runs"`
	Verbose  bool   `long:"verbose" short:"v" description:"print progress as the interaction streams"`

	global *globalOpts
	logger *slog.Logger
}

// foldCollect is the CLI's fold: the CLI is indifferent to item shape,
// so it simply collects the raw JSON of each Item it receives.
func foldCollect(_ context.Context, acc []json.RawMessage, item json.RawMessage) ([]json.RawMessage, *struct{}, error) {
	return append(acc, item), nil, nil
}

func (c *callCmd) Execute(_ []string) error {
	cfg, err := loadConfig(c.global.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if c.Endpoint != "" {
		cfg.Endpoint.URL = c.Endpoint
	}
	if c.Service != "" {
		cfg.Defaults.Service = c.Service
	}
	if c.Action != "" {
		cfg.Defaults.Action = c.Action
	}
	if !cfg.Endpoint.Configured() {
		return fmt.Errorf("no endpoint configured: pass --endpoint or set endpoint.url in the config file")
	}
	if c.Metrics {
		cfg.Metrics.Enabled = true
	}

	logger := c.logger
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(c.Payload), &payload); err != nil {
		return fmt.Errorf("parse --payload: %w", err)
	}
	requestID, err := uuid.NewV7()
	if err != nil {
		// Fallback: use current time hex if UUID generation fails.
		payload["request_id"] = fmt.Sprintf("r_%08x", time.Now().UnixMilli()&0xFFFFFFFF)
	} else {
		payload["request_id"] = requestID.String()
	}

	dialOpts := []wsdial.Option{wsdial.WithLogger(logger)}
	if cfg.Endpoint.HandshakeTimeoutSec > 0 {
		dialOpts = append(dialOpts, wsdial.WithHandshakeTimeout(time.Duration(cfg.Endpoint.HandshakeTimeoutSec)*time.Second))
	}
	if cfg.Endpoint.InsecureSkipVerify {
		dialOpts = append(dialOpts, wsdial.WithTLSInsecureSkipVerify())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Defaults.RequestTimeoutSec)*time.Second)
	defer cancel()

	tr, err := wsdial.Dial(ctx, cfg.Endpoint.URL, dialOpts...)
	if err != nil {
		return fmt.Errorf("dial %s: %w", cfg.Endpoint.URL, err)
	}
	defer tr.Close()

	if cfg.Metrics.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Metrics.Address, cfg.Metrics.Port)
		shutdown := obs.ServeMetricsServer(addr, logger)
		logger.Info("metrics server listening", "address", addr)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			shutdown(shutdownCtx)
		}()
	}

	var bus *obs.Bus
	if c.Verbose {
		bus = obs.NewBus()
		progress := bus.Subscribe(32)
		go printProgress(progress)
		defer bus.Unsubscribe(progress)
	}

	var recorder interaction.Recorder
	switch {
	case cfg.Metrics.Enabled && c.Verbose:
		recorder = obs.NewMultiRecorder(obs.NewMetricsRecorder(), obs.NewBusRecorder(bus))
	case cfg.Metrics.Enabled:
		recorder = obs.NewMultiRecorder(obs.NewMetricsRecorder())
	case c.Verbose:
		recorder = obs.NewMultiRecorder(obs.NewBusRecorder(bus))
	}

	req := mould.InteractionRequest{
		Service: cfg.Defaults.Service,
		Action:  cfg.Defaults.Action,
		Payload: payload,
	}

	driverOpts := []interaction.Option[[]json.RawMessage, json.RawMessage, struct{}]{
		interaction.WithLogger[[]json.RawMessage, json.RawMessage, struct{}](logger),
	}
	if recorder != nil {
		driverOpts = append(driverOpts, interaction.WithRecorder[[]json.RawMessage, json.RawMessage, struct{}](recorder))
	}

	driver := interaction.NewDriver(tr, req, foldCollect, driverOpts...)
	items, _, err := driver.Run(ctx, []json.RawMessage{})
	if err != nil {
		printOutcome(err)
		return err
	}

	fmt.Println(green("done"))
	out, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// printProgress prints one line per bus event to stderr until the
// channel closes (on Unsubscribe), giving --verbose callers a live view
// of the request/ready/item/reply handshake as it streams.
func printProgress(events <-chan obs.Event) {
	for ev := range events {
		switch ev.Kind {
		case obs.KindRequestSent:
			fmt.Fprintln(os.Stderr, faint(fmt.Sprintf("-> request %s.%s", ev.Data["service"], ev.Data["action"])))
		case obs.KindItemReceived:
			fmt.Fprintln(os.Stderr, faint("<- item"))
		case obs.KindReplySent:
			fmt.Fprintln(os.Stderr, faint("-> reply"))
		case obs.KindFinished:
			fmt.Fprintln(os.Stderr, faint(fmt.Sprintf("== finished (%s)", ev.Data["outcome"])))
		}
	}
}

// printOutcome renders a terminal interaction error with state-colored
// output: yellow for a server rejection, red for everything else.
func printOutcome(err error) {
	kind, ok := mould.KindOf(err)
	if ok && kind == mould.ActionRejected {
		fmt.Println(yellow("reject"), err)
		return
	}
	fmt.Println(red("fail"), err)
}
