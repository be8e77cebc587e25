package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valentinpelus/voiceboard/internal/app"
	"github.com/valentinpelus/voiceboard/internal/config"
	"github.com/valentinpelus/voiceboard/internal/logger"
	"github.com/valentinpelus/voiceboard/pkg/csvimport"
	"github.com/valentinpelus/voiceboard/pkg/llm"
	"github.com/valentinpelus/voiceboard/pkg/types"
)

// Globals are flags shared by every command
type Globals struct {
	EnvFile string `help:"Load environment variables from this file first." default:".env" type:"path" name:"env-file"`
	Debug   bool   `help:"Enable debug logging."`
}

func (g *Globals) setup() (*config.Config, error) {
	if err := config.LoadEnvFile(g.EnvFile); err != nil {
		return nil, err
	}
	cfg := config.LoadConfig()
	if err := logger.Init(logger.Config{
		Debug: g.Debug,
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
		JSON:  cfg.LogJSON,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

type ServeCmd struct {
	Port string `help:"Override the PORT setting." short:"p"`
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := g.setup()
	if err != nil {
		return err
	}
	if c.Port != "" {
		cfg.Port = c.Port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	application.LogStartupInfo()

	return application.Run(ctx)
}

type PreviewCmd struct {
	File   string `arg:"" help:"CSV file to analyze." type:"existingfile"`
	JSON   bool   `help:"Print the preview as JSON."`
	Output string `help:"Write the normalized records as CSV to this path." short:"o" type:"path"`
}

func (c *PreviewCmd) Run(g *Globals) error {
	if _, err := g.setup(); err != nil {
		return err
	}

	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := csvimport.Parse(f, time.Now())
	if err != nil {
		return fmt.Errorf("failed to analyze %s: %w", c.File, err)
	}
	preview := csvimport.Summarize(records)

	if c.Output != "" {
		if err := writeExport(c.Output, records); err != nil {
			return err
		}
		logger.Info("Wrote normalized records", "path", c.Output, "records", len(records))
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(preview)
	}

	fmt.Printf("%s: %d条记录\n", c.File, preview.Total)
	for _, b := range preview.Categories {
		fmt.Printf("  %-8s %d\n", b.Key, b.Count)
	}
	for _, line := range preview.Insights {
		fmt.Println("•", line)
	}
	return nil
}

func writeExport(path string, records []types.Feedback) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := csvimport.Export(out, records); err != nil {
		out.Close()
		return fmt.Errorf("failed to export: %w", err)
	}
	return out.Close()
}

type PingCmd struct {
	Timeout time.Duration `help:"Give up after this long." default:"30s"`
}

func (c *PingCmd) Run(g *Globals) error {
	cfg, err := g.setup()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	provider, err := llm.NewFactory(cfg.LLMConfig()).CreateProvider(ctx)
	if err != nil {
		return err
	}
	if err := llm.Ping(ctx, provider); err != nil {
		return fmt.Errorf("%s is not reachable: %w", provider.Name(), err)
	}
	fmt.Printf("%s: ok\n", provider.Name())
	return nil
}
