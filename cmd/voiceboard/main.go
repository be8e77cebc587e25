package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var version = "dev"

var CLI struct {
	Globals

	Version kong.VersionFlag `help:"Print version and exit."`

	Serve   ServeCmd   `cmd:"" help:"Run the dashboard API server." default:"1"`
	Preview PreviewCmd `cmd:"" help:"Analyze a CSV export without importing it."`
	Ping    PingCmd    `cmd:"" help:"Check connectivity to the configured assistant provider."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("voiceboard"),
		kong.Description("Customer feedback triage dashboard backend"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	if err := ctx.Run(&CLI.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
