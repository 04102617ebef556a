package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agenthands/papergraph/internal/bootstrap"
	"github.com/agenthands/papergraph/internal/core"
)

type app struct {
	configPath string
	out        io.Writer
	// open is replaced in tests.
	open func(ctx context.Context, configPath string) (*core.PaperGraph, error)
}

func openGraph(ctx context.Context, configPath string) (*core.PaperGraph, error) {
	cfg, err := bootstrap.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return bootstrap.NewGraph(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	return newApp(os.Stdout, openGraph).rootCmd()
}

func newApp(out io.Writer, open func(context.Context, string) (*core.PaperGraph, error)) *app {
	return &app{out: out, open: open}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "papergraph",
		Short:        "Build and query a knowledge graph of academic papers",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", envOr("CONFIG_PATH", "config/config.toml"), "path to the TOML config file")
	root.SetOut(a.out)

	root.AddCommand(a.ingestCmd(), a.linkCmd(), a.queryCmd(), a.visualizeCmd())
	return root
}

// withGraph opens the graph for one command and closes it afterwards.
func (a *app) withGraph(cmd *cobra.Command, fn func(ctx context.Context, g *core.PaperGraph) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	g, err := a.open(ctx, a.configPath)
	if err != nil {
		return err
	}
	defer g.Close()
	return fn(ctx, g)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// writeJSON writes v to path, or to the command output when path is empty.
func (a *app) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		_, err = a.out.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	a.printf("Results written to %s\n", path)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
