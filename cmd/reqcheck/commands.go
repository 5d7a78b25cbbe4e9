package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/reqcheck/internal/adapters/filewatcher"
	"github.com/0xcro3dile/reqcheck/internal/config"
	"github.com/0xcro3dile/reqcheck/internal/domain/checklist"
	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
	"github.com/0xcro3dile/reqcheck/internal/domain/ports"
	"github.com/0xcro3dile/reqcheck/internal/domain/report"
	httpserver "github.com/0xcro3dile/reqcheck/internal/infrastructure/http"
	"github.com/0xcro3dile/reqcheck/internal/infrastructure/tui"
	"github.com/0xcro3dile/reqcheck/internal/prompts"
)

// watchDebounce collapses the burst of write events a single save produces.
const watchDebounce = 750 * time.Millisecond

// reportIgnorePattern keeps watch from analyzing its own reports.
const reportIgnorePattern = "**/report_*.md"

func generateCmd(g *globals) *cobra.Command {
	var (
		output      string
		domain      string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a requirements checklist with the agent pipeline",
		Long: `Runs the methodology, aspect expert and compiler agents and writes the
resulting checklist. The file format follows the extension (.json, .yaml).
The checklist is also printed as markdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g.cfg.Merge(&config.Config{Pipeline: config.PipelineConfig{Domain: domain, Concurrency: concurrency}})
			app, err := NewApp(g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Generate(cmd.Context())
			if err != nil {
				return err
			}
			if err := checklist.Save(output, res.Checklist); err != nil {
				return err
			}
			g.logger.Info("Checklist written",
				"path", output,
				"aspects", len(res.Checklist),
				"questions", res.Checklist.QuestionCount(),
				"local_merge", res.LocalMerge)
			fmt.Fprint(cmd.OutOrStdout(), report.ChecklistMarkdown(res.Checklist, app.catalog.Labels()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "checklist.json", "Checklist output file (.json, .yaml)")
	cmd.Flags().StringVar(&domain, "domain", "", "Target industry, e.g. banking (overrides pipeline.domain)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Aspect experts run at once (overrides pipeline.concurrency)")
	return cmd
}

func analyzeCmd(g *globals) *cobra.Command {
	var (
		checklistPath string
		output        string
		uiMode        string
	)

	cmd := &cobra.Command{
		Use:   "analyze <document>",
		Short: "Answer a checklist against a document and write a markdown report",
		Long: `Indexes the document, answers every checklist question from the retrieved
fragments and renders the report. Without --checklist the default checklist
for the configured locale is used. Without --output the report goes to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			c, err := app.Checklist(checklistPath)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			progressOut := cmd.ErrOrStderr()
			decision, err := tui.ResolveMode(uiMode, progressOut)
			if err != nil {
				return err
			}
			if decision.Warning != "" {
				g.logger.Warn(decision.Warning)
			}

			progress := tui.PlainProgress(progressOut)
			var view *tui.Controller
			if decision.Live {
				view = tui.Start(progressOut, tui.Options{
					Title:       filepath.Base(args[0]),
					OnInterrupt: cancel,
				})
				progress = view.Progress
			}

			res, err := app.Analyze(ctx, args[0], c, progress)
			view.Close()
			view.Wait()
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), output, res.Markdown)
		},
	}

	cmd.Flags().StringVarP(&checklistPath, "checklist", "c", "", "Checklist file (.json, .yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Report output file (default stdout)")
	cmd.Flags().StringVar(&uiMode, "ui", "auto", "Progress display (auto, live, plain)")
	return cmd
}

func writeReport(stdout io.Writer, path, markdown string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(stdout, markdown)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(markdown), 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func checklistCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Inspect and convert checklist files",
	}

	var output string
	defaultCmd := &cobra.Command{
		Use:   "default",
		Short: "Write the default checklist for the configured locale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := checklist.FallbackFor(g.cfg.Locale)
			if output == "" {
				data, err := checklist.Encode(c, checklist.FormatJSON)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return checklist.Save(output, c)
		},
	}
	defaultCmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")

	validateCmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a checklist file and print it as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := checklist.Load(args[0])
			if err != nil {
				return err
			}
			catalog, err := prompts.New(g.cfg.Locale)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d aspects, %d questions\n", args[0], len(c), c.QuestionCount())
			fmt.Fprint(cmd.OutOrStdout(), report.ChecklistMarkdown(c, catalog.Labels()))
			return nil
		},
	}

	convertCmd := &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Convert a checklist between JSON and YAML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := checklist.Load(args[0])
			if err != nil {
				return err
			}
			return checklist.Save(args[1], c)
		},
	}

	cmd.AddCommand(defaultCmd, validateCmd, convertCmd)
	return cmd
}

func serveCmd(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g.cfg.Merge(&config.Config{Server: config.ServerConfig{Addr: addr}})
			app, err := NewApp(g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			server, err := newServer(app)
			if err != nil {
				return err
			}
			return server.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func newServer(app *App) (*httpserver.Server, error) {
	return httpserver.NewServer(httpserver.Services{
		Generator: app.generator,
		Indexer:   app.indexer,
		Answerer:  app.answerer,
		Loader:    app.loader,
		Catalog:   app.catalog,
	}, app.cfg.Server.Addr,
		httpserver.WithLogger(app.logger),
		httpserver.WithMetrics(app.metrics.Handler()),
		httpserver.WithHealthCheck("pdf_service", app.PDFHealthCheck),
	)
}

func watchCmd(g *globals) *cobra.Command {
	var (
		checklistPath string
		patterns      []string
		existing      bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Analyze documents as they appear in a directory",
		Long: `Watches a directory and analyzes every matching document that is created or
changed, writing report_<name>.md next to it. Reports are never analyzed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			info, err := os.Stat(dir)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("not a directory: %s", dir)
			}

			app, err := NewApp(g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			c, err := app.Checklist(checklistPath)
			if err != nil {
				return err
			}

			watcher, err := filewatcher.NewFSNotifyWatcher(patterns,
				filewatcher.WithIgnore(reportIgnorePattern),
				filewatcher.WithLogger(g.logger))
			if err != nil {
				return err
			}
			defer watcher.Stop()

			w := &inbox{app: app, checklist: c, logger: g.logger}
			if existing {
				if err := w.analyzeExisting(cmd.Context(), dir, watcher); err != nil {
					return err
				}
			}

			events, err := watcher.Watch(cmd.Context(), dir)
			if err != nil {
				return err
			}
			g.logger.Info("Watching for documents", "dir", dir, "patterns", patterns)
			w.run(cmd.Context(), events)
			return nil
		},
	}

	cmd.Flags().StringVarP(&checklistPath, "checklist", "c", "", "Checklist file (.json, .yaml)")
	cmd.Flags().StringSliceVar(&patterns, "pattern", filewatcher.DefaultPatterns, "Document patterns relative to the directory")
	cmd.Flags().BoolVar(&existing, "existing", false, "Analyze matching documents already in the directory first")
	return cmd
}

// inbox analyzes watched documents one at a time.
type inbox struct {
	app       *App
	checklist entities.Checklist
	logger    *slog.Logger
}

func (w *inbox) analyzeExisting(ctx context.Context, dir string, watcher *filewatcher.FSNotifyWatcher) error {
	paths, err := watcher.Find(dir)
	if err != nil {
		return err
	}
	for _, path := range paths {
		if ctx.Err() != nil {
			return nil
		}
		w.process(ctx, path)
	}
	return nil
}

// run debounces events per path and analyzes them serially until events closes.
func (w *inbox) run(ctx context.Context, events <-chan ports.FileEvent) {
	ready := make(chan string, 16)
	done := make(chan struct{})
	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case path := <-ready:
				w.process(ctx, path)
			}
		}
	}()

	for ev := range events {
		if ev.Operation == ports.FileDeleted {
			continue
		}
		mu.Lock()
		if t, ok := pending[ev.Path]; ok {
			t.Reset(watchDebounce)
		} else {
			path := ev.Path
			pending[path] = time.AfterFunc(watchDebounce, func() {
				mu.Lock()
				delete(pending, path)
				mu.Unlock()
				select {
				case ready <- path:
				case <-ctx.Done():
				case <-done:
				}
			})
		}
		mu.Unlock()
	}

	mu.Lock()
	for _, t := range pending {
		t.Stop()
	}
	mu.Unlock()
	close(done)
	wg.Wait()
}

func (w *inbox) process(ctx context.Context, path string) {
	start := time.Now()
	res, err := w.app.Analyze(ctx, path, w.checklist, nil)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Error("Analysis failed", "path", path, "error", err)
		}
		return
	}
	out := filepath.Join(filepath.Dir(path), report.FileName(path))
	if err := writeReport(nil, out, res.Markdown); err != nil {
		w.logger.Error("Writing report failed", "path", out, "error", err)
		return
	}
	w.logger.Info("Report written",
		"document", path,
		"report", out,
		"chunks", res.Index.Chunks,
		"duration", time.Since(start).Round(time.Millisecond))
}

func indexCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect or clear the persistent document index",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status [document...]",
		Short: "Print the stored chunk counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			if total, ok := app.TotalChunks(cmd.Context()); ok {
				fmt.Fprintf(out, "store: %s, %d chunks\n", g.cfg.Store.Type, total)
			}
			for _, path := range args {
				doc, err := app.loader.Load(cmd.Context(), path)
				if err != nil {
					return err
				}
				n, err := app.store.Count(cmd.Context(), doc.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%s\t%d chunks\n", path, doc.ID, n)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every stored chunk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.store.Clear(cmd.Context()); err != nil {
				return err
			}
			g.logger.Info("Index cleared", "store", g.cfg.Store.Type)
			return nil
		},
	})
	return cmd
}

func configCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration without secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := g.cfg.Redacted()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the user config file with defaults if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.NewLoader(g.logger).EnsureUserConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})
	return cmd
}
