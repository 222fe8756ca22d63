package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fabfab/support-agent/api"
	"github.com/fabfab/support-agent/app"
	"github.com/fabfab/support-agent/chat"
	"github.com/fabfab/support-agent/config"
	"github.com/fabfab/support-agent/keyword"
	"github.com/fabfab/support-agent/mcpserver"
	"github.com/fabfab/support-agent/scraper"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cliApp := &cli.App{
		Name:    "support-agent",
		Usage:   "Customer support assistant over the help-center knowledge base",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address (defaults to HTTP_ADDR)"},
				},
				Action: func(c *cli.Context) error { return serveCmd(c, logger) },
			},
			{
				Name:      "chat",
				Usage:     "Ask a single question",
				ArgsUsage: "[question]",
				Action:    func(c *cli.Context) error { return chatCmd(c, logger) },
			},
			{
				Name:      "search",
				Usage:     "Keyword search over help-center articles",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max", Value: 5, Usage: "maximum results"},
				},
				Action: func(c *cli.Context) error { return searchCmd(c, logger) },
			},
			{
				Name:      "triage",
				Usage:     "Classify a ticket and draft an acknowledgment",
				ArgsUsage: "<ticket text>",
				Action:    func(c *cli.Context) error { return triageCmd(c, logger) },
			},
			{
				Name:  "ingest",
				Usage: "Embed documents from a directory into the vector store",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "document directory (defaults to DATA_DIR)"},
				},
				Action: func(c *cli.Context) error { return ingestCmd(c, logger) },
			},
			{
				Name:  "scrape",
				Usage: "Crawl the help center and refresh the article store",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "help-center home page (defaults to HELP_CENTER_URL)"},
					&cli.BoolFlag{Name: "browser", Usage: "render pages with a headless browser"},
					&cli.IntFlag{Name: "max", Usage: "stop after this many articles"},
					&cli.DurationFlag{Name: "delay", Value: time.Second, Usage: "pause between page loads"},
					&cli.BoolFlag{Name: "embed", Usage: "also embed articles for semantic search"},
				},
				Action: func(c *cli.Context) error { return scrapeCmd(c, logger) },
			},
			{
				Name:      "import-articles",
				Usage:     "Load an article JSON export into the article store",
				ArgsUsage: "[file]",
				Action:    func(c *cli.Context) error { return importCmd(c, logger) },
			},
			{
				Name:  "clear",
				Usage: "Remove ingested knowledge from the vector store and graph",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "confirm", Usage: "skip confirmation prompt"},
				},
				Action: func(c *cli.Context) error { return clearCmd(c, logger) },
			},
			{
				Name:  "mcp",
				Usage: "Serve the support tools over MCP on stdio",
				Action: func(c *cli.Context) error {
					// stdout carries the protocol
					return mcpCmd(c, log.New(os.Stderr, "", log.LstdFlags))
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func build(c *cli.Context, logger *log.Logger) (context.Context, context.CancelFunc, *app.App, error) {
	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	a, err := app.Build(ctx, config.Load(), logger)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, cancel, a, nil
}

func serveCmd(c *cli.Context, logger *log.Logger) error {
	ctx, cancel, a, err := build(c, logger)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	addr := c.String("addr")
	if addr == "" {
		addr = a.Config.HTTPAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.New(a.API(), api.Options{AllowedOrigins: a.Config.CORSOrigins}, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Println("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}

func chatCmd(c *cli.Context, logger *log.Logger) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		fmt.Print("Enter your question: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			question = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read question: %w", err)
		}
	}

	ctx, cancel, a, err := build(c, logger)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	resp, err := a.Chat.Answer(ctx, chat.Question{Text: question})
	if err != nil {
		return err
	}

	fmt.Println(resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for idx, source := range resp.Sources {
			fmt.Printf("%d. %s\n", idx+1, source)
		}
	}
	if len(resp.Methods) > 0 {
		fmt.Printf("\nSearch methods: %s\n", strings.Join(resp.Methods, ", "))
	}
	if resp.SuggestTicket {
		fmt.Println("\nThis question may need a support ticket.")
	}
	return nil
}

func searchCmd(c *cli.Context, logger *log.Logger) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("search query is required")
	}

	ctx, cancel, a, err := build(c, logger)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	results, err := a.Keyword.Search(ctx, query, c.Int("max"))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matching articles.")
		return nil
	}
	for idx, result := range results {
		fmt.Printf("%d. %s (score %.1f)\n   %s\n   %s\n", idx+1, result.Title, result.Score, result.URL, result.Snippet)
	}
	return nil
}

func triageCmd(c *cli.Context, logger *log.Logger) error {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return errors.New("ticket text is required")
	}

	ctx, cancel, a, err := build(c, logger)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	result, err := a.Triage.Handle(ctx, text)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func ingestCmd(c *cli.Context, logger *log.Logger) error {
	ctx, cancel, a, err := build(c, logger)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	dir := c.String("dir")
	if dir == "" {
		dir = a.Config.DataDir
	}
	logger.Printf("ingesting %s using %s/%s embeddings", dir, strings.ToUpper(a.Config.Embeddings.Provider), a.Config.Embeddings.Model)

	summary, err := a.Ingest.IngestDirectory(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	logger.Printf("ingested %d, unchanged %d, failed %d", summary.Ingested, summary.Unchanged, summary.Failed)
	return nil
}

func scrapeCmd(c *cli.Context, logger *log.Logger) error {
	ctx, cancel, a, err := build(c, logger)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	if a.Articles == nil {
		return errors.New("article store unavailable")
	}

	var loader scraper.PageLoader = scraper.NewHTTPLoader(30 * time.Second)
	if c.Bool("browser") {
		browser, err := scraper.NewBrowserLoader(logger)
		if err != nil {
			return fmt.Errorf("start browser: %w", err)
		}
		loader = browser
	}
	defer loader.Close()

	home := c.String("url")
	if home == "" {
		home = a.Config.HelpCenterURL
	}

	s := scraper.New(loader, scraper.Options{
		Delay:       c.Duration("delay"),
		MaxArticles: c.Int("max"),
		Logger:      logger,
	})
	articles, err := s.Crawl(ctx, home)
	if err != nil {
		return fmt.Errorf("crawl %s: %w", home, err)
	}
	if len(articles) == 0 {
		return fmt.Errorf("no articles found at %s", home)
	}

	if err := a.Articles.Upsert(ctx, articles); err != nil {
		return fmt.Errorf("store articles: %w", err)
	}
	if err := keyword.WriteJSON(a.Config.ArticlesJSON, articles); err != nil {
		return err
	}
	logger.Printf("saved %d articles to %s and %s", len(articles), a.Config.ArticlesDB, a.Config.ArticlesJSON)

	if c.Bool("embed") {
		summary, err := a.Ingest.IngestArticles(ctx, articles)
		if err != nil {
			return fmt.Errorf("embed articles: %w", err)
		}
		logger.Printf("embedded %d articles, unchanged %d, failed %d", summary.Ingested, summary.Unchanged, summary.Failed)
	}
	return nil
}

func importCmd(c *cli.Context, logger *log.Logger) error {
	ctx, cancel, a, err := build(c, logger)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	if a.Articles == nil {
		return errors.New("article store unavailable")
	}

	path := c.Args().First()
	if path == "" {
		path = a.Config.ArticlesJSON
	}
	articles, err := keyword.LoadJSON(path)
	if err != nil {
		return err
	}
	if err := a.Articles.Upsert(ctx, articles); err != nil {
		return fmt.Errorf("store articles: %w", err)
	}
	logger.Printf("imported %d articles from %s", len(articles), path)
	return nil
}

func clearCmd(c *cli.Context, logger *log.Logger) error {
	if !c.Bool("confirm") {
		fmt.Print("This will permanently delete ingested knowledge from the vector store and graph. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read confirmation: %w", err)
			}
			logger.Println("clear aborted")
			return nil
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return nil
		}
	}

	ctx, cancel, a, err := build(c, logger)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	if err := a.Clear(ctx); err != nil {
		return err
	}
	logger.Println("ingested knowledge removed")
	return nil
}

func mcpCmd(c *cli.Context, logger *log.Logger) error {
	ctx, cancel, a, err := build(c, logger)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	return mcpserver.Run(ctx, mcpserver.New(a.Chat, a.Keyword, version, logger))
}
