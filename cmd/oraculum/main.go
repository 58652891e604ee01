package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"oraculum/internal/backtest"
	"oraculum/internal/indicator"
	"oraculum/internal/provider"
	"oraculum/internal/report"
	"oraculum/internal/scheduler"
	"oraculum/internal/web"
	"oraculum/pkg/model"
)

var (
	cfgFile    string
	logLevel   string
	logFormat  string
	symbolList string
	format     string
	startDate  string
	endDate    string
	rankDate   string
	toDate     string
	sellTh     float64
	buyTh      float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "oraculum",
		Short: "Market health score for equities",
		Long: `Oraculum rates tickers with the Wysocki Indicator, a 0-100 score built from
momentum, valuation, flow and macro components, and backtests it against realized returns.

Examples:
  oraculum score --symbols NVDA,AAPL
  oraculum backtest --symbols NVDA,MSFT --start 2024-01-02 --end 2024-06-28 --format csv
  oraculum rank --symbols NVDA,MSFT,XOM --rank-date 2024-01-02 --to 2024-04-01
  oraculum serve`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console, json")

	scoreCmd := &cobra.Command{
		Use:   "score",
		Short: "Score tickers with the current indicator",
		RunE:  runScore,
	}
	scoreCmd.Flags().StringVar(&symbolList, "symbols", "", "comma-separated tickers (default: configured universe)")
	scoreCmd.Flags().StringVar(&startDate, "start", "", "history start date YYYY-MM-DD")
	scoreCmd.Flags().StringVar(&endDate, "end", "", "history end date YYYY-MM-DD")
	scoreCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Score at start and measure performance until end",
		RunE:  runBacktest,
	}
	backtestCmd.Flags().StringVar(&symbolList, "symbols", "", "comma-separated tickers (default: configured universe)")
	backtestCmd.Flags().StringVar(&startDate, "start", "", "window start YYYY-MM-DD")
	backtestCmd.Flags().StringVar(&endDate, "end", "", "window end YYYY-MM-DD")
	backtestCmd.Flags().Float64Var(&sellTh, "sell-th", 0, "SELL below this score (default: config)")
	backtestCmd.Flags().Float64Var(&buyTh, "buy-th", 0, "BUY at or above this score (default: config)")
	backtestCmd.Flags().StringVar(&format, "format", "table", "output format: table, json, csv")
	backtestCmd.MarkFlagRequired("start")
	backtestCmd.MarkFlagRequired("end")

	rankCmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank tickers at a date and report forward returns",
		RunE:  runRank,
	}
	rankCmd.Flags().StringVar(&symbolList, "symbols", "", "comma-separated tickers (default: configured universe)")
	rankCmd.Flags().StringVar(&rankDate, "rank-date", "", "ranking date YYYY-MM-DD")
	rankCmd.Flags().StringVar(&toDate, "to", "", "forward return end date YYYY-MM-DD")
	rankCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	rankCmd.MarkFlagRequired("rank-date")
	rankCmd.MarkFlagRequired("to")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}

	rootCmd.AddCommand(scoreCmd, backtestCmd, rankCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nInterrupted. Stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func tickers(a *app) []string {
	if symbolList == "" {
		return a.cfg.App.DefaultTickers
	}
	var out []string
	for _, t := range strings.Split(symbolList, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseOptionalDate(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := model.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}

func runScore(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	start, err := parseOptionalDate("start", startDate)
	if err != nil {
		return err
	}
	end, err := parseOptionalDate("end", endDate)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	syms := tickers(a)
	bar := newProgressBar(len(syms), "Scoring")
	a.scanner.SetProgressCallback(func(scored, total int) {
		bar.Set(scored)
	})

	rows := a.scanner.Score(ctx, syms, provider.NewDateRange(start, end))
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	if format == "json" {
		return outputJSON(map[string]any{"data": rows})
	}
	return report.ScoreTable(os.Stdout, rows)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	start, err := model.ParseDate(startDate)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	end, err := model.ParseDate(endDate)
	if err != nil {
		return fmt.Errorf("--end: %w", err)
	}

	th := indicator.Thresholds{Sell: a.cfg.Backtest.SellThreshold, Buy: a.cfg.Backtest.BuyThreshold}
	if cmd.Flags().Changed("sell-th") {
		th.Sell = sellTh
	}
	if cmd.Flags().Changed("buy-th") {
		th.Buy = buyTh
	}
	if err := th.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	result := a.backtest.RunWindow(ctx, tickers(a), start, end, th)

	switch format {
	case "json":
		return outputJSON(result)
	case "csv":
		return report.WriteBacktestCSV(os.Stdout, result.Data)
	}

	fmt.Printf("Window %s -> %s (SELL < %.0f, BUY >= %.0f)\n\n",
		result.Params.Start, result.Params.End, th.Sell, th.Buy)
	if err := report.WindowTable(os.Stdout, result); err != nil {
		return err
	}
	fmt.Println()
	return report.SummaryTable(os.Stdout, backtest.Summarize(result.Data))
}

func runRank(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	rd, err := model.ParseDate(rankDate)
	if err != nil {
		return fmt.Errorf("--rank-date: %w", err)
	}
	to, err := model.ParseDate(toDate)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	result := a.backtest.Rank(ctx, tickers(a), rd, to)
	if format == "json" {
		return outputJSON(result)
	}
	fmt.Printf("Ranked at %s, forward return to %s\n\n", result.RankDate, result.To)
	return report.RankTable(os.Stdout, result)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	sched := scheduler.New()
	if err := sched.AddCacheSweep(a.cfg.Cache.SweepCron, a.data); err != nil {
		return err
	}
	sched.Start()

	srv := web.NewServer(a.cfg, a.scanner, a.backtest, a.metrics)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	sched.Stop(shutdownCtx)
	return nil
}

func newProgressBar(total int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func outputJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
