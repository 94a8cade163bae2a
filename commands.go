package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"options-signal/config"
	"options-signal/controllers"
	"options-signal/interfaces"
	"options-signal/services"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and dashboard page",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if app.cfg.LogLevel < logrus.DebugLevel {
			gin.SetMode(gin.ReleaseMode)
		}

		controller := controllers.NewSignalController(app.signals, app.cfg.MaxIVFilter, app.logger)
		router := controllers.NewRouter(controller, app.metrics, app.logger)

		server := &http.Server{
			Addr:    ":" + app.cfg.ServerPort,
			Handler: router,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			app.logger.WithField("port", app.cfg.ServerPort).Info("Starting server")
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		app.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

var signalCmd = &cobra.Command{
	Use:   "signal [SYMBOL]",
	Short: "Evaluate the signal for one ticker and print the call table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		maxIV, err := cmd.Flags().GetFloat64("max-iv")
		if err != nil {
			return fmt.Errorf("error getting max-iv: %w", err)
		}
		if !cmd.Flags().Changed("max-iv") {
			maxIV = app.cfg.MaxIVFilter
		}
		if err := services.ValidateMaxIV(maxIV); err != nil {
			return fmt.Errorf("%w: %v", err, maxIV)
		}

		symbol := app.cfg.DefaultTickers[0]
		if len(args) == 1 {
			symbol = args[0]
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		snapshot, err := app.signals.Evaluate(ctx, symbol)
		if err != nil {
			return err
		}

		renderSnapshot(cmd.OutOrStdout(), controllers.NewDashboardView(snapshot, app.signals.Tickers(), maxIV))
		return nil
	},
}

var tickersCmd = &cobra.Command{
	Use:   "tickers",
	Short: "List the configured tickers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, ticker := range cfg.DefaultTickers {
			fmt.Fprintln(cmd.OutOrStdout(), ticker)
		}
		return nil
	},
}

func renderSnapshot(w io.Writer, view *controllers.DashboardView) {
	summary := tablewriter.NewWriter(w)
	summary.SetHeader([]string{"Symbol", "RSI", "Avg IV", "Signal"})
	summary.SetAlignment(tablewriter.ALIGN_CENTER)
	summary.Append([]string{view.Symbol, view.LatestRSI, view.AverageIV, view.SignalLabel})
	summary.Render()

	if view.NoOptions {
		fmt.Fprintf(w, "No options data available for %s.\n", view.Symbol)
		return
	}

	fmt.Fprintf(w, "\nCalls expiring %s with IV below %s:\n", view.Expiration, controllers.FormatPercent(view.MaxIV))
	calls := tablewriter.NewWriter(w)
	calls.SetHeader([]string{"Contract", "Strike", "Last", "Bid", "Ask", "IV", "Volume", "Open Interest"})
	calls.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, c := range view.Calls {
		calls.Append(callRow(c))
	}
	calls.Render()
}

func callRow(c *interfaces.OptionContract) []string {
	return []string{
		c.Symbol,
		fmt.Sprintf("%.2f", c.StrikePrice),
		fmt.Sprintf("%.2f", c.LastPrice),
		fmt.Sprintf("%.2f", c.Bid),
		fmt.Sprintf("%.2f", c.Ask),
		controllers.FormatPercent(c.ImpliedVolatility),
		strconv.FormatInt(c.Volume, 10),
		strconv.FormatInt(c.OpenInterest, 10),
	}
}
