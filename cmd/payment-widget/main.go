// Package main is the entry point for the payment-widget CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"payment-widget/internal/app"
	"payment-widget/internal/channel"
	"payment-widget/internal/config"
	"payment-widget/internal/protocol"
	"payment-widget/internal/server"
	"payment-widget/internal/store"
	"payment-widget/internal/widget"
)

// Commonly used command line flags.
var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to the YAML config file",
		EnvVars: []string{"PAYMENT_WIDGET_CONFIG"},
	}
	cardModeFlag = &cli.StringFlag{
		Name:  "card-mode",
		Usage: "card number entry: last4 or pan",
	}
	delayFlag = &cli.DurationFlag{
		Name:  "delay",
		Usage: "pause between an accepted submit and RESULT",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "debug, info, warn or error",
	}
	replyOriginFlag = &cli.StringFlag{
		Name:  "reply-origin",
		Usage: "target origin of replies: any or observed",
	}
	initFlag = &cli.StringFlag{
		Name:  "init",
		Usage: "fallback INIT payload as JSON",
	}
	listenFlag = &cli.StringFlag{
		Name:  "listen",
		Usage: "HTTP listen address",
	}
)

func main() {
	a := &cli.App{
		Name:  "payment-widget",
		Usage: "embeddable payment allocation widget",
		Flags: []cli.Flag{configFlag, cardModeFlag, delayFlag, logLevelFlag, replyOriginFlag},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "drive one widget over stdin/stdout or a script file",
				ArgsUsage: "[file]",
				Flags:     []cli.Flag{initFlag},
				Action:    runWidget,
			},
			{
				Name:   "serve",
				Usage:  "serve widgets over HTTP",
				Flags:  []cli.Flag{listenFlag},
				Action: serve,
			},
		},
	}

	if err := a.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		os.Exit(1)
	}
}

func runWidget(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	// Determine input source
	var input io.Reader = os.Stdin
	if c.Args().Len() > 0 {
		file, err := os.Open(c.Args().First())
		if err != nil {
			return fmt.Errorf("cannot open file: %w", err)
		}
		defer file.Close()
		input = file
	}

	link := channel.NewStreamTransport(os.Stdout)
	w := widget.New(link, cfg.Widget(), widget.WithLogger(logger))
	if err := w.Mount(); err != nil {
		return err
	}
	if raw := c.String(initFlag.Name); raw != "" {
		if !w.ApplyLaunchParams(url.Values{protocol.InitQueryParam: {raw}}) {
			logger.Warn("ignoring malformed init payload")
		}
	}

	// Set up graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		if _, ok := <-sigChan; !ok {
			return
		}
		fmt.Fprintln(os.Stderr, "\nShutdown requested, exiting...")
		_ = w.Cancel()
		os.Exit(0)
	}()

	runner := app.NewRunner(w, link, input, logger)
	runner.SetSettleTimeout(cfg.ProcessingDelay + app.DefaultSettleTimeout)
	return runner.Run()
}

func serve(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if c.IsSet(listenFlag.Name) {
		cfg.Listen = c.String(listenFlag.Name)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(store.NewMemoryStore(), cfg.Widget(), logger)
	srv.SetSessionTTL(cfg.SessionTTL)
	return srv.ListenAndServe(ctx, cfg.Listen)
}

// setup loads the config file, applies flag overrides and builds the logger.
func setup(c *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return nil, nil, err
	}
	if c.IsSet(cardModeFlag.Name) {
		cfg.CardMode = c.String(cardModeFlag.Name)
	}
	if c.IsSet(delayFlag.Name) {
		cfg.ProcessingDelay = c.Duration(delayFlag.Name)
	}
	if c.IsSet(logLevelFlag.Name) {
		cfg.LogLevel = c.String(logLevelFlag.Name)
	}
	if c.IsSet(replyOriginFlag.Name) {
		cfg.ReplyOrigin = c.String(replyOriginFlag.Name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newLogger builds a production logger writing to stderr; stdout carries
// the envelope stream.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
