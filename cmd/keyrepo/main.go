package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/keyrepo/internal/app"
	"github.com/dmitrijs2005/keyrepo/internal/config"
	"github.com/dmitrijs2005/keyrepo/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, args, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, app.ErrUsage)
		return 2
	}

	logger, err := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if cfg.Backend == config.BackendS3 && cfg.S3AccessKey != "" && cfg.S3SecretKey == "" && app.StdinIsTerminal() {
		secret, err := app.GetSecret(os.Stderr, "S3 secret key: ")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		cfg.S3SecretKey = string(secret)
		app.WipeByteArray(secret)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.CommandTimeout)
		defer cancel()
	}

	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "init failed", "error", err)
		return 1
	}
	defer a.Close()

	if err := a.Run(ctx, args, os.Stdin, os.Stdout); err != nil {
		logger.Error(ctx, "command failed", "error", err)
		return 1
	}
	return 0
}
