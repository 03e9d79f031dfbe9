package main

import (
	"context"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"openbook-cli-sol/internal/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
			logger.Sync()
			os.Exit(2)
		}
	}()

	// .env 不存在时忽略
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		logger.Errorf("%v", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}
