package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"taskManager/internal/app"
	"taskManager/internal/config"
	"taskManager/internal/logger"
)

func main() {
	defaultPath := config.DefaultPath
	if env := os.Getenv("TASKS_CONFIG"); env != "" {
		defaultPath = env
	}
	configPath := flag.String("config", defaultPath, "путь к config.yml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "загрузка конфигурации: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg)
	if err := application.Init(ctx); err != nil {
		logger.Error("Ошибка инициализации приложения", err)
		application.Shutdown()
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("Сервер завершился с ошибкой", err)
		os.Exit(1)
	}
}
