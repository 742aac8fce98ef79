package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	config "github.com/Danwoltrs/wolthers-travel-app-sub001/config/asr"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/logger"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/asr/clients/openai"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/asr/server"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/asr/storage"
	"github.com/Danwoltrs/wolthers-travel-app-sub001/services/asr/usecase"
)

func main() {
	cfg := config.MustLoad()

	log := logger.New(logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		Output:     os.Stderr,
		AddSource:  true,
		JSONFormat: false,
	})
	logger.SetDefault(log)

	ctx := logger.WithContext(context.Background(), log)

	rootCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("failed to run()", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	ai := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, log)
	if !ai.Configured() {
		log.Warn("OPENAI_API_KEY is not set, transcription and summaries are disabled")
	}

	stg := storage.New()
	usc := usecase.New(stg, ai, usecase.Models{
		Transcribe: cfg.TranscribeModel,
		Summary:    cfg.SummaryModel,
		Language:   cfg.Language,
	})

	grpcServer, err := server.NewServerOptions(usc).NewServer()
	if err != nil {
		log.Error("failed to create grpc server", slog.String("error", err.Error()))
		return err
	}

	address := fmt.Sprintf(":%d", cfg.Port)
	grpcListener, err := net.Listen("tcp", address)
	if err != nil {
		log.Error("failed to listen on grpc port", slog.String("error", err.Error()))
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- grpcServer.Serve(grpcListener)
	}()
	log.Info("asr grpc service started", slog.String("address", address))

	select {
	case err := <-serverErrors:
		log.Info("grpc server has closed")
		return fmt.Errorf("grpc server has closed: %w", err)
	case <-ctx.Done():
		log.Info("closing grpc server due to context cancellation")
		grpcServer.GracefulStop()
	}

	return nil
}
