package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lehigh-university-libraries/uiaudit/internal/config"
	"github.com/lehigh-university-libraries/uiaudit/internal/gemini"
	"github.com/lehigh-university-libraries/uiaudit/internal/images"
	"github.com/lehigh-university-libraries/uiaudit/internal/models"
	"github.com/lehigh-university-libraries/uiaudit/internal/ollama"
	"github.com/lehigh-university-libraries/uiaudit/internal/openai"
	"github.com/lehigh-university-libraries/uiaudit/internal/providers"
	"github.com/lehigh-university-libraries/uiaudit/internal/storage"
	"github.com/lehigh-university-libraries/uiaudit/internal/workspace"
)

// app is everything a command needs to run the review pipeline
type app struct {
	cfg       *config.Config
	engine    *gemini.Engine
	store     storage.Store
	workspace *workspace.Controller
	close     func()
}

func newApp(ctx context.Context, requireKey bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if requireKey {
		if err := cfg.RequireAPIKey(); err != nil {
			return nil, err
		}
	}

	engine := gemini.New(gemini.Options{
		APIKey:            cfg.GeminiAPIKey,
		AnalysisModel:     cfg.AnalysisModel,
		CorrectionModel:   cfg.CorrectionModel,
		ChatModel:         cfg.ChatModel,
		ThinkingBudget:    cfg.ChatThinkingBudget,
		Language:          cfg.Language,
		Spec:              cfg.DesignSpec,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})

	var chat providers.Chatter
	switch cfg.ChatProvider {
	case "openai":
		chat = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.Language)
	case "ollama":
		chat = ollama.New(cfg.OllamaURL, cfg.OllamaModel, cfg.Language)
	}
	auditor := providers.WithChatter(engine, chat)

	a := &app{cfg: cfg, engine: engine, close: func() {}}
	switch cfg.SessionStore {
	case "redis":
		rs, err := storage.NewRedisStoreFromURL(ctx, cfg.RedisURL, storage.WithTTL(cfg.SessionTTL))
		if err != nil {
			return nil, err
		}
		a.store = rs
		a.close = func() {
			if err := rs.Close(); err != nil {
				slog.Warn("Unable to close redis client", "err", err)
			}
		}
	default:
		a.store = storage.New()
	}

	a.workspace = workspace.New(a.store, auditor, workspace.WithTimeout(cfg.CallTimeout))
	slog.Debug("Pipeline configured",
		"analysis_model", cfg.AnalysisModel,
		"correction_model", cfg.CorrectionModel,
		"chat_provider", cfg.ChatProvider,
		"store", cfg.SessionStore,
		"timeout", cfg.CallTimeout)
	return a, nil
}

func readImageFile(path string) (models.ImageBuffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ImageBuffer{}, fmt.Errorf("failed to read image: %w", err)
	}
	img, err := images.FromBytes(data, "")
	if err != nil {
		return models.ImageBuffer{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// loadSession starts a session holding the image at path
func (a *app) loadSession(ctx context.Context, path string) (workspace.Snapshot, error) {
	img, err := readImageFile(path)
	if err != nil {
		return workspace.Snapshot{}, err
	}
	snap, err := a.workspace.Create(ctx, filepath.Base(path))
	if err != nil {
		return workspace.Snapshot{}, err
	}
	return a.workspace.Upload(ctx, snap.ID, "", img)
}

// discard deletes a session a one-shot command created, so nothing is left
// behind in a shared store
func (a *app) discard(ctx context.Context, id string) {
	if err := a.workspace.Delete(context.WithoutCancel(ctx), id); err != nil {
		slog.Warn("Unable to delete session", "session_id", id, "err", err)
	}
}
