package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/admin"
	"staybook/internal/app/policies"
	"staybook/internal/infra/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type resourceFixture struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Title     string   `json:"title"`
	City      string   `json:"city"`
	Capacity  int      `json:"capacity"`
	BasePrice int64    `json:"base_price"`
	Currency  string   `json:"currency"`
	Slots     []string `json:"slots"`
	Active    *bool    `json:"active"`
}

func (f resourceFixture) command() admin.UpsertResourceCommand {
	active := true
	if f.Active != nil {
		active = *f.Active
	}
	return admin.UpsertResourceCommand{
		ID:        f.ID,
		Kind:      f.Kind,
		Title:     f.Title,
		City:      f.City,
		Capacity:  f.Capacity,
		BasePrice: f.BasePrice,
		Currency:  f.Currency,
		Slots:     append([]string(nil), f.Slots...),
		Active:    active,
	}
}

// loadResourceFixtures upserts every resource in path through the command
// bus, so fixtures pass the same validation and outbox path as admin edits.
func loadResourceFixtures(ctx context.Context, bus commands.Bus, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("resource fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("resource fixtures file empty", "path", path)
		return nil
	}
	var fixtures []resourceFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	ctx = policies.WithPrincipal(ctx, policies.System)
	for _, fx := range fixtures {
		res, err := commands.Dispatch[admin.UpsertResourceCommand, dto.Resource](ctx, bus, fx.command())
		if err != nil {
			logger.Error("resource fixture rejected", "resource_id", fx.ID, "error", err)
			continue
		}
		logger.Info("resource fixture imported", "resource_id", res.ID, "kind", res.Kind)
	}
	return nil
}

func fixturesPath(cfg config.Config) string {
	if cfg.ResourceFixtures != "" {
		return cfg.ResourceFixtures
	}
	candidates := []string{
		filepath.Join("data", "resources.json"),
		filepath.Join("..", "..", "data", "resources.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
