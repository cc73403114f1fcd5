package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/dto"
	availabilityapp "staybook/internal/app/handlers/availability"
	"staybook/internal/app/queries"
	"staybook/internal/app/registry"
	"staybook/internal/infra/config"
	"staybook/internal/infra/storage/memory"
	"staybook/internal/infra/validation"
)

func Test_LoadResourceFixtures_UpsertsThroughCommandBus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	buses := registry.Build(registry.Deps{
		Factory:     memory.NewStore(),
		Idempotency: memory.NewIdempotencyStore(),
		Validator:   validation.New(),
		Logger:      logger,
		MaxDays:     366,
	})
	path := filepath.Join(t.TempDir(), "resources.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": "villa", "kind": "property", "title": "Villa", "city": "Split", "base_price": 10000, "currency": "EUR"},
		{"id": "tour", "kind": "activity", "title": "Tour", "city": "Split", "capacity": 8, "base_price": 2000, "currency": "EUR", "slots": ["09:00"]},
		{"id": "broken", "kind": "castle", "title": "Nope", "currency": "EUR"}
	]`), 0o600))

	require.NoError(t, loadResourceFixtures(context.Background(), buses.Commands, path, logger))

	in := time.Now().UTC().AddDate(0, 1, 0).Truncate(24 * time.Hour)
	result, err := queries.Ask[availabilityapp.SearchQuery, dto.SearchResult](context.Background(), buses.Queries, availabilityapp.SearchQuery{
		City:      "split",
		CheckIn:   in,
		CheckOut:  in.AddDate(0, 0, 1),
		PartySize: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
}

func Test_LoadResourceFixtures_MissingFileIsSkipped(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	err := loadResourceFixtures(context.Background(), nil, filepath.Join(t.TempDir(), "absent.json"), logger)

	assert.NoError(t, err)
}

func Test_FixturesPath_PrefersConfig(t *testing.T) {
	assert.Equal(t, "/srv/fixtures.json", fixturesPath(config.Config{ResourceFixtures: "/srv/fixtures.json"}))
}

func Test_OpenStorage_DefaultsToMemory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	s, err := openStorage(context.Background(), config.Config{StorageDriver: config.DriverMemory}, logger)
	require.NoError(t, err)

	assert.IsType(t, &memory.Store{}, s.factory)
	assert.Same(t, s.factory, s.outbox)
	assert.NotNil(t, s.inbox)
	assert.Empty(t, s.checks)
}
