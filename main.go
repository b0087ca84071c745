package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/injaneity/victordle/internal/docstore"
	"github.com/injaneity/victordle/internal/httpserver"
	"github.com/injaneity/victordle/internal/player"
	"github.com/injaneity/victordle/internal/session"
	"github.com/injaneity/victordle/internal/words"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := words.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to load word list")
	}
	log.Info().Int("words", words.Count()).Msg("word list loaded")

	var store docstore.Store
	if path := os.Getenv("DOCSTORE_PATH"); path != "" {
		sq, err := docstore.OpenSQLite(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to open docstore")
		}
		defer func() { _ = sq.Close() }()
		store = sq
		log.Info().Str("path", path).Msg("using sqlite docstore")
	} else {
		store = docstore.NewMemory()
		log.Info().Msg("using in-memory docstore")
	}

	registry := player.NewRegistry(store)
	sessions := session.NewManager(store, registry, rewardsFromEnv(), nil)

	srv := httpserver.New(store, registry, sessions)
	port := getEnv("PORT", "5175")
	log.Info().Str("port", port).Msg("starting victordle facade")
	if err := srv.Start(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// rewardsFromEnv picks the finish reward policy. The generous variant pays
// consolation and draw points; the default pays the winner only.
func rewardsFromEnv() session.Rewards {
	if os.Getenv("REWARDS") == "generous" {
		return session.GenerousRewards
	}
	return session.DefaultRewards
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
