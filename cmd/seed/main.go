package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/blankparty/hackbox/internal/config"
	"github.com/blankparty/hackbox/internal/gamedb"
	"github.com/blankparty/hackbox/internal/questions"
)

// The stock wedding-themed prompt set.
var prompts = []string{
	"The worst thing about weddings is ____",
	"The couple's first fight will be about ____",
	"At the reception, the bride will definitely ____",
	"The groom's biggest fear about marriage is ____",
	"The most embarrassing thing that could happen during the ceremony is ____",
	"The couple's honeymoon will be ruined by ____",
	"The wedding cake should have been shaped like ____",
}

func main() {
	force := flag.Bool("force", false, "seed even when questions already exist")
	category := flag.String("category", "wedding", "category for seeded questions")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx := context.Background()

	db, err := gamedb.Open(config.DatabaseFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := gamedb.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	repo := questions.NewRepository(db)

	count, err := repo.Count(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to count questions")
	}
	if count > 0 && !*force {
		log.Info().Int64("count", count).Msg("questions already seeded, use -force to add anyway")
		return
	}

	for _, text := range prompts {
		id, err := repo.Insert(ctx, text, *category)
		if err != nil {
			log.Fatal().Err(err).Str("question", text).Msg("failed to insert question")
		}
		log.Info().Int64("id", id).Str("question", text).Msg("seeded question")
	}

	log.Info().Int("count", len(prompts)).Msg("seeding complete")
}
