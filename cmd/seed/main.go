package main

import (
	"context"
	"log"
	"os"

	"learnstore/internal/config"
	"learnstore/internal/db"
	offerrepo "learnstore/internal/repository/offer"
	productrepo "learnstore/internal/repository/product"
	siterepo "learnstore/internal/repository/site"
	"learnstore/internal/seed"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, db.Options{})
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	err = seed.Apply(ctx, seed.Repos{
		Sites:    siterepo.NewPostgres(pool, logger),
		Products: productrepo.NewPostgres(pool, logger),
		Offers:   offerrepo.NewPostgres(pool, logger),
	})
	if err != nil {
		logger.Fatalf("seed apply: %v", err)
	}

	logger.Println("seed applied")
}
