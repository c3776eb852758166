package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"learnstore/internal/config"
	"learnstore/internal/db"
	"learnstore/internal/importer"
	"learnstore/internal/repository/product"
	"learnstore/internal/repository/site"
)

func main() {
	var (
		filePath string
		siteKey  string
	)
	flag.StringVar(&filePath, "file", "", "Path to course seat CSV export")
	flag.StringVar(&siteKey, "site", "", "Site key to import into")
	flag.Parse()

	if filePath == "" || siteKey == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DBConnString, db.Options{})
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	s, err := site.NewPostgres(pool, nil).GetByKey(ctx, siteKey)
	if err != nil {
		log.Fatalf("load site %q: %v", siteKey, err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatalf("open file: %v", err)
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f, product.NewPostgres(pool, nil), s.ID)

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	fmt.Printf("Imported %d products into site %s in %s\n", count, siteKey, time.Since(start).Truncate(time.Millisecond))
}
