// Command sdnfallback records a downloaded SDN fallback list and promotes it
// to the current import.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"learnstore/internal/config"
	"learnstore/internal/db"
	"learnstore/internal/repository/sdn"
)

func main() {
	filePath := flag.String("file", "", "Path to the downloaded SDN fallback CSV")
	flag.Parse()
	if *filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[sdnfallback] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	checksum, err := fileChecksum(*filePath)
	if err != nil {
		logger.Fatalf("checksum %s: %v", *filePath, err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, db.Options{})
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	repo := sdn.NewPostgres(pool, logger)
	meta, err := repo.RecordDownload(ctx, checksum, time.Now().UTC())
	if err != nil {
		logger.Fatalf("record download: %v", err)
	}
	if err := repo.SwapAllStates(ctx); err != nil {
		logger.Fatalf("swap import states: %v", err)
	}
	logger.Printf("sdn fallback imported id=%d checksum=%s", meta.ID, meta.FileChecksum)
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
