// Command reindexer pushes stale document metadata into the search index.
// It observes documents whose updated_at has passed last_indexed_at, upserts
// (or removes) them in Meilisearch, and records the indexing watermark. Run
// it once for a catch-up pass or with REINDEX_INTERVAL set for continuous
// operation.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/simple-docs/pkg/simpledocs"
	"github.com/tendant/simple-docs/pkg/simpledocs/config"
)

type reindexerConfig struct {
	BatchSize int           `env:"REINDEX_BATCH_SIZE" env-default:"100"`
	Interval  time.Duration `env:"REINDEX_INTERVAL" env-default:"0s"`
}

func main() {
	var cfg reindexerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}

	serverConfig, err := config.Load(config.WithEnv(""))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	svc, err := serverConfig.BuildService()
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}

	notifier, err := serverConfig.BuildNotifier()
	if err != nil {
		log.Fatalf("Failed to build search notifier: %v", err)
	}
	if notifier == nil {
		log.Fatal("SEARCH_URL is not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Interval <= 0 {
		total, err := reindexPass(ctx, svc, notifier, cfg.BatchSize)
		if err != nil {
			log.Fatalf("Reindex pass failed: %v", err)
		}
		log.Printf("Reindexing completed, %d documents processed", total)
		return
	}

	log.Printf("Reindexer polling every %s", cfg.Interval)
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		if total, err := reindexPass(ctx, svc, notifier, cfg.BatchSize); err != nil {
			log.Printf("Reindex pass failed: %v", err)
		} else if total > 0 {
			log.Printf("Indexed %d documents", total)
		}

		select {
		case <-ctx.Done():
			log.Println("Reindexer exiting")
			return
		case <-ticker.C:
		}
	}
}

// reindexPass drains the stale set in batches until it is empty. A failing
// document stays stale, so the pass bails out as soon as a full batch makes
// no progress instead of re-listing the same documents forever.
func reindexPass(ctx context.Context, svc simpledocs.Service, notifier simpledocs.SearchNotifier, batchSize int) (int, error) {
	total := 0
	for {
		stale, err := svc.ListStaleDocuments(ctx, batchSize)
		if err != nil {
			return total, err
		}
		if len(stale) == 0 {
			return total, nil
		}

		progressed := 0
		failed := 0
		for _, doc := range stale {
			if err := ctx.Err(); err != nil {
				return total, err
			}

			indexID := doc.SearchIndexID
			if doc.IsDeleted && indexID != "" {
				// Deleted documents leave the index but keep their watermark
				// so they are not re-processed every pass.
				if err := notifier.RemoveDocument(ctx, indexID); err != nil {
					log.Printf("Failed to remove document %d from index: %v", doc.ID, err)
					failed++
					continue
				}
			} else if !doc.IsDeleted {
				indexID, err = notifier.IndexDocument(ctx, doc)
				if err != nil {
					log.Printf("Failed to index document %d: %v", doc.ID, err)
					failed++
					continue
				}
			}

			if err := svc.MarkIndexed(ctx, doc.ID, indexID); err != nil {
				log.Printf("Failed to mark document %d indexed: %v", doc.ID, err)
				failed++
			} else {
				total++
				progressed++
			}
		}

		if progressed == 0 {
			return total, fmt.Errorf("reindex pass stalled: %d documents failed", failed)
		}
	}
}
