// Admin is a one-shot maintenance tool: it reclaims tasks stuck in
// processing and prints queue depth and ledger statistics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/vietddude/recourse/internal/core/domain"
	"github.com/vietddude/recourse/internal/infra/storage/postgres"
)

func main() {
	configURL := flag.String("database-url", "", "PostgreSQL URL (defaults to DATABASE_URL)")
	lease := flag.Duration("lease", 10*time.Minute, "Processing lease; older processing tasks are requeued")
	flag.Parse()

	_ = godotenv.Load()

	url := *configURL
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		fmt.Fprintln(os.Stderr, "no database URL: pass -database-url or set DATABASE_URL")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, postgres.Config{URL: url})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	tasks := postgres.NewTaskRepo(db)
	reclaimed, err := tasks.ReclaimStale(ctx, *lease)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reclaim: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("reclaimed %d stale tasks (lease %s)\n", reclaimed, *lease)

	counts, err := tasks.CountByStatus(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "count: %v\n", err)
		os.Exit(1)
	}
	for _, status := range []domain.TaskStatus{
		domain.TaskStatusPending, domain.TaskStatusProcessing,
		domain.TaskStatusCompleted, domain.TaskStatusFailed,
	} {
		fmt.Printf("%-12s %d\n", status, counts[status])
	}

	stats, err := postgres.NewAuditRepo(db).Statistics(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit statistics: %v\n", err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Printf("audit ledger: %s\n", out)
}
