package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/nrsdigital/fieldaudit_backend/config"
	"bitbucket.org/nrsdigital/fieldaudit_backend/utils"
	"bitbucket.org/nrsdigital/fieldaudit_backend/workflow"
)

// Cron-style sweep: flags active stores whose last audit is older than the
// staleness window so they show up in the reverification queue. Run this
// out-of-band (scheduler), not from the API process.
func main() {
	staleHours := flag.Int("stale-hours", 24, "staleness window in hours")
	dryRun := flag.Bool("dry-run", false, "count candidates only (no writes)")
	flag.Parse()

	if *staleHours <= 0 {
		fmt.Fprintln(os.Stderr, "--stale-hours must be positive")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	// The sweep runs across every department.
	ctx := utils.SetSkipDepartmentScopeInContext(context.Background(), true)
	cutoff := time.Now().Add(-time.Duration(*staleHours) * time.Hour)

	if *dryRun {
		var count int64
		err := db.WithContext(ctx).Table("stores").
			Where("is_active = ? AND needs_reverification = ?", true, false).
			Where("last_audit_date IS NULL OR last_audit_date < ?", cutoff).
			Count(&count).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "dry-run query failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("dry-run: %d stores would be flagged (cutoff=%s)\n", count, cutoff.Format(time.RFC3339))
		return
	}

	flagged, err := workflow.MarkStoresForReverification(ctx, time.Duration(*staleHours)*time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("flagged %d stores for reverification (cutoff=%s)\n", flagged, cutoff.Format(time.RFC3339))
}
