package syncer

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"worksync/internal/models"
	"worksync/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.SyncJob{}, &models.SyncJobLog{}, &models.WorkMirror{}, &models.AuthorMirror{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestResolve_ExplicitOverrideWins(t *testing.T) {
	repo := repository.NewSyncJobRepository(newTestDB(t))
	resolver := NewCheckpointResolver(repo, 7)

	override := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	got, err := resolver.Resolve(models.JobTypeWorks, &override)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !got.Equal(override) {
		t.Errorf("expected override %v verbatim, got %v", override, got)
	}
}

func TestResolve_UsesLastCompletedJob(t *testing.T) {
	repo := repository.NewSyncJobRepository(newTestDB(t))
	resolver := NewCheckpointResolver(repo, 7)

	job, _ := repo.CreateJob(models.JobTypeWorks, time.Now().Add(-48*time.Hour), 0, 50, "")
	_ = repo.MarkRunning(job.ID)
	_ = repo.Finalize(job.ID, models.JobStatusCompleted, repository.Counters{}, "")

	final, _ := repo.GetJob(job.ID)
	got, err := resolver.Resolve(models.JobTypeWorks, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if final.CompletedAt == nil {
		t.Fatalf("completed job missing completed_at")
	}
	if !got.Equal(*final.CompletedAt) {
		t.Errorf("expected checkpoint %v (prior completed_at), got %v", *final.CompletedAt, got)
	}
}

func TestResolve_IgnoresOtherTypesAndFailures(t *testing.T) {
	repo := repository.NewSyncJobRepository(newTestDB(t))
	resolver := NewCheckpointResolver(repo, 7)

	failed, _ := repo.CreateJob(models.JobTypeWorks, time.Now(), 0, 50, "")
	_ = repo.MarkRunning(failed.ID)
	_ = repo.Finalize(failed.ID, models.JobStatusFailed, repository.Counters{}, "boom")

	authors, _ := repo.CreateJob(models.JobTypeAuthors, time.Now(), 0, 50, "")
	_ = repo.MarkRunning(authors.ID)
	_ = repo.Finalize(authors.ID, models.JobStatusCompleted, repository.Counters{}, "")

	// Scenario D: no completed works job exists, so the lookback
	// window applies.
	before := time.Now().Add(-7 * 24 * time.Hour)
	got, err := resolver.Resolve(models.JobTypeWorks, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	after := time.Now().Add(-7 * 24 * time.Hour)
	if got.Before(before.Add(-time.Minute)) || got.After(after.Add(time.Minute)) {
		t.Errorf("expected ~7 day lookback fallback, got %v", got)
	}
}

func TestResolve_LookbackFallback(t *testing.T) {
	repo := repository.NewSyncJobRepository(newTestDB(t))
	resolver := NewCheckpointResolver(repo, 3)

	got, err := resolver.Resolve(models.JobTypeAuthors, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := time.Now().Add(-3 * 24 * time.Hour)
	if diff := got.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("expected ~3 day lookback, got %v (diff %v)", got, diff)
	}
}
