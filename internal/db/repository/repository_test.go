package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cozy-creator/hf-mirror/internal/db"
	"github.com/cozy-creator/hf-mirror/internal/db/models"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.Open(context.Background(), fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newRun(model string, createdAt time.Time) *models.Run {
	return &models.Run{
		ID:        uuid.New(),
		Model:     model,
		Status:    models.RunStatusQueued,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestRunRepository(t *testing.T) {
	ctx := context.Background()
	runs := NewRunRepository(openTestDB(t))

	run := newRun("org/sample", time.Now())
	if err := runs.Upsert(ctx, run); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := runs.GetByID(ctx, run.ID.String())
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Model != "org/sample" || got.Status != models.RunStatusQueued {
		t.Errorf("GetByID() = %+v", got)
	}

	run.Status = models.RunStatusSucceeded
	run.Attempts = 2
	run.FinalState = "succeeded"
	run.FinishedAt = bun.NullTime{Time: time.Now()}
	if _, err := runs.UpdateByID(ctx, run.ID.String(), run); err != nil {
		t.Fatalf("UpdateByID() error = %v", err)
	}

	got, err = runs.GetByID(ctx, run.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.RunStatusSucceeded || got.Attempts != 2 || got.FinishedAt.IsZero() {
		t.Errorf("after update = %+v", got)
	}

	if _, err := runs.GetByID(ctx, uuid.NewString()); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetByID() unknown id error = %v, want sql.ErrNoRows", err)
	}
}

func TestRunRepositoryUpsert(t *testing.T) {
	ctx := context.Background()
	runs := NewRunRepository(openTestDB(t))

	run := newRun("org/sample", time.Now().Add(-time.Hour))
	if err := runs.Upsert(ctx, run); err != nil {
		t.Fatalf("Upsert() insert error = %v", err)
	}

	again := *run
	again.Status = models.RunStatusRunning
	again.LocalDir = "/data/sample"
	again.CreatedAt = time.Now()
	if err := runs.Upsert(ctx, &again); err != nil {
		t.Fatalf("Upsert() update error = %v", err)
	}

	got, err := runs.GetByID(ctx, run.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.RunStatusRunning || got.LocalDir != "/data/sample" {
		t.Errorf("Upsert did not refresh row: %+v", got)
	}
	if !got.CreatedAt.Before(time.Now().Add(-30 * time.Minute)) {
		t.Errorf("Upsert overwrote created_at: %v", got.CreatedAt)
	}
}

func TestRunRepositoryList(t *testing.T) {
	ctx := context.Background()
	runs := NewRunRepository(openTestDB(t))

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		if err := runs.Upsert(ctx, newRun(fmt.Sprintf("org/m%d", i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	list, err := runs.List(ctx, 3)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List() returned %d runs, want 3", len(list))
	}
	if list[0].Model != "org/m4" || list[2].Model != "org/m2" {
		t.Errorf("List() order = %s, %s, %s", list[0].Model, list[1].Model, list[2].Model)
	}
}

func TestEventRepository(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	runs := NewRunRepository(conn)
	events := NewEventRepository(conn)

	run := newRun("org/sample", time.Now())
	if err := runs.Upsert(ctx, run); err != nil {
		t.Fatal(err)
	}

	var batch []*models.Event
	for i := 2; i >= 1; i-- {
		event, err := models.NewEvent(run.ID, i, models.EventTypeAttempt, models.AttemptData{
			Phase:    "standard",
			Number:   i,
			ExitCode: i - 1,
		})
		if err != nil {
			t.Fatal(err)
		}
		batch = append(batch, event)
	}
	if err := events.CreateMany(ctx, batch); err != nil {
		t.Fatalf("CreateMany() error = %v", err)
	}

	list, err := events.ListByRunID(ctx, run.ID.String())
	if err != nil {
		t.Fatalf("ListByRunID() error = %v", err)
	}
	if len(list) != 2 || list[0].Seq != 1 {
		t.Fatalf("ListByRunID() = %+v", list)
	}

	var data models.AttemptData
	if err := list[1].Decode(&data); err != nil {
		t.Fatal(err)
	}
	if data.Number != 2 || data.ExitCode != 1 || data.Phase != "standard" {
		t.Errorf("decoded %+v", data)
	}

	other, err := events.ListByRunID(ctx, uuid.NewString())
	if err != nil || len(other) != 0 {
		t.Errorf("ListByRunID() for another run = %+v, %v", other, err)
	}
}

func TestRunInTx(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	runs := NewRunRepository(conn)

	run := newRun("org/sample", time.Now())
	err := conn.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := runs.WithTx(&tx).Upsert(ctx, run); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	if err == nil {
		t.Fatal("expected tx error")
	}

	if _, err := runs.GetByID(ctx, run.ID.String()); err == nil {
		t.Error("run visible after rollback")
	}
}
