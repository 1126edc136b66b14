package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cozy-creator/hf-mirror/internal/db"
	"github.com/cozy-creator/hf-mirror/internal/db/models"
	"github.com/cozy-creator/hf-mirror/internal/services/invoker"
	"github.com/cozy-creator/hf-mirror/internal/services/materializer"
	"github.com/cozy-creator/hf-mirror/internal/services/mirror"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

func newService(t *testing.T) *Service {
	t.Helper()
	name := strings.NewReplacer("/", "_").Replace(t.Name())
	conn, err := db.Open(context.Background(), fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewService(conn, zaptest.NewLogger(t))
}

func TestRecordRun(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	req := mirror.Request{ID: uuid.New(), Model: "org/sample", SaveDir: "/data", Accelerate: true}
	if err := svc.Queue(ctx, req); err != nil {
		t.Fatalf("Queue() error = %v", err)
	}

	result := &mirror.Result{
		ID:        req.ID,
		Request:   req,
		State:     mirror.StateAccelerated,
		LocalDir:  req.LocalDir(),
		StartedAt: time.Now(),
	}
	if err := svc.Start(ctx, result); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	details, err := svc.Get(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if details.Run.Status != models.RunStatusRunning {
		t.Errorf("status = %s, want running", details.Run.Status)
	}

	result.Attempts = []invoker.Attempt{
		{Number: 1, Accelerated: true, ExitCode: 1, StartedAt: time.Now()},
		{Number: 1, Accelerated: false, ExitCode: 0, StartedAt: time.Now()},
	}
	result.State = mirror.StateSucceeded
	result.Succeeded = true
	result.Materialized = &materializer.Report{Files: 3, Bytes: 42}
	result.Published = 3
	result.FinishedAt = time.Now()

	if err := svc.Finish(ctx, result); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	details, err = svc.Get(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}

	run := details.Run
	if run.Status != models.RunStatusSucceeded || run.Attempts != 2 || run.FinalState != "succeeded" {
		t.Errorf("run = %+v", run)
	}
	if run.LocalDir != "/data/sample" {
		t.Errorf("local dir = %q", run.LocalDir)
	}
	if len(details.Attempts) != 2 || details.Attempts[0].Phase != "accelerated" || details.Attempts[1].Phase != "standard" {
		t.Errorf("attempts = %+v", details.Attempts)
	}
	if details.Materialized == nil || details.Materialized.Files != 3 {
		t.Errorf("materialized = %+v", details.Materialized)
	}
	if details.Published == nil || details.Published.Files != 3 {
		t.Errorf("published = %+v", details.Published)
	}

	recent, err := svc.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].ID != req.ID {
		t.Errorf("Recent() = %+v", recent)
	}
}

func TestFinishWithoutStart(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	id := uuid.New()
	result := &mirror.Result{
		ID:         id,
		Request:    mirror.Request{ID: id, Model: ""},
		State:      mirror.StateFailed,
		Err:        mirror.ErrEmptyModel,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
	if err := svc.Finish(ctx, result); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	details, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if details.Run.Status != models.RunStatusFailed || details.Run.Error != mirror.ErrEmptyModel.Error() {
		t.Errorf("run = %+v", details.Run)
	}
}

func TestGetUnknownRun(t *testing.T) {
	if _, err := newService(t).Get(context.Background(), uuid.New()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Get() error = %v, want ErrRunNotFound", err)
	}
}
