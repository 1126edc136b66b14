package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/vmihailenco/msgpack/v5"
)

type EventType string

const (
	EventTypeAttempt      EventType = "attempt"
	EventTypeMaterialized EventType = "materialized"
	EventTypePublished    EventType = "published"
)

type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID        uuid.UUID `bun:",type:uuid,pk" json:"id"`
	RunID     uuid.UUID `bun:",type:uuid,notnull" json:"run_id"`
	Seq       int       `bun:",notnull" json:"seq"`
	Type      EventType `bun:",notnull" json:"type"`
	Data      []byte    `bun:",notnull" json:"-"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// AttemptData is the payload of an attempt event.
type AttemptData struct {
	Phase      string `msgpack:"phase" json:"phase"`
	Number     int    `msgpack:"number" json:"number"`
	ExitCode   int    `msgpack:"exit_code" json:"exit_code"`
	Error      string `msgpack:"error,omitempty" json:"error,omitempty"`
	StartedAt  int64  `msgpack:"started_at" json:"started_at"`
	DurationMs int64  `msgpack:"duration_ms" json:"duration_ms"`
}

// MaterializedData is the payload of a materialized event.
type MaterializedData struct {
	Files   int      `msgpack:"files" json:"files"`
	Dirs    int      `msgpack:"dirs" json:"dirs"`
	Bytes   int64    `msgpack:"bytes" json:"bytes"`
	Skipped []string `msgpack:"skipped,omitempty" json:"skipped,omitempty"`
}

// PublishedData is the payload of a published event.
type PublishedData struct {
	Files int `msgpack:"files" json:"files"`
}

func NewEvent(runID uuid.UUID, seq int, eventType EventType, data interface{}) (*Event, error) {
	encodedData, err := msgpack.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.Must(uuid.NewRandom()),
		RunID:     runID,
		Seq:       seq,
		Type:      eventType,
		Data:      encodedData,
		CreatedAt: time.Now(),
	}, nil
}

// Decode unpacks the event payload into v.
func (e *Event) Decode(v interface{}) error {
	return msgpack.Unmarshal(e.Data, v)
}
