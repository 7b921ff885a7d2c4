package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageRunStart  Stage = "RUN_START"
	StageRunDone   Stage = "RUN_DONE"
	StageRunError  Stage = "RUN_ERROR"
	StageFetchDone Stage = "FETCH_DONE"
	StageSoftBlock Stage = "SOFT_BLOCK"
	StageDuplicate Stage = "DUPLICATE"
	StageArtifact  Stage = "ARTIFACT_WRITTEN"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Status classes tracked for fetch completions. StatusOther also covers
// transport failures, which carry no status code.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single crawl milestone.
type Event struct {
	// RunID identifies the crawl run in 16-byte UUID form.
	RunID [16]byte
	TS    time.Time
	Stage Stage
	Topic string
	URL   string
	Depth int
	// Attempt is the soft-block retry count of the fetched entry.
	Attempt     int
	StatusCode  int
	StatusClass StatusClass
	// Outcome is the fetch classification (success, soft_block, ...).
	Outcome string
	Bytes   int64
	// Kind is the artifact or payload kind for ARTIFACT_WRITTEN and DUPLICATE.
	Kind     string
	Filename string
	Dur      time.Duration
	Note     string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageFetchDone:
		if e.URL == "" {
			return errors.New("fetch done requires url")
		}
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	case StageSoftBlock:
		if e.URL == "" {
			return errors.New("soft block requires url")
		}
	case StageDuplicate:
		if e.Kind == "" {
			return errors.New("duplicate requires kind")
		}
	case StageArtifact:
		if e.Filename == "" || e.Kind == "" {
			return errors.New("artifact event requires filename and kind")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
