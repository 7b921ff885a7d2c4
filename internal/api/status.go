package api

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/topic-crawler/internal/progress"
)

// RunState is the lifecycle state of the observed crawl.
type RunState string

// Run states reported by RunStatus.
const (
	RunStateIdle     RunState = "idle"
	RunStateRunning  RunState = "running"
	RunStateFinished RunState = "finished"
	RunStateFailed   RunState = "failed"
)

// RunSnapshot is the JSON view of a crawl.
type RunSnapshot struct {
	RunID       string         `json:"run_id,omitempty"`
	Topic       string         `json:"topic,omitempty"`
	State       RunState       `json:"state"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
	Fetches     int            `json:"fetches"`
	Outcomes    map[string]int `json:"outcomes"`
	SoftBlocks  int            `json:"soft_blocks"`
	Duplicates  int            `json:"duplicates"`
	Artifacts   map[string]int `json:"artifacts"`
	LastURL     string         `json:"last_url,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
	LastEventAt *time.Time     `json:"last_event_at,omitempty"`
}

// RunStatus is a progress.Sink that folds events into a RunSnapshot.
type RunStatus struct {
	mu   sync.RWMutex
	snap RunSnapshot
}

// NewRunStatus returns an idle RunStatus.
func NewRunStatus() *RunStatus {
	return &RunStatus{snap: emptySnapshot()}
}

func emptySnapshot() RunSnapshot {
	return RunSnapshot{State: RunStateIdle, Outcomes: map[string]int{}, Artifacts: map[string]int{}}
}

// Consume implements progress.Sink.
func (s *RunStatus) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		ts := evt.TS
		switch evt.Stage {
		case progress.StageRunStart:
			s.snap = emptySnapshot()
			s.snap.RunID = evt.RunUUID().String()
			s.snap.Topic = evt.Topic
			s.snap.State = RunStateRunning
			s.snap.StartedAt = &ts
		case progress.StageRunDone:
			s.snap.State = RunStateFinished
			s.snap.FinishedAt = &ts
		case progress.StageRunError:
			s.snap.State = RunStateFailed
			s.snap.FinishedAt = &ts
			s.snap.LastError = evt.Note
		case progress.StageFetchDone:
			s.snap.Fetches++
			s.snap.Outcomes[evt.Outcome]++
			s.snap.LastURL = evt.URL
		case progress.StageSoftBlock:
			s.snap.SoftBlocks++
		case progress.StageDuplicate:
			s.snap.Duplicates++
		case progress.StageArtifact:
			s.snap.Artifacts[evt.Kind]++
		}
		s.snap.LastEventAt = &ts
	}
	return nil
}

// Close implements progress.Sink.
func (s *RunStatus) Close(context.Context) error { return nil }

// Snapshot returns a copy of the current state.
func (s *RunStatus) Snapshot() RunSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	out.Outcomes = make(map[string]int, len(s.snap.Outcomes))
	for k, v := range s.snap.Outcomes {
		out.Outcomes[k] = v
	}
	out.Artifacts = make(map[string]int, len(s.snap.Artifacts))
	for k, v := range s.snap.Artifacts {
		out.Artifacts[k] = v
	}
	return out
}
