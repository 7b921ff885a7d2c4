package progress

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEventValidate(t *testing.T) {
	t.Parallel()

	id := UUIDToBytes(uuid.New())
	now := time.Now()
	tests := []struct {
		name    string
		evt     Event
		wantErr bool
	}{
		{name: "run start", evt: Event{RunID: id, TS: now, Stage: StageRunStart}},
		{name: "missing run id", evt: Event{TS: now, Stage: StageRunStart}, wantErr: true},
		{name: "missing ts", evt: Event{RunID: id, Stage: StageRunStart}, wantErr: true},
		{name: "fetch done", evt: Event{RunID: id, TS: now, Stage: StageFetchDone, URL: "u", StatusClass: Status2xx}},
		{name: "fetch done without class", evt: Event{RunID: id, TS: now, Stage: StageFetchDone, URL: "u"}, wantErr: true},
		{name: "soft block without url", evt: Event{RunID: id, TS: now, Stage: StageSoftBlock}, wantErr: true},
		{name: "duplicate", evt: Event{RunID: id, TS: now, Stage: StageDuplicate, Kind: "page"}},
		{name: "artifact without filename", evt: Event{RunID: id, TS: now, Stage: StageArtifact, Kind: "text"}, wantErr: true},
		{name: "unknown stage", evt: Event{RunID: id, TS: now, Stage: "NOPE"}, wantErr: true},
		{name: "negative duration", evt: Event{RunID: id, TS: now, Stage: StageRunDone, Dur: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.evt.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()
	require.Equal(t, Status2xx, ClassifyStatus(200))
	require.Equal(t, Status3xx, ClassifyStatus(301))
	require.Equal(t, Status4xx, ClassifyStatus(404))
	require.Equal(t, Status5xx, ClassifyStatus(503))
	require.Equal(t, StatusOther, ClassifyStatus(0))
}

func TestRunUUIDRoundTrip(t *testing.T) {
	t.Parallel()
	id := uuid.New()
	require.Equal(t, id, Event{RunID: UUIDToBytes(id)}.RunUUID())
}

func TestRecorder(t *testing.T) {
	t.Parallel()
	var r Recorder
	r.Emit(Event{Stage: StageRunStart})
	r.Emit(Event{Stage: StageArtifact})
	require.Len(t, r.Events(), 2)
	require.Len(t, r.ByStage(StageArtifact), 1)

	OrDiscard(nil).Emit(Event{})
	require.Same(t, &r, OrDiscard(&r).(*Recorder))
}
