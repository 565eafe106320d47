package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hybridgroup/mjpeg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/lotwatch/internal/capture"
	"github.com/ayusman/lotwatch/internal/config"
	"github.com/ayusman/lotwatch/internal/detector"
	"github.com/ayusman/lotwatch/internal/fixtures"
	"github.com/ayusman/lotwatch/internal/metrics"
	"github.com/ayusman/lotwatch/internal/monitor"
	"github.com/ayusman/lotwatch/internal/notify"
	"github.com/ayusman/lotwatch/internal/roi"
	"github.com/ayusman/lotwatch/internal/server"
	"github.com/ayusman/lotwatch/internal/snapshot"
	"github.com/ayusman/lotwatch/internal/status"
	"github.com/ayusman/lotwatch/internal/store"
)

type inbox struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (i *inbox) Send(ctx context.Context, msg notify.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.msgs = append(i.msgs, msg)
	return nil
}

func (i *inbox) len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.msgs)
}

func (i *inbox) titles() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, len(i.msgs))
	for n, m := range i.msgs {
		out[n] = m.Title
	}
	return out
}

type rig struct {
	det   *detector.MockDetector
	inbox *inbox
	store *store.Store
	mon   *monitor.Monitor
	ts    *httptest.Server
}

func newRig(t *testing.T, yaml string) *rig {
	t.Helper()

	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)

	tmpDir := t.TempDir()
	st, err := store.New(filepath.Join(tmpDir, "lotwatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	snaps, err := snapshot.NewWriter(filepath.Join(tmpDir, "snapshots"))
	require.NoError(t, err)

	frames := fixtures.Sequence(fixtures.BlankFrame(fixtures.Width, fixtures.Height), 4)
	t.Cleanup(func() { fixtures.CloseAll(frames) })

	r := &rig{det: detector.NewMockDetector(), inbox: &inbox{}, store: st}
	board := status.NewBoard(string(cfg.Mode))
	m := metrics.New()
	stream := mjpeg.NewStream()

	mcfg := monitor.FromConfig(cfg)
	mcfg.FPS = 200
	mcfg.Camera = capture.NewMockCamera(frames, true)
	mcfg.Detector = r.det
	mcfg.Notifier = r.inbox
	mcfg.Snapshots = snaps
	mcfg.Store = st
	mcfg.Board = board
	mcfg.Metrics = m
	mcfg.Stream = stream

	r.mon, err = monitor.New(mcfg)
	require.NoError(t, err)

	srv := server.New(server.Config{
		Board:      board,
		Store:      st,
		Snapshots:  snaps,
		Metrics:    m,
		Stream:     stream,
		Controller: r.mon,
	})
	r.ts = httptest.NewServer(srv)
	t.Cleanup(func() {
		r.ts.Close()
		srv.Close()
	})
	return r
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestE2E_PresenceWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	r := newRig(t, `
mode: presence
roi: {x: 0, y: 0, w: 320, h: 480}
detect: {backend: none, every_n_frames: 2}
presence: {frames_required_inside: 3, frames_required_outside: 3}
notify: {webhook: {url: "http://127.0.0.1:1/unused"}}
`)

	// Outside the ROI: must never trigger.
	r.det.SetDetections([]detector.Detection{detector.Car(400, 100, 600, 300)})
	require.NoError(t, r.mon.Start())
	defer r.mon.Stop()

	require.Eventually(t, func() bool { return r.det.Calls() >= 5 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, r.inbox.len())

	t.Run("EnterThenExit", func(t *testing.T) {
		r.det.SetDetections([]detector.Detection{detector.Car(100, 100, 300, 300)})
		require.Eventually(t, func() bool { return r.inbox.len() == 1 }, 3*time.Second, 10*time.Millisecond)

		r.det.SetDetections(nil)
		require.Eventually(t, func() bool { return r.inbox.len() == 2 }, 3*time.Second, 10*time.Millisecond)

		assert.Equal(t, []string{"Vehicle ENTERED lot", "Vehicle EXITED lot"}, r.inbox.titles())
	})

	t.Run("EventsAPI", func(t *testing.T) {
		var body struct {
			Events []store.Event `json:"events"`
		}
		require.Eventually(t, func() bool {
			getJSON(t, r.ts.URL+"/api/events", &body)
			return len(body.Events) == 2 && body.Events[0].Notified
		}, 3*time.Second, 20*time.Millisecond)
		assert.Equal(t, "EXIT", body.Events[0].Kind)
		assert.Equal(t, "ENTER", body.Events[1].Kind)
	})

	t.Run("SnapshotsAPI", func(t *testing.T) {
		var body struct {
			Snapshots []snapshot.Info `json:"snapshots"`
		}
		getJSON(t, r.ts.URL+"/api/snapshots", &body)
		require.Len(t, body.Snapshots, 2)

		resp, err := http.Get(r.ts.URL + "/snapshots/" + body.Snapshots[0].Name)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("StatusAPI", func(t *testing.T) {
		var snap status.Snapshot
		getJSON(t, r.ts.URL+"/api/status", &snap)
		assert.Equal(t, status.StateRunning, snap.Status)
		assert.False(t, snap.Present)
		assert.Equal(t, 2, snap.Stats.TotalEvents)
		require.NotNil(t, snap.LastEvent)
		assert.Equal(t, "EXIT", snap.LastEvent.Kind)
	})

	t.Run("PauseAndResume", func(t *testing.T) {
		resp, err := http.Post(r.ts.URL+"/api/monitor", "application/json", bytes.NewBufferString(`{"enabled":false}`))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, r.mon.IsEnabled())

		saved, err := r.store.Settings().Get(store.SettingEnabled)
		require.NoError(t, err)
		assert.Equal(t, "false", saved)

		var snap status.Snapshot
		getJSON(t, r.ts.URL+"/api/status", &snap)
		assert.Equal(t, status.StatePaused, snap.Status)

		r.det.SetDetections([]detector.Detection{detector.Car(100, 100, 300, 300)})
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, 2, r.inbox.len(), "paused monitor emits nothing")

		resp, err = http.Post(r.ts.URL+"/api/monitor", "application/json", bytes.NewBufferString(`{"enabled":true}`))
		require.NoError(t, err)
		resp.Body.Close()
		require.Eventually(t, func() bool { return r.inbox.len() == 3 }, 3*time.Second, 10*time.Millisecond)
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := http.Get(r.ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Contains(t, buf.String(), `lotwatch_events_total{kind="ENTER"} 2`)
		assert.Contains(t, buf.String(), `lotwatch_events_total{kind="EXIT"} 1`)
	})
}

func TestE2E_CountWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	r := newRig(t, `
mode: count
detect: {backend: none, every_n_frames: 1}
count: {stability_frames: 3}
notify: {webhook: {url: "http://127.0.0.1:1/unused"}}
`)

	r.det.SetDetections([]detector.Detection{
		detector.Car(10, 10, 100, 100),
		detector.Car(200, 10, 300, 100),
		detector.Person(400, 10, 450, 100),
	})
	require.NoError(t, r.mon.Start())
	defer r.mon.Stop()

	require.Eventually(t, func() bool { return r.inbox.len() == 1 }, 3*time.Second, 10*time.Millisecond)

	r.det.SetDetections([]detector.Detection{detector.Car(10, 10, 100, 100)})
	require.Eventually(t, func() bool { return r.inbox.len() == 2 }, 3*time.Second, 10*time.Millisecond)

	assert.True(t, strings.Contains(r.inbox.titles()[0], "2"), "increase reports two vehicles: %v", r.inbox.titles())

	var snap status.Snapshot
	getJSON(t, r.ts.URL+"/api/status", &snap)
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, 2, snap.Stats.PeakCount)

	var body struct {
		Events []store.Event `json:"events"`
	}
	require.Eventually(t, func() bool {
		getJSON(t, r.ts.URL+"/api/events", &body)
		return len(body.Events) == 2
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "DECREASE", body.Events[0].Kind)
	assert.Equal(t, 1, body.Events[0].Count)
	assert.Equal(t, "INCREASE", body.Events[1].Kind)
	assert.Equal(t, 2, body.Events[1].Count)
}

func TestE2E_ConfigurationRejected(t *testing.T) {
	_, err := config.Parse([]byte("mode: presence\n"))
	assert.ErrorIs(t, err, config.ErrConfiguration)

	_, err = monitor.New(monitor.Config{Tracker: monitor.TrackerConfig{Region: roi.FullFrame(fixtures.Width, fixtures.Height)}})
	assert.ErrorIs(t, err, config.ErrConfiguration)
}
