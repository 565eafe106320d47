package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/ayusman/lotwatch/internal/config"
	"github.com/ayusman/lotwatch/internal/debounce"
	"github.com/ayusman/lotwatch/internal/metrics"
	"github.com/ayusman/lotwatch/internal/notify"
	"github.com/ayusman/lotwatch/internal/snapshot"
	"github.com/ayusman/lotwatch/internal/status"
	"github.com/ayusman/lotwatch/internal/store"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// job is one event waiting for its side effects. The snapshot is either an encoded,
// annotated JPEG or a raw frame owned by the job.
type job struct {
	event debounce.Event
	count int
	jpeg  []byte
	frame *gocv.Mat
	at    time.Time
}

func (j job) release() {
	if j.frame != nil {
		j.frame.Close()
	}
}

// enqueue hands an event to the dispatcher without blocking the loop. When the queue is
// full the event's side effects are dropped. preview is the already encoded annotated
// frame, if any.
func (m *Monitor) enqueue(frame *gocv.Mat, obs Observation, preview []byte) {
	j := job{
		event: obs.Event,
		count: obs.Count,
		at:    time.Now(),
	}
	if m.config.AnnotateSnapshots {
		j.jpeg = preview
		if j.jpeg == nil {
			j.jpeg = m.render(frame, obs)
		}
	}
	if j.jpeg == nil {
		raw := frame.Clone()
		j.frame = &raw
	}

	select {
	case m.jobs <- j:
		m.metrics.QueueDepth.Set(float64(len(m.jobs)))
	default:
		j.release()
		m.metrics.Notifications.WithLabelValues(metrics.ResultDropped).Inc()
		log.Warn().
			Str("event", obs.Event.String()).
			Int("queue_size", cap(m.jobs)).
			Msg("dispatch queue full, dropping event")
	}
}

// dispatch performs side effects for queued events in order until the queue is closed.
func (m *Monitor) dispatch(done chan<- struct{}) {
	defer close(done)

	for j := range m.jobs {
		m.metrics.QueueDepth.Set(float64(len(m.jobs)))
		m.handle(j)
		j.release()
	}
}

// handle saves the snapshot, records the event and notifies, in that order. Failures are
// logged; a missing snapshot does not prevent the notification.
func (m *Monitor) handle(j job) {
	path := m.saveSnapshot(j)

	var rec *store.Event
	if m.session != nil {
		rec = &store.Event{
			SessionID:    m.session.ID,
			Kind:         j.event.String(),
			Count:        j.count,
			SnapshotPath: path,
			CreatedAt:    j.at,
		}
		if err := m.config.Store.Events().Create(rec); err != nil {
			log.Warn().Err(err).Str("event", j.event.String()).Msg("failed to store event")
			rec = nil
		}
	}

	m.board.RecordEvent(status.Event{
		Kind:         j.event.String(),
		Count:        j.count,
		SnapshotPath: path,
		Time:         j.at,
	})

	if err := m.notify(j, path); err != nil {
		m.metrics.Notifications.WithLabelValues(metrics.ResultFailed).Inc()
		log.Error().Err(err).Str("event", j.event.String()).Msg("notification not delivered")
		return
	}
	m.metrics.Notifications.WithLabelValues(metrics.ResultSent).Inc()

	if rec != nil {
		if err := m.config.Store.Events().MarkNotified(rec.ID); err != nil {
			log.Warn().Err(err).Msg("failed to mark event notified")
		}
	}
}

func (m *Monitor) saveSnapshot(j job) string {
	if m.config.Snapshots == nil {
		return ""
	}

	count := j.count
	if m.config.Tracker.Mode != config.ModeCount {
		count = snapshot.NoCount
	}

	var (
		path string
		err  error
	)
	if j.jpeg != nil {
		path, err = m.config.Snapshots.SaveBytes(j.jpeg, count, j.at)
	} else {
		path, err = m.config.Snapshots.Save(*j.frame, count, j.at)
	}
	if err != nil {
		log.Warn().Err(err).Str("event", j.event.String()).Msg("snapshot failed")
		return ""
	}
	log.Debug().Str("path", path).Msg("snapshot saved")
	return path
}

func (m *Monitor) notify(j job, imagePath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.NotifyTimeout)
	defer cancel()

	msg := notify.NewMessage(j.event.String(), j.count, imagePath, j.at)
	if err := m.config.Notifier.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrNotification, err)
	}
	return nil
}
