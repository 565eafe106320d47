// Package tray provides a system tray menu showing the monitor state with a pause toggle.
package tray

import (
	"fmt"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/lotwatch/internal/status"
)

// Tray represents the system tray application.
type Tray struct {
	board       *status.Board
	onToggle    func(enabled bool)
	onDashboard func()
	onQuit      func()
	enabled     bool
	mu          sync.RWMutex
	stopCh      chan struct{}

	// Menu items stored for later updates
	menuToggle    *systray.MenuItem
	menuState     *systray.MenuItem
	menuLastEvent *systray.MenuItem
}

// New creates a tray bound to board. enabled is the initial toggle state.
func New(board *status.Board, enabled bool) *Tray {
	return &Tray{
		board:   board,
		enabled: enabled,
		stopCh:  make(chan struct{}),
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnDashboard sets the callback for the "Open Dashboard" item.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Lotwatch")
	systray.SetTooltip("Lotwatch parking monitor")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume monitoring")
	systray.AddSeparator()

	t.menuState = systray.AddMenuItem("Starting", "Current lot state")
	t.menuState.Disable()
	t.menuLastEvent = systray.AddMenuItem("Last: none", "Last event")
	t.menuLastEvent.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Lotwatch")

	go t.follow()

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	close(t.stopCh)
}

// follow refreshes the menu from the board, at most once a second.
func (t *Tray) follow() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		t.Refresh(t.board.Current())

		changed := t.board.Changed()
		select {
		case <-t.stopCh:
			return
		case <-changed:
		}
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// Refresh updates the state and last event lines from a snapshot.
func (t *Tray) Refresh(s *status.Snapshot) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuState != nil {
		t.menuState.SetTitle(StateLine(s))
	}
	if t.menuLastEvent != nil {
		t.menuLastEvent.SetTitle(LastEventLine(s))
	}
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	t.menuToggle.SetTitle(toggleTitle(enabled))
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Monitoring"
	}
	return "○ Paused"
}

// StateLine renders the lot state for the menu, e.g. "Occupied" or "Vehicles: 3".
func StateLine(s *status.Snapshot) string {
	switch s.Status {
	case status.StateStarting:
		return "Starting"
	case status.StatePaused:
		return "Paused"
	case status.StateFailed, status.StateStopped:
		return "Stopped"
	}

	if s.Mode == "count" {
		return fmt.Sprintf("Vehicles: %d", s.Count)
	}
	if s.Present {
		return "Occupied"
	}
	return "Empty"
}

// LastEventLine renders the most recent event for the menu.
func LastEventLine(s *status.Snapshot) string {
	ev := s.LastEvent
	if ev == nil {
		return "Last: none"
	}
	if ev.Kind == "INCREASE" || ev.Kind == "DECREASE" {
		return fmt.Sprintf("Last: %s to %d at %s", ev.Kind, ev.Count, ev.Time.Format(time.Kitchen))
	}
	return fmt.Sprintf("Last: %s at %s", ev.Kind, ev.Time.Format(time.Kitchen))
}
