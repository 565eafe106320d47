// Package main provides an event-log hook for lotwatch.
// It appends each event it receives as one JSON line to a log file.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Request represents the input from the hook executor.
type Request struct {
	Event     string          `json:"event"`
	Count     int             `json:"count"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	ImagePath string          `json:"imagePath,omitempty"`
	Time      time.Time       `json:"time"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Response represents the output to the hook executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is read from the manifest's config block.
type Config struct {
	File string `json:"file"`
}

// record is one line of the event log.
type record struct {
	Event    string    `json:"event"`
	Count    int       `json:"count"`
	Snapshot string    `json:"snapshot,omitempty"`
	Time     time.Time `json:"time"`
}

const defaultLogFile = "events.log"

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	path, err := logPath(req.Config)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	if err := appendRecord(path, req); err != nil {
		writeErrorResponse(fmt.Sprintf("append %s: %v", path, err))
		return
	}

	writeSuccessResponse(path)
}

func logPath(raw json.RawMessage) (string, error) {
	cfg := Config{File: defaultLogFile}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return "", fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if cfg.File == "" {
		cfg.File = defaultLogFile
	}
	return filepath.Abs(cfg.File)
}

func appendRecord(path string, req Request) error {
	if req.Event == "" {
		return fmt.Errorf("event is required")
	}

	line, err := json.Marshal(record{
		Event:    req.Event,
		Count:    req.Count,
		Snapshot: req.ImagePath,
		Time:     req.Time,
	})
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(line, '\n'))
	return err
}

func writeSuccessResponse(path string) {
	data, _ := json.Marshal(map[string]string{"file": path})
	writeResponse(Response{Success: true, Data: data})
}

func writeErrorResponse(msg string) {
	writeResponse(Response{Success: false, Error: msg})
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}
