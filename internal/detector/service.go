package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/ayusman/lotwatch/internal/roi"
	"gocv.io/x/gocv"
)

// serviceIdleTimeout is how long the helper process may sit unused before it is stopped.
const serviceIdleTimeout = 30 * time.Second

// ServiceDetector implements Detector using a long-lived Python YOLO helper process.
// Each frame is written to the helper's stdin as a 4-byte big-endian length followed by a
// JPEG; the helper answers with one JSON line.
type ServiceDetector struct {
	config    Config
	script    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewServiceDetector creates a service detector.
// The helper process is started lazily on first detection.
func NewServiceDetector(config Config) (*ServiceDetector, error) {
	script := config.ModelPath
	if filepath.Ext(script) != ".py" {
		script = findServiceScript()
	}
	if script == "" {
		return nil, fmt.Errorf("yolo_service.py not found")
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("detector script: %w", err)
	}

	return &ServiceDetector{
		config: config,
		script: script,
	}, nil
}

// Detect sends a frame to the helper and returns its detections.
func (d *ServiceDetector) Detect(frame *gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		d.shutdown()
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		d.shutdown()
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		d.shutdown()
		return nil, fmt.Errorf("read response: %w", err)
	}

	detections, err := parseServiceResponse([]byte(line))
	if err != nil {
		return nil, err
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	return detections, nil
}

// Close shuts down the helper process.
func (d *ServiceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *ServiceDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, d.script,
		"--imgsz", fmt.Sprint(d.config.InputSize),
		"--conf", fmt.Sprint(d.config.MinConfidence),
		"--iou", fmt.Sprint(d.config.NMSThreshold),
	)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start detector service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.lastUsed = time.Now()

	return nil
}

func (d *ServiceDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *ServiceDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(serviceIdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/yolo_service.py",
		"../scripts/yolo_service.py",
		filepath.Join(execDir, "scripts/yolo_service.py"),
		filepath.Join(os.Getenv("HOME"), ".lotwatch/scripts/yolo_service.py"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".lotwatch/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// serviceResponse is the JSON line written by the helper.
type serviceResponse struct {
	Detections []serviceDetection `json:"detections"`
	Error      string             `json:"error,omitempty"`
}

type serviceDetection struct {
	Box        [4]float64 `json:"box"` // x1, y1, x2, y2
	Class      int        `json:"class"`
	Confidence float64    `json:"confidence"`
}

func parseServiceResponse(line []byte) ([]Detection, error) {
	var resp serviceResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("detector service: %s", resp.Error)
	}

	result := make([]Detection, len(resp.Detections))
	for i, sd := range resp.Detections {
		result[i] = Detection{
			Box: roi.Box{
				X1: int(sd.Box[0]),
				Y1: int(sd.Box[1]),
				X2: int(sd.Box[2]),
				Y2: int(sd.Box[3]),
			},
			Class:      sd.Class,
			Label:      Label(sd.Class),
			Confidence: sd.Confidence,
		}
	}
	return result, nil
}
