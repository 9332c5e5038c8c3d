// Package runlog records one Event per finished ETL run to a JSONL file,
// a Kafka topic, or both.
package runlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"dwetl/internal/model"
)

type Event struct {
	RunID            string   `json:"runId"`
	Name             string   `json:"name"`
	SourceType       string   `json:"sourceType"`
	SourcePath       string   `json:"sourcePath"`
	Target           string   `json:"targetCollection"`
	Status           string   `json:"status"`
	RecordsProcessed int      `json:"recordsProcessed"`
	RecordsInserted  int      `json:"recordsInserted"`
	RecordsUpdated   int      `json:"recordsUpdated"`
	Errors           []string `json:"errors,omitempty"`
	DurationMs       int64    `json:"durationMs"`
	TS               int64    `json:"ts"` // completion, epoch ms
}

// NewEvent summarizes a finished process and its result.
func NewEvent(p model.ETLProcess, res model.ETLResult) Event {
	ts := time.Now().UTC()
	if p.CompletedAt != nil {
		ts = *p.CompletedAt
	}
	return Event{
		RunID:            p.ID,
		Name:             p.Name,
		SourceType:       string(p.SourceType),
		SourcePath:       p.SourcePath,
		Target:           p.TargetCollection,
		Status:           string(p.Status),
		RecordsProcessed: res.RecordsProcessed,
		RecordsInserted:  res.RecordsInserted,
		RecordsUpdated:   res.RecordsUpdated,
		Errors:           res.Errors,
		DurationMs:       res.Duration,
		TS:               ts.UnixMilli(),
	}
}

type Writer interface {
	Append(e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Append(Event) error { return nil }

// MultiWriter fans out writes to multiple underlying writers.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) Append(e Event) error {
	for _, w := range m.writers {
		if err := w.Append(e); err != nil {
			return err
		}
	}
	return nil
}

type FileWriter struct {
	path string
}

func NewFileWriter(dir string, filename string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileWriter{path: filepath.Join(dir, filename)}, nil
}

// Path is the file events are appended to.
func (w *FileWriter) Path() string { return w.path }

func (w *FileWriter) Append(e Event) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(&e); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ReadFile returns the last n events of a run log file, oldest first. n <= 0
// returns all of them. A missing file holds no events.
func ReadFile(path string, n int) ([]Event, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return []Event{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	var out []Event
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 64<<10), 4<<20)
	line := 0
	for s.Scan() {
		line++
		if len(strings.TrimSpace(s.Text())) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(s.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("unmarshal line %d: %w", line, err)
		}
		out = append(out, e)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	if out == nil {
		out = []Event{}
	}
	return out, nil
}

// KafkaWriter publishes events keyed by run id. Pure-Go client (segmentio/kafka-go).
type KafkaWriter struct {
	writer  kafkaMessageWriter
	timeout time.Duration
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter creates a Kafka writer.
// bootstrap can be a comma-separated list of host:port.
func NewKafkaWriter(bootstrap string, topic string) *KafkaWriter {
	return &KafkaWriter{writer: &kafka.Writer{
		Addr:         kafka.TCP(Brokers(bootstrap)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}, timeout: 10 * time.Second}
}

// Brokers splits a comma-separated bootstrap list.
func Brokers(bootstrap string) []string {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			brokers = append(brokers, a)
		}
	}
	return brokers
}

func (k *KafkaWriter) Append(e Event) error {
	b, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	ctx := context.Background()
	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.RunID), Value: b})
}

// Close flushes and closes the underlying writer when it supports it.
func (k *KafkaWriter) Close() error {
	if c, ok := k.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// NewKafkaWriterWith is only for tests to inject a fake writer.
func NewKafkaWriterWith(w kafkaMessageWriter) *KafkaWriter {
	return &KafkaWriter{writer: w}
}
