package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"dwetl/internal/model"
)

func TestFileWriter_AppendAndRead(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWriter(dir, "runs.jsonl")
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}

	e1 := Event{RunID: "etl-1", Status: "completed", RecordsProcessed: 3, RecordsInserted: 3, TS: 1}
	e2 := Event{RunID: "etl-2", Status: "failed", Errors: []string{"boom"}, TS: 2}
	e3 := Event{RunID: "etl-3", Status: "completed", TS: 3}
	for _, e := range []Event{e1, e2, e3} {
		if err := w.Append(e); err != nil {
			t.Fatalf("append %s: %v", e.RunID, err)
		}
	}

	got, err := ReadFile(filepath.Join(dir, "runs.jsonl"), 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, []Event{e1, e2, e3}) {
		t.Fatalf("mismatch: %+v", got)
	}
	tail, err := ReadFile(w.Path(), 2)
	if err != nil {
		t.Fatalf("read tail: %v", err)
	}
	if len(tail) != 2 || tail[0].RunID != "etl-2" || tail[1].RunID != "etl-3" {
		t.Fatalf("unexpected tail: %+v", tail)
	}
}

func TestReadFile_Missing(t *testing.T) {
	got, err := ReadFile(filepath.Join(t.TempDir(), "none.jsonl"), 10)
	if err != nil || len(got) != 0 {
		t.Fatalf("missing file should read empty: %v %v", got, err)
	}
}

func TestNewEvent_FromProcess(t *testing.T) {
	done := time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)
	p := model.ETLProcess{ID: "etl-9", Name: "n", SourceType: model.SourceTabular, SourcePath: "p.csv",
		TargetCollection: "products", Status: model.StatusCompleted, CompletedAt: &done}
	e := NewEvent(p, model.ETLResult{Success: true, RecordsProcessed: 2, RecordsInserted: 1, RecordsUpdated: 1, Duration: 7})
	if e.RunID != "etl-9" || e.SourceType != "tabular" || e.Target != "products" || e.RecordsUpdated != 1 || e.DurationMs != 7 {
		t.Fatalf("unexpected event: %+v", e)
	}
	if e.TS != done.UnixMilli() {
		t.Fatalf("ts should be completion time: %d", e.TS)
	}
}

// fakeKafkaWriter implements kafkaMessageWriter for tests
type fakeKafkaWriter struct {
	msgs []kafka.Message
	fail bool
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.fail {
		return errors.New("fail")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaWriter_Append_Success(t *testing.T) {
	fk := &fakeKafkaWriter{}
	kw := NewKafkaWriterWith(fk)
	e := Event{RunID: "etl-1", Status: "completed", TS: 1}
	if err := kw.Append(e); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(fk.msgs) != 1 {
		t.Fatalf("want 1 msg, got %d", len(fk.msgs))
	}
	if string(fk.msgs[0].Key) != "etl-1" {
		t.Fatalf("bad key: %s", string(fk.msgs[0].Key))
	}
	var back Event
	if err := json.Unmarshal(fk.msgs[0].Value, &back); err != nil || back.Status != "completed" {
		t.Fatalf("bad value: %s (%v)", fk.msgs[0].Value, err)
	}
}

func TestMultiWriter_StopsAtFirstFailure(t *testing.T) {
	ok, bad, after := &fakeKafkaWriter{}, &fakeKafkaWriter{fail: true}, &fakeKafkaWriter{}
	m := NewMultiWriter(NewKafkaWriterWith(ok), NewKafkaWriterWith(bad), NewKafkaWriterWith(after))
	if err := m.Append(Event{RunID: "x"}); err == nil {
		t.Fatalf("expected error")
	}
	if len(ok.msgs) != 1 || len(after.msgs) != 0 {
		t.Fatalf("unexpected fan-out: ok=%d after=%d", len(ok.msgs), len(after.msgs))
	}
}

func TestBrokers(t *testing.T) {
	got := Brokers(" a:9092, ,b:9092 ")
	if !reflect.DeepEqual(got, []string{"a:9092", "b:9092"}) {
		t.Fatalf("unexpected brokers: %v", got)
	}
}
