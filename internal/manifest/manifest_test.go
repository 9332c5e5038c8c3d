package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestPublishAndReadLatest(t *testing.T) {
	old := NowUnix
	defer func() { NowUnix = old }()
	NowUnix = func() int64 { return 111 }

	dir := t.TempDir()
	m := NewFilesystemManifest(dir)
	if err := m.PublishLatest("sid-123", map[string]int64{"products": 42}); err != nil {
		t.Fatalf("PublishLatest error: %v", err)
	}
	got, err := m.ReadLatest()
	if err != nil {
		t.Fatalf("ReadLatest error: %v", err)
	}
	if got.SnapshotID != "sid-123" || got.Collections["products"] != 42 || got.CreatedAtEpochSecond != 111 {
		t.Fatalf("unexpected manifest: %+v", got)
	}
}

func TestReadLatest_Missing(t *testing.T) {
	if _, err := NewFilesystemManifest(t.TempDir()).ReadLatest(); err == nil {
		t.Fatalf("expected error")
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

func TestKafkaManifest_PublishLatest_Success(t *testing.T) {
	fk := &fakeKafkaWriter{}
	km := NewKafkaManifestWith(fk, DefaultKey)
	if err := km.PublishLatest("sid-abc", nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fk.msgs) != 1 {
		t.Fatalf("want 1 msg, got %d", len(fk.msgs))
	}
	if string(fk.msgs[0].Key) != DefaultKey {
		t.Fatalf("bad key: %s", string(fk.msgs[0].Key))
	}
}

func TestKafkaManifest_PublishLatest_Fail(t *testing.T) {
	fk := &fakeKafkaWriter{fail: true}
	km := NewKafkaManifestWith(fk, DefaultKey)
	if err := km.PublishLatest("sid-abc", nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMultiPublisher_WritesAll(t *testing.T) {
	dir := t.TempDir()
	fk := &fakeKafkaWriter{}
	p := MultiPublisher(NewFilesystemManifest(dir), NewKafkaManifestWith(fk, DefaultKey))
	if err := p.PublishLatest("sid-m", nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fk.msgs) != 1 {
		t.Fatalf("kafka publisher skipped")
	}
	if got, err := NewFilesystemManifest(dir).ReadLatest(); err != nil || got.SnapshotID != "sid-m" {
		t.Fatalf("file publisher skipped: %+v %v", got, err)
	}
}

// fakeKafkaReader replays msgs, then blocks until the context ends.
type fakeKafkaReader struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
		return m, nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeKafkaReader) Close() error {
	f.closed = true
	return nil
}

func record(t *testing.T, key, sid string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(Manifest{SnapshotID: sid})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{Key: []byte(key), Value: b}
}

func TestKafkaReader_KeepsLastRecordForKey(t *testing.T) {
	fr := &fakeKafkaReader{msgs: []kafka.Message{
		record(t, DefaultKey, "sid-1"),
		record(t, "other", "sid-x"),
		record(t, DefaultKey, "sid-2"),
	}}
	got, err := NewKafkaReaderWith(fr, DefaultKey, 50*time.Millisecond).ReadLatest()
	if err != nil {
		t.Fatalf("ReadLatest: %v", err)
	}
	if got.SnapshotID != "sid-2" {
		t.Fatalf("want sid-2, got %+v", got)
	}
	if !fr.closed {
		t.Fatalf("reader not closed")
	}
}

func TestKafkaReader_NoRecord(t *testing.T) {
	fr := &fakeKafkaReader{msgs: []kafka.Message{record(t, "other", "sid-x")}}
	_, err := NewKafkaReaderWith(fr, DefaultKey, 20*time.Millisecond).ReadLatest()
	if !errors.Is(err, ErrNoManifest) {
		t.Fatalf("want ErrNoManifest, got %v", err)
	}
}
