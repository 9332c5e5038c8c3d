package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"

	"dwetl/internal/config"
	"dwetl/internal/load"
	"dwetl/internal/metrics"
	"dwetl/internal/pipeline"
	"dwetl/internal/runner"
)

// Config holds CLI flags for the run-request worker.
type Config struct {
	config.Config
	ResultTopic string
	MetricsAddr string
	PollTimeout time.Duration
}

func main() {
	cfg := readFlags()
	if err := run(cfg); err != nil {
		log.Fatalf("etlworker failed: %v", err)
	}
}

func readFlags() Config {
	cfg := Config{Config: config.Load()}
	flag.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", cfg.KafkaBootstrap, "kafka bootstrap servers, e.g. localhost:9092")
	flag.StringVar(&cfg.GroupID, "group-id", cfg.GroupID, "consumer group id")
	flag.StringVar(&cfg.RunTopic, "topic-requests", cfg.RunTopic, "kafka topic of run requests")
	flag.StringVar(&cfg.ResultTopic, "topic-results", "", "kafka topic for run responses (disabled when empty)")
	flag.StringVar(&cfg.MetricsAddr, "http", ":9090", "http listen for /metrics and /healthz")
	flag.DurationVar(&cfg.PollTimeout, "poll", 5*time.Second, "consumer poll timeout")
	flag.StringVar(&cfg.SourceRoot, "source-root", cfg.SourceRoot, "directory source paths resolve under")
	flag.StringVar(&cfg.Store, "store", cfg.Store, "store backend: memory|pebble|mongo")
	flag.StringVar(&cfg.PebbleDir, "pebble-dir", cfg.PebbleDir, "pebble data directory")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", cfg.MongoURI, "mongodb connection uri")
	flag.StringVar(&cfg.MongoDB, "mongo-db", cfg.MongoDB, "mongodb database")
	flag.StringVar(&cfg.RunLogSink, "runlog-sink", cfg.RunLogSink, "run log sink: file|kafka|both|none")
	flag.StringVar(&cfg.RunLogTopic, "topic-runlog", cfg.RunLogTopic, "kafka topic for run events")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: json|text")
	flag.Parse()
	return cfg
}

func run(cfg Config) error {
	if cfg.KafkaBootstrap == "" {
		return errors.New("kafka bootstrap is required")
	}
	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := config.OpenStore(ctx, cfg.Config)
	if err != nil {
		return err
	}
	defer st.Close()
	events, closeEvents, err := config.RunLog(cfg.Config)
	if err != nil {
		return err
	}
	defer closeEvents()

	reg := metrics.NewRegistry()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
		})
		_ = http.ListenAndServe(cfg.MetricsAddr, mux)
	}()

	rn := runner.New(pipeline.New(load.New(st, nil, logger), cfg.SourceRoot, logger), reg, events, logger)

	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":  cfg.KafkaBootstrap,
		"group.id":           cfg.GroupID,
		"enable.auto.commit": false,
		"isolation.level":    "read_committed",
		"auto.offset.reset":  "earliest",
	})
	if err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	defer c.Close()
	if err := c.SubscribeTopics([]string{cfg.RunTopic}, nil); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	var p *ck.Producer
	if cfg.ResultTopic != "" {
		prod, err := ck.NewProducer(&ck.ConfigMap{
			"bootstrap.servers":  cfg.KafkaBootstrap,
			"enable.idempotence": true,
			"acks":               "all",
		})
		if err != nil {
			return fmt.Errorf("producer: %w", err)
		}
		p = prod
		defer func() {
			p.Flush(5000)
			p.Close()
		}()
	}
	logger.WithFields(logrus.Fields{"bootstrap": cfg.KafkaBootstrap, "topic": cfg.RunTopic, "group": cfg.GroupID}).Info("etlworker started")

	for ctx.Err() == nil {
		msg, err := c.ReadMessage(cfg.PollTimeout)
		if err != nil {
			var kerr ck.Error
			if errors.As(err, &kerr) && kerr.Code() == ck.ErrTimedOut {
				continue
			}
			logger.WithError(err).Warn("read message")
			continue
		}
		mlog := logger.WithField("offset", msg.TopicPartition.Offset.String())
		resp, commit := handle(ctx, rn, msg.Key, msg.Value, mlog)
		if !commit {
			mlog.Warn("run interrupted, offset left uncommitted")
			break
		}
		if resp != nil && p != nil {
			if err := produce(p, cfg.ResultTopic, *resp); err != nil {
				logger.WithError(err).WithField("run_id", resp.ID).Warn("publish run response")
			}
		}
		if _, err := c.CommitMessage(msg); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	logger.Info("etlworker stopped")
	return nil
}

type requestRunner interface {
	Run(ctx context.Context, req runner.Request) runner.Response
}

// handle decodes and runs one request. Undecodable requests return no
// response but are committed so they are not redelivered. A run cut short by
// ctx is neither published nor committed.
func handle(ctx context.Context, rn requestRunner, key, value []byte, logger logrus.FieldLogger) (*runner.Response, bool) {
	var req runner.Request
	if err := json.Unmarshal(value, &req); err != nil {
		logger.WithError(err).Error("bad run request")
		return nil, true
	}
	if req.ID == "" && len(key) > 0 {
		req.ID = string(key)
	}
	resp := rn.Run(ctx, req)
	if ctx.Err() != nil {
		return nil, false
	}
	return &resp, true
}

func produce(p *ck.Producer, topic string, resp runner.Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	delivery := make(chan ck.Event, 1)
	err = p.Produce(&ck.Message{
		TopicPartition: ck.TopicPartition{Topic: &topic, Partition: ck.PartitionAny},
		Key:            []byte(resp.ID),
		Value:          b,
	}, delivery)
	if err != nil {
		return err
	}
	ev := <-delivery
	if m, ok := ev.(*ck.Message); ok && m.TopicPartition.Error != nil {
		return m.TopicPartition.Error
	}
	return nil
}
