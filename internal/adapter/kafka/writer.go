package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/aqi-cluster/internal/cluster"
	"github.com/couchcryptid/aqi-cluster/internal/config"
	"github.com/couchcryptid/aqi-cluster/internal/domain"
	"github.com/couchcryptid/aqi-cluster/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// Message types carried in the "type" header.
const (
	TypeAssignment = "assignment"
	TypeRanking    = "ranking"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes cluster reports to a Kafka topic.
// It implements pipeline.ReportLoader.
type Writer struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger, metrics: metrics}
}

// AssignmentMessage is the value of one county assignment message.
type AssignmentMessage struct {
	RunID       string           `json:"run_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	County      domain.CountyKey `json:"county"`
	Cluster     int              `json:"cluster"`
	Rank        int              `json:"rank"`
	MeanScore   float64          `json:"cluster_mean_score"`
}

// RankingMessage is the value of the per-run ranking summary message.
type RankingMessage struct {
	RunID              string                 `json:"run_id"`
	GeneratedAt        time.Time              `json:"generated_at"`
	K                  int                    `json:"k"`
	Iterations         int                    `json:"iterations"`
	Counties           int                    `json:"counties"`
	HighestRiskCluster int                    `json:"highest_risk_cluster"`
	Rankings           []cluster.ClusterScore `json:"rankings"`
}

// LoadReport publishes one message per county assignment, keyed by county ID,
// followed by a ranking summary, in a single WriteMessages call.
func (w *Writer) LoadReport(ctx context.Context, report domain.ClusterReport) error {
	msgs, err := reportMessages(report)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish report %s: %w", report.RunID, err)
	}
	w.metrics.AssignmentsPublished.Add(float64(len(report.Assignments)))
	w.logger.Debug("report published", "run_id", report.RunID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func reportMessages(report domain.ClusterReport) ([]kafkago.Message, error) {
	rank := make(map[int]cluster.ClusterScore, len(report.Rankings))
	position := make(map[int]int, len(report.Rankings))
	for i, r := range report.Rankings {
		rank[r.Index] = r
		position[r.Index] = i + 1
	}

	msgs := make([]kafkago.Message, 0, len(report.Assignments)+1)
	for _, a := range report.Assignments {
		msg, err := serializeAssignment(AssignmentMessage{
			RunID:       report.RunID,
			GeneratedAt: report.GeneratedAt,
			County:      a.County,
			Cluster:     a.Cluster,
			Rank:        position[a.Cluster],
			MeanScore:   rank[a.Cluster].MeanScore,
		})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	msg, err := serializeRanking(RankingMessage{
		RunID:              report.RunID,
		GeneratedAt:        report.GeneratedAt,
		K:                  report.K,
		Iterations:         report.Iterations,
		Counties:           report.Counties,
		HighestRiskCluster: report.HighestRiskCluster,
		Rankings:           report.Rankings,
	})
	if err != nil {
		return nil, err
	}
	return append(msgs, msg), nil
}

// serializeAssignment marshals one county assignment into a Kafka message.
func serializeAssignment(m AssignmentMessage) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize assignment %s: %w", m.County.ID(), err)
	}
	return kafkago.Message{
		Key:   []byte(m.County.ID()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "type", Value: []byte(TypeAssignment)},
			{Key: "run_id", Value: []byte(m.RunID)},
			{Key: "cluster", Value: []byte(strconv.Itoa(m.Cluster))},
		},
	}, nil
}

// serializeRanking marshals the ranked cluster summary into a Kafka message.
func serializeRanking(m RankingMessage) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize ranking: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(TypeRanking),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "type", Value: []byte(TypeRanking)},
			{Key: "run_id", Value: []byte(m.RunID)},
			{Key: "generated_at", Value: []byte(m.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
