package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/storm-leads/internal/config"
	"github.com/couchcryptid/storm-leads/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	created := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	value := 350000.0
	lead := domain.Lead{
		ID:            "lead-1",
		BatchID:       "batch-1",
		EventID:       "evt-1",
		EventType:     "Hail",
		RegionName:    "Oklahoma",
		Magnitude:     2.0,
		PropertyValue: &value,
		Source:        domain.SourceSimulated,
		Score:         75,
		CreatedAt:     created,
	}
	assessed := domain.AssessedLead{Lead: lead, Assessment: domain.AssessLead(lead, created)}

	msg, err := serializeToMessage(assessed, domain.DefaultPriorityThresholds())
	require.NoError(t, err)

	assert.Equal(t, []byte("lead-1"), msg.Key)
	require.Len(t, msg.Headers, 4)
	assert.Equal(t, "batch_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("batch-1"), msg.Headers[0].Value)
	assert.Equal(t, "event_type", msg.Headers[1].Key)
	assert.Equal(t, []byte("Hail"), msg.Headers[1].Value)
	assert.Equal(t, "priority", msg.Headers[2].Key)
	assert.Equal(t, []byte(domain.PriorityHigh), msg.Headers[2].Value)
	assert.Equal(t, "created_at", msg.Headers[3].Key)
	assert.Equal(t, []byte(created.Format(time.RFC3339)), msg.Headers[3].Value)

	var decoded domain.AssessedLead
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "evt-1", decoded.Lead.EventID)
	assert.Equal(t, 75, decoded.Lead.Score)
	assert.Equal(t, "simulated", decoded.Lead.Source)
	assert.Equal(t, assessed.Assessment.Urgency, decoded.Assessment.Urgency)
}

func TestSerializeToMessage_PriorityUsesThresholds(t *testing.T) {
	assessed := domain.AssessedLead{Lead: domain.Lead{ID: "lead-1", Score: 75}}

	msg, err := serializeToMessage(assessed, domain.PriorityThresholds{High: 80, Medium: 50})
	require.NoError(t, err)
	assert.Equal(t, []byte(domain.PriorityMedium), msg.Headers[2].Value)
}

func TestWriter_LoadBatch_Empty(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"127.0.0.1:1"}, KafkaLeadsTopic: "storm-leads"}
	w := NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer w.Close()

	// No leads means no broker round trip.
	require.NoError(t, w.LoadBatch(context.Background(), &domain.Batch{ID: "batch-1"}))
}
