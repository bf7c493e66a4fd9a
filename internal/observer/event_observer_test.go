package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type recordingObserver struct {
	name   string
	mu     sync.Mutex
	events []PipelineEvent
}

func (o *recordingObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *recordingObserver) GetObserverName() string { return o.name }

type panickingObserver struct{}

func (panickingObserver) OnEvent(context.Context, PipelineEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string               { return "panicking" }

func TestEventPublisher_DeliversInOrder(t *testing.T) {
	p := NewEventPublisher()
	first := &recordingObserver{name: "first"}
	second := &recordingObserver{name: "second"}
	p.Subscribe(first)
	p.Subscribe(panickingObserver{})
	p.Subscribe(second)

	stages := []string{"capturing", "enhancing", "summarizing"}
	for _, s := range stages {
		p.NotifyObservers(context.Background(), PipelineEvent{EventType: StageEntered, Stage: s})
	}

	// Delivery is synchronous, no waiting needed
	for _, obs := range []*recordingObserver{first, second} {
		if len(obs.events) != len(stages) {
			t.Fatalf("%s: expected %d events, got %d", obs.name, len(stages), len(obs.events))
		}
		for i, e := range obs.events {
			if e.Stage != stages[i] {
				t.Errorf("%s: event %d stage = %s, want %s", obs.name, i, e.Stage, stages[i])
			}
			if e.Timestamp.IsZero() {
				t.Errorf("%s: expected timestamp to be set", obs.name)
			}
		}
	}
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	p := NewEventPublisher()
	obs := &recordingObserver{name: "rec"}
	p.Subscribe(obs)
	p.Unsubscribe(obs)

	p.NotifyObservers(context.Background(), PipelineEvent{EventType: RunCompleted})

	if len(obs.events) != 0 {
		t.Errorf("Expected no events after unsubscribe, got %d", len(obs.events))
	}
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	events := []PipelineEvent{
		{EventType: StageEntered, Stage: "capturing"},
		{EventType: EnhancementFallback},
		{EventType: RunCompleted, Duration: 2 * time.Second},
		{EventType: StageEntered, Stage: "capturing"},
		{EventType: RunFailed, Stage: "summary"},
		{EventType: StageEntered, Stage: "capturing"},
		{EventType: RunCompleted, Duration: 4 * time.Second},
		{EventType: StageEntered, Stage: "capturing"},
		{EventType: RunCancelled},
	}
	for _, e := range events {
		m.OnEvent(ctx, e)
	}

	got := m.GetMetrics()
	if got["total_runs"].(int64) != 4 {
		t.Errorf("total_runs = %v", got["total_runs"])
	}
	if got["completed_runs"].(int64) != 2 {
		t.Errorf("completed_runs = %v", got["completed_runs"])
	}
	if got["failed_runs"].(int64) != 1 {
		t.Errorf("failed_runs = %v", got["failed_runs"])
	}
	if got["failures_by_stage"].(map[string]int64)["summary"] != 1 {
		t.Errorf("failures_by_stage = %v", got["failures_by_stage"])
	}
	if got["cancelled_runs"].(int64) != 1 || got["enhancement_fallbacks"].(int64) != 1 {
		t.Errorf("unexpected counters %v", got)
	}
	if got["avg_processing_time"] != "3s" {
		t.Errorf("avg_processing_time = %v", got["avg_processing_time"])
	}
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})

	NewLoggingObserver(l).OnEvent(context.Background(), PipelineEvent{
		EventType:    RunFailed,
		RunID:        "run-1",
		Stage:        "capture",
		ErrorMessage: "camera not ready",
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	if entry["level"] != "error" || entry["run_id"] != "run-1" || entry["stage"] != "capture" {
		t.Errorf("unexpected log entry %v", entry)
	}
	if !strings.Contains(entry["error"].(string), "camera") {
		t.Errorf("expected error field, got %v", entry)
	}
}

func TestProgressObserver_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressObserver(&buf)
	ctx := context.Background()

	p.OnEvent(ctx, PipelineEvent{EventType: StageEntered, Message: "Enhancing image..."})
	p.OnEvent(ctx, PipelineEvent{EventType: RunCompleted})

	if p.Active() {
		t.Error("Expected spinner to be stopped after completion")
	}
}
