// Package ingesttrace follows one inbound gateway event through the dispatch pipeline.
package ingesttrace

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stage names a pipeline step an event went through.
type Stage string

const (
	StageReceived   Stage = "received"
	StageNormalized Stage = "normalized"
	StageModerated  Stage = "moderated"
	StageResolved   Stage = "command_resolved"
	StageInvoked    Stage = "handler_invoked"

	StageDroppedPrefix = "dropped_"
)

// StageDropped creates a Stage for an event that stopped early for the given reason.
func StageDropped(reason string) Stage {
	return Stage(StageDroppedPrefix + reason)
}

type Trace struct {
	TraceID string
	EventID string
	Origin  string
	Sender  string

	mu     sync.Mutex
	stages []Stage
	counts map[Stage]int64
}

// New starts a trace for an event and records StageReceived.
func New(eventID, origin, sender string) *Trace {
	t := &Trace{
		TraceID: uuid.NewString(),
		EventID: eventID,
		Origin:  origin,
		Sender:  sender,
		counts:  make(map[Stage]int64),
	}
	t.Mark(StageReceived)
	return t
}

// Mark records a stage and returns how many times it has been seen.
func (t *Trace) Mark(stage Stage) int64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts[stage] == 0 {
		t.stages = append(t.stages, stage)
	}
	t.counts[stage]++
	return t.counts[stage]
}

// Stages returns the distinct stages in the order they were first reached.
func (t *Trace) Stages() []Stage {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Stage(nil), t.stages...)
}

// Log writes the trace at debug level.
func (t *Trace) Log(log *zap.Logger, msg string) {
	if t == nil || log == nil {
		return
	}
	stages := t.Stages()
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = string(s)
	}
	log.Debug(msg,
		zap.String("trace_id", t.TraceID),
		zap.String("event_id", t.EventID),
		zap.String("origin", t.Origin),
		zap.String("sender", t.Sender),
		zap.Strings("stages", names),
	)
}
