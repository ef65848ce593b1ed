// Package protocol defines the wire format exchanged between an outpost
// agent and its controller. Frames are flat JSON objects discriminated by
// a "type" field. This package is importable by controllers and other
// clients.
package protocol

import (
	"encoding/json"
	"time"
)

// Frame types. Task frames originate only from the controller; every
// other type originates only from the agent.
const (
	FrameTypeHello    = "hello"
	FrameTypePing     = "ping"
	FrameTypeTask     = "task"
	FrameTypeProgress = "progress"
	FrameTypeResult   = "result"
	FrameTypeGoodbye  = "goodbye"
)

// HelloFrame announces the agent after connect. The snapshot fields are
// flattened into the frame object itself (wire contract), so marshalling
// is custom.
type HelloFrame struct {
	SessionID string
	AppID     string
	Snapshot  map[string]any
}

func (h HelloFrame) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(h.Snapshot)+3)
	for k, v := range h.Snapshot {
		obj[k] = v
	}
	obj["type"] = FrameTypeHello
	obj["sessionId"] = h.SessionID
	obj["appId"] = h.AppID
	return json.Marshal(obj)
}

// PingFrame is the heartbeat sent while the connection is open.
type PingFrame struct {
	Type string `json:"type"` // always "ping"
	TS   int64  `json:"ts"`   // unix millis
}

// TaskFrame is pushed by the controller to start a unit of work.
type TaskFrame struct {
	Type string   `json:"type"` // always "task"
	ID   string   `json:"id"`   // controller-generated, never reused
	Task TaskSpec `json:"task"`
}

// TaskSpec names the task kind and carries its kind-specific payload.
type TaskSpec struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ProgressFrame reports incremental completion for one task.
type ProgressFrame struct {
	Type     string `json:"type"`   // always "progress"
	TaskID   string `json:"taskId"`
	Progress int    `json:"progress"` // 0..100
	TS       int64  `json:"ts"`
}

// ResultFrame is the single terminal frame for a task. No frame bearing
// the same task id may follow it.
type ResultFrame struct {
	Type   string `json:"type"` // always "result"
	TaskID string `json:"taskId"`
	OK     bool   `json:"ok"`
	TS     int64  `json:"ts"`
	Error  string `json:"error,omitempty"`
	Result any    `json:"result,omitempty"` // kind-tagged payload
}

// GoodbyeFrame is sent best-effort on agent shutdown.
type GoodbyeFrame struct {
	Type      string `json:"type"` // always "goodbye"
	SessionID string `json:"sessionId"`
	TS        int64  `json:"ts"`
}

// NewHello creates the startup announcement frame.
func NewHello(sessionID, appID string, snapshot map[string]any) HelloFrame {
	return HelloFrame{SessionID: sessionID, AppID: appID, Snapshot: snapshot}
}

// NewPing creates a heartbeat frame stamped with the current time.
func NewPing() PingFrame {
	return PingFrame{Type: FrameTypePing, TS: time.Now().UnixMilli()}
}

// NewProgress creates a progress frame for a task.
func NewProgress(taskID string, progress int) ProgressFrame {
	return ProgressFrame{
		Type:     FrameTypeProgress,
		TaskID:   taskID,
		Progress: progress,
		TS:       time.Now().UnixMilli(),
	}
}

// NewOKResult creates a success result frame.
func NewOKResult(taskID string, result any) ResultFrame {
	return ResultFrame{
		Type:   FrameTypeResult,
		TaskID: taskID,
		OK:     true,
		TS:     time.Now().UnixMilli(),
		Result: result,
	}
}

// NewErrorResult creates a failure result frame. The result payload is
// optional; runners include partial data (e.g. points collected so far)
// where the task produced any.
func NewErrorResult(taskID, errMsg string, result any) ResultFrame {
	return ResultFrame{
		Type:   FrameTypeResult,
		TaskID: taskID,
		OK:     false,
		TS:     time.Now().UnixMilli(),
		Error:  errMsg,
		Result: result,
	}
}

// NewGoodbye creates the shutdown frame.
func NewGoodbye(sessionID string) GoodbyeFrame {
	return GoodbyeFrame{Type: FrameTypeGoodbye, SessionID: sessionID, TS: time.Now().UnixMilli()}
}

// ParseFrameType extracts the frame type from raw JSON bytes.
func ParseFrameType(data []byte) (string, error) {
	var raw struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", err
	}
	return raw.Type, nil
}
