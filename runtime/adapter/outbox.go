package adapter

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/aionlabs/aion/a2a"
)

type (
	// Outbox is the tagged union of authoritative end-of-turn payloads. It
	// replaces shape sniffing at reconciliation time: snapshots carry an
	// already-discriminated, already-validated variant or nothing.
	Outbox interface {
		isOutbox()
	}

	// OutboxMessage is an outbox payload discriminated as a message. The
	// reconciler appends it to task history and emits it as a working status.
	OutboxMessage struct {
		// Message is the decoded message payload.
		Message a2a.Message
	}

	// OutboxTask is an outbox payload discriminated as a task patch. The
	// reconciler merges it into the current task under server-owned
	// precedence rules.
	OutboxTask struct {
		// Task is the decoded task patch.
		Task a2a.Task
	}
)

func (*OutboxMessage) isOutbox() {}
func (*OutboxTask) isOutbox()    {}

// Outbox payloads arrive either as typed values (in-process runtimes) or as
// raw maps (after checkpoint serialization). Raw payloads are validated once
// here against minimal structural schemas before decoding; malformed payloads
// yield an error the adapter logs, leaving the snapshot without an outbox so
// reconciliation falls through to the next-lower-priority rule.
const (
	outboxMessageSchema = `{
		"type": "object",
		"properties": {
			"kind": {"const": "message"},
			"role": {"type": "string"},
			"parts": {"type": "array", "items": {"type": "object"}}
		},
		"required": ["kind", "parts"]
	}`
	outboxTaskSchema = `{
		"type": "object",
		"properties": {
			"kind": {"const": "task"},
			"history": {"type": "array", "items": {"type": "object"}},
			"artifacts": {"type": "array", "items": {"type": "object"}},
			"metadata": {"type": "object"}
		},
		"required": ["kind"]
	}`
)

var (
	schemasOnce   sync.Once
	messageSchema *jsonschema.Schema
	taskSchema    *jsonschema.Schema
	schemasErr    error
)

func compileOutboxSchemas() {
	compile := func(name, src string) (*jsonschema.Schema, error) {
		var doc any
		if err := json.Unmarshal([]byte(src), &doc); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", name, err)
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(name, doc); err != nil {
			return nil, fmt.Errorf("add %s resource: %w", name, err)
		}
		return c.Compile(name)
	}
	messageSchema, schemasErr = compile("outbox_message.json", outboxMessageSchema)
	if schemasErr != nil {
		return
	}
	taskSchema, schemasErr = compile("outbox_task.json", outboxTaskSchema)
}

// DecodeOutbox decodes a raw outbox payload from runtime state into the
// tagged union. Accepted inputs are typed messages and tasks (passed through)
// and map payloads carrying a "kind" discriminator. Returns (nil, nil) when
// raw is nil and an error when the payload is present but malformed.
func DecodeOutbox(raw any) (Outbox, error) {
	if raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case *a2a.Message:
		return &OutboxMessage{Message: *v}, nil
	case a2a.Message:
		return &OutboxMessage{Message: v}, nil
	case *a2a.Task:
		return &OutboxTask{Task: *v}, nil
	case a2a.Task:
		return &OutboxTask{Task: v}, nil
	}

	schemasOnce.Do(compileOutboxSchemas)
	if schemasErr != nil {
		return nil, schemasErr
	}

	// Round-trip through JSON so map payloads produced by any serializer
	// (checkpointers, session stores) decode uniformly.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("outbox payload is not an object: %w", err)
	}

	switch doc["kind"] {
	case "message":
		if err := messageSchema.Validate(any(doc)); err != nil {
			return nil, fmt.Errorf("invalid outbox message: %w", err)
		}
		var msg a2a.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode outbox message: %w", err)
		}
		return &OutboxMessage{Message: msg}, nil
	case "task":
		if err := taskSchema.Validate(any(doc)); err != nil {
			return nil, fmt.Errorf("invalid outbox task: %w", err)
		}
		var task a2a.Task
		if err := json.Unmarshal(data, &task); err != nil {
			return nil, fmt.Errorf("decode outbox task: %w", err)
		}
		return &OutboxTask{Task: task}, nil
	default:
		return nil, fmt.Errorf("outbox payload has unknown kind %q", doc["kind"])
	}
}
