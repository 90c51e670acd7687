package worker

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cuongbtq/book-ingest/internal/domain"
)

// attemptHeader carries the 1-based delivery attempt across delay queues.
const attemptHeader = "x-attempt"

//go:embed message.schema.json
var messageSchemaJSON []byte

var loadMessageSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("message.schema.json", bytes.NewReader(messageSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("message.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
})

// DecodeMessage validates a queue body and decodes it. Every failure wraps
// domain.ErrInvalidMessage.
func DecodeMessage(body []byte) (domain.Message, error) {
	var msg domain.Message

	schema, err := loadMessageSchema()
	if err != nil {
		return msg, err
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return msg, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}
	if err := schema.Validate(v); err != nil {
		return msg, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}
	if _, err := uuid.Parse(msg.JobID); err != nil {
		return msg, fmt.Errorf("%w: job_id is not a UUID: %v", domain.ErrInvalidMessage, err)
	}

	return msg, nil
}

// attemptOf reads the attempt header. A first delivery has none.
func attemptOf(headers amqp.Table) int {
	var n int64
	switch v := headers[attemptHeader].(type) {
	case int:
		n = int64(v)
	case int8:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	}
	if n < 1 {
		return 1
	}
	return int(n)
}
