package output

import (
	"bytes"
	"encoding/json"

	"github.com/matthieugras/vidctl/internal/worker"
)

// Record is one JSONL line describing a batch request
type Record struct {
	ID         int             `json:"id"`
	Method     string          `json:"method"`
	Path       string          `json:"path"`
	Page       int             `json:"page,omitempty"`
	Status     int             `json:"status,omitempty"`
	RequestID  string          `json:"requestId,omitempty"`
	Bytes      int64           `json:"bytes"`
	DurationMS int64           `json:"durationMs"`
	Error      string          `json:"error,omitempty"`
	Fatal      bool            `json:"fatal,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// FromResult converts a worker result into a record
func FromResult(r worker.Result) Record {
	rec := Record{
		Status:     r.StatusCode,
		RequestID:  r.RequestID,
		Bytes:      r.Bytes,
		DurationMS: r.Duration.Milliseconds(),
		Fatal:      r.Fatal,
		Body:       normalizeBody(r.Body),
	}
	if r.Job != nil {
		rec.ID = r.Job.ID
		rec.Method = r.Job.Method()
		rec.Path = r.Job.Path
		if r.Job.PageInfo != nil {
			rec.Page = r.Job.PageInfo.Page
		}
	}
	if r.Error != nil {
		rec.Error = r.Error.Error()
	}
	return rec
}

// normalizeBody returns a JSON body compacted onto one line, or a non-JSON
// body as a JSON string. Returns nil for an empty body.
func normalizeBody(body []byte) json.RawMessage {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if json.Valid(body) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, body); err == nil {
			return buf.Bytes()
		}
	}
	quoted, err := marshalJSON(string(body))
	if err != nil {
		return nil
	}
	return quoted
}

// marshalJSON is json.Marshal without HTML escaping, so bodies such as
// "<html>" stay readable in the output.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
