package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func jsonschemaReader(raw []byte) io.Reader {
	return bytes.NewReader(raw)
}

// ValidateArgs checks args against t's compiled schema, if one was
// registered. It returns a descriptive error on the first violation,
// matching the teacher's guardToolResult pattern of surfacing validation
// failures as a tool error rather than panicking the dispatcher.
func (t *Tool) ValidateArgs(args json.RawMessage) error {
	if t.schema == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return fmt.Errorf("invalid arguments for %q: %w", t.Spec.Name, err)
	}
	if err := t.schema.Validate(v); err != nil {
		return fmt.Errorf("arguments for %q failed validation: %w", t.Spec.Name, err)
	}
	return nil
}
