package relay

import (
	"encoding/json"
	"fmt"

	"github.com/GHOUSEPASHAA/chatboxFull/pkg/errors"
	"github.com/tidwall/gjson"
)

// Inbound payloads are loosely shaped JSON; fields are pulled out and
// validated here, at the boundary, before any handler logic runs.

func stringField(payload []byte, path string) string {
	return gjson.GetBytes(payload, path).String()
}

func requireStringField(payload []byte, path string) (string, error) {
	v := gjson.GetBytes(payload, path)
	if !v.Exists() || v.String() == "" {
		return "", errors.InvalidArg(fmt.Sprintf("missing required field '%s'", path))
	}
	return v.String(), nil
}

type chatPayload struct {
	Recipient string
	Group     string
	Content   string
	File      json.RawMessage
	TempID    string
}

// parseChatPayload enforces the chatMessage shape: exactly one of
// recipient/group, and either text content or a file reference.
func parseChatPayload(raw []byte) (*chatPayload, error) {
	p := &chatPayload{
		Recipient: stringField(raw, "recipient"),
		Group:     stringField(raw, "group"),
		Content:   stringField(raw, "content"),
		TempID:    stringField(raw, "tempId"),
	}
	if f := gjson.GetBytes(raw, "file"); f.Exists() {
		p.File = json.RawMessage(f.Raw)
	}

	if (p.Recipient == "") == (p.Group == "") {
		return nil, errors.InvalidArg("message must name exactly one of recipient or group")
	}
	if p.Content == "" && p.File == nil {
		return nil, errors.InvalidArg("message carries neither content nor file")
	}
	return p, nil
}
