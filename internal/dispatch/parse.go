package dispatch

import (
	"errors"

	"github.com/tidwall/gjson"

	"chat-widget/internal/chat"
)

var (
	errInvalidJSON = errors.New("response is not valid JSON")
	errShape       = errors.New(`response has no "output" string`)
	errEmpty       = errors.New(`response "output" is empty`)
)

// ParseOutput accepts {"output": "..."} or [{"output": "..."}].
func ParseOutput(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", &chat.DispatchError{Op: "decode", Err: errInvalidJSON}
	}

	root := gjson.ParseBytes(body)
	var output gjson.Result
	switch {
	case root.IsObject():
		output = root.Get("output")
	case root.IsArray():
		output = root.Get("0.output")
	}

	if output.Type != gjson.String {
		if output.Type == gjson.Null && output.Exists() {
			return "", &chat.DispatchError{Op: "empty", Err: errEmpty}
		}
		return "", &chat.DispatchError{Op: "shape", Err: errShape}
	}
	if output.Str == "" {
		return "", &chat.DispatchError{Op: "empty", Err: errEmpty}
	}
	return output.Str, nil
}
