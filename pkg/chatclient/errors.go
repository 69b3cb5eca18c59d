package chatclient

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	var er struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(e.Body), &er) == nil && er.Error != "" {
		return fmt.Sprintf("server returned %d: %s", e.Code, er.Error)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, strings.TrimSpace(e.Body))
}
