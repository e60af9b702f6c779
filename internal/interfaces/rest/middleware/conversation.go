package middleware

import (
	"net/http"
	"strings"
)

const callbacksPrefix = "/callbacks/"

// conversationID returns the conversation a callback lookup targets, or ""
// for requests that do not name one in the path.
func conversationID(r *http.Request) string {
	if id := r.PathValue("conversationID"); id != "" {
		return id
	}
	id, _ := strings.CutPrefix(r.URL.Path, callbacksPrefix)
	if id == r.URL.Path || strings.Contains(id, "/") {
		return ""
	}
	return id
}
