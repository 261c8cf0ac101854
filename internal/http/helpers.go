package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"fluidspend/internal/middleware/trace"
)

const maxRefreshBody = 4 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: trace.GetRequestID(r.Context())})
}

type refreshRequest struct {
	Sources []string `json:"sources"`
}

// parseRefreshRequest accepts an optional JSON body and repeated ?source=
// query parameters. Both may be absent.
func parseRefreshRequest(w http.ResponseWriter, r *http.Request) ([]string, error) {
	var req refreshRequest
	body := http.MaxBytesReader(w, r.Body, maxRefreshBody)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid refresh body: %w", err)
	}

	sources := req.Sources
	for _, v := range r.URL.Query()["source"] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				sources = append(sources, part)
			}
		}
	}
	for i, src := range sources {
		sources[i] = strings.ToLower(strings.TrimSpace(src))
	}
	return sources, nil
}
