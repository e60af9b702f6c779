// Package domain holds the flow, session and callback types shared by the
// engine, the CLI and the listener.
package domain

import (
	"encoding/json"
	"time"
)

// Fixture sections of a flow layer.
const (
	SectionRequest             = "request"
	SectionSyncResponse        = "sync response"
	SectionAsyncResponse       = "async response"
	SectionAsyncOpenAPIRequest = "async openapi request"
)

// CommonLayer is the layer name holding the default flow data.
const CommonLayer = "common"

// OverrideMarker marks a fixture object whose keys replace the accumulated
// result instead of being merged into it.
const OverrideMarker = "_override_"

// RequestSpec is a concrete outbound HTTP request.
type RequestSpec struct {
	Method  string            `json:"method" validate:"required"`
	URL     string            `json:"url" validate:"required"`
	Site    string            `json:"-"`
	Headers map[string]string `json:"headers"`
	Params  map[string]any    `json:"params,omitempty"`
	Data    map[string]any    `json:"data"`
}

// ResponseSpec is an actual or expected HTTP response.
type ResponseSpec struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"-"`
	Data    map[string]any    `json:"data"`
	Raw     []byte            `json:"-"`
}

// IsClientError reports whether the status is a 4xx.
func (r ResponseSpec) IsClientError() bool {
	return r.Status >= 400 && r.Status < 500
}

// Field returns a top-level data field as a string, or "" when absent.
func (r ResponseSpec) Field(key string) string {
	v, ok := r.Data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// DataJSON renders the data map for diagnostics.
func (r ResponseSpec) DataJSON() string {
	if r.Data == nil && len(r.Raw) > 0 {
		return string(r.Raw)
	}
	b, err := json.Marshal(r.Data)
	if err != nil {
		return "<unprintable>"
	}
	return string(b)
}

// RecordedRequest is the request portion of a persisted flow.
type RecordedRequest struct {
	Headers map[string]string `json:"headers"`
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Data    map[string]any    `json:"data"`
}

// RecordedResponse is a persisted response or downstream request snapshot.
type RecordedResponse struct {
	Status int            `json:"status"`
	Data   map[string]any `json:"data"`
}

// FlowRecord is the on-disk shape of a cached or stored flow.
type FlowRecord struct {
	Feature             string            `json:"feature"`
	Scenario            string            `json:"scenario"`
	StoredAt            time.Time         `json:"storedAt"`
	TestEnvironment     string            `json:"testEnvironment"`
	TestMarket          string            `json:"testMarket"`
	Request             RecordedRequest   `json:"request"`
	SyncResponse        *RecordedResponse `json:"syncResponse,omitempty"`
	AsyncResponse       *RecordedResponse `json:"asyncResponse,omitempty"`
	AsyncOpenAPIRequest *RecordedResponse `json:"asyncOpenApiRequest,omitempty"`
}

// IsAsync reports whether the record carries a downstream request snapshot.
func (f FlowRecord) IsAsync() bool {
	return f.AsyncOpenAPIRequest != nil
}

// SectionData returns the data map persisted for a fixture section name.
func (f FlowRecord) SectionData(section string) (map[string]any, bool) {
	switch section {
	case SectionRequest:
		return f.Request.Data, true
	case SectionSyncResponse:
		if f.SyncResponse == nil {
			return nil, false
		}
		return f.SyncResponse.Data, true
	case SectionAsyncResponse:
		if f.AsyncResponse == nil {
			return nil, false
		}
		return f.AsyncResponse.Data, true
	case SectionAsyncOpenAPIRequest:
		if f.AsyncOpenAPIRequest == nil {
			return nil, false
		}
		return f.AsyncOpenAPIRequest.Data, true
	}
	return nil, false
}

// Snapshot is the outcome of one executed flow, ready for persistence.
type Snapshot struct {
	Request           RequestSpec
	Response          ResponseSpec
	DownstreamRequest *ResponseSpec
	Feature           string
	Scenario          string
	TestEnvironment   string
	TestMarket        string
}

// Record converts the snapshot into its persisted shape.
func (s Snapshot) Record(now time.Time) FlowRecord {
	rec := FlowRecord{
		Feature:         s.Feature,
		Scenario:        s.Scenario,
		StoredAt:        now,
		TestEnvironment: s.TestEnvironment,
		TestMarket:      s.TestMarket,
		Request: RecordedRequest{
			Headers: s.Request.Headers,
			URL:     s.Request.URL,
			Method:  s.Request.Method,
			Data:    s.Request.Data,
		},
	}
	resp := &RecordedResponse{Status: s.Response.Status, Data: s.Response.Data}
	if s.DownstreamRequest != nil {
		rec.AsyncResponse = resp
		rec.AsyncOpenAPIRequest = &RecordedResponse{Status: s.DownstreamRequest.Status, Data: s.DownstreamRequest.Data}
	} else {
		rec.SyncResponse = resp
	}
	return rec
}
