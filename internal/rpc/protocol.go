// Package rpc implements the JSON request/response framing used by the
// coordinating process that drives memdex.
package rpc

import (
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/benreceveur/memdex/internal/indexer"
	"github.com/benreceveur/memdex/internal/search"
)

// Payload is the structured request body shared by all operations. Only
// indexPath and model are required everywhere; the rest are per-operation.
type Payload struct {
	IndexPath string                  `json:"indexPath"`
	Model     string                  `json:"model"`
	Documents []indexer.DocumentInput `json:"documents,omitempty"`
	BatchSize any                     `json:"batchSize,omitempty"`
	Query     string                  `json:"query,omitempty"`
	Limit     any                     `json:"limit,omitempty"`
	MinScore  any                     `json:"minScore,omitempty"`
}

// StatusResponse is the response to the status operation.
type StatusResponse struct {
	Status    string `json:"status"`
	IndexPath string `json:"indexPath"`
	Model     string `json:"model"`
}

// UpsertResponse is the response to the upsert operation.
type UpsertResponse struct {
	Status  string `json:"status"`
	Updated int    `json:"updated"`
}

// SearchResponse is the response to the search operation, ordered by
// descending score.
type SearchResponse struct {
	Status  string          `json:"status"`
	Results []search.Result `json:"results"`
}

// StatsResponse is the response to the stats operation.
type StatsResponse struct {
	Status      string   `json:"status"`
	Documents   int      `json:"documents"`
	LastUpdated *float64 `json:"last_updated"`
	Model       string   `json:"model"`
	Dimension   int      `json:"dimension"`
	IndexPath   string   `json:"indexPath"`
}

// ErrorResponse is returned for any failed operation.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Errorf builds an error response.
func Errorf(msg string) ErrorResponse {
	return ErrorResponse{Status: "error", Error: msg}
}

// toInt coerces a JSON value to an int. Non-numeric values fall back to
// the default with a warning rather than failing the operation.
func toInt(v any, field string, def int) int {
	switch n := v.(type) {
	case nil:
		return def
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
	}
	log.Warn("Non-numeric value, using default", "field", field, "value", v, "default", def)
	return def
}

// toFloat coerces a JSON value to a float64, defaulting like toInt.
func toFloat(v any, field string, def float64) float64 {
	switch n := v.(type) {
	case nil:
		return def
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		if parsed, err := strconv.ParseFloat(n, 64); err == nil {
			return parsed
		}
	}
	log.Warn("Non-numeric value, using default", "field", field, "value", v, "default", def)
	return def
}
