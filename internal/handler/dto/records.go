// Package dto provides Data Transfer Objects for API responses.
package dto

import "github.com/PascalRepond/rero-mef/internal/model"

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// RecordListResponse represents a paginated list of records.
type RecordListResponse struct {
	Hits       []model.Record `json:"hits"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

// CountResponse reports the number of records of an entity.
type CountResponse struct {
	Entity string `json:"entity"`
	Count  int64  `json:"count"`
}
