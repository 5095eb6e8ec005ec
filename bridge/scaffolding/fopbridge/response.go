// Package fopbridge provides the response envelope shared by every bridge.
package fopbridge

import (
	"encoding/json"
	"net/http"
)

// Envelope is the success body: {"success": true, "count"?: n, "data": ...}.
type Envelope[T any] struct {
	Success bool `json:"success"`
	Count   *int `json:"count,omitempty"`
	Data    T    `json:"data"`

	status int
}

// NewRecordResponse wraps a single record.
func NewRecordResponse[T any](record T) Envelope[T] {
	return Envelope[T]{Success: true, Data: record, status: http.StatusOK}
}

// NewCreatedResponse wraps a freshly created record with a 201 status.
func NewCreatedResponse[T any](record T) Envelope[T] {
	return Envelope[T]{Success: true, Data: record, status: http.StatusCreated}
}

// NewListResponse wraps records and reports their count. A nil slice is
// encoded as an empty array.
func NewListResponse[T any](records []T) Envelope[[]T] {
	if records == nil {
		records = []T{}
	}
	n := len(records)
	return Envelope[[]T]{Success: true, Count: &n, Data: records, status: http.StatusOK}
}

// EmptyRecord encodes as {}.
type EmptyRecord struct{}

// NewEmptyResponse is the body of a successful delete.
func NewEmptyResponse() Envelope[EmptyRecord] {
	return NewRecordResponse(EmptyRecord{})
}

func (e Envelope[T]) Encode() ([]byte, string, error) {
	data, err := json.Marshal(e)
	return data, "application/json; charset=utf-8", err
}

func (e Envelope[T]) HTTPStatus() int {
	if e.status == 0 {
		return http.StatusOK
	}
	return e.status
}
