package handler

import "github.com/posbridge/backend/internal/interfaces/http/dto"

// APIResponse is the generic response wrapper referenced from OpenAPI
// annotations. Handlers build the actual payloads through the dto package;
// this type only exists so swag can render typed schemas.
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse is the OpenAPI schema for failed requests.
// @Description Standard error response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// SuccessResponse is the OpenAPI schema for data-less successes.
// @Description Simple success response without data
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}
