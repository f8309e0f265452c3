package dto

import (
	"github.com/yukikurage/taskhub-api/internal/utils"
	"github.com/yukikurage/taskhub-api/internal/validation"
)

// Response is the envelope every endpoint answers with
type Response struct {
	Success    bool                      `json:"success"`
	Code       string                    `json:"code,omitempty"`
	Message    string                    `json:"message,omitempty"`
	Data       any                       `json:"data,omitempty"`
	Errors     []validation.FieldError   `json:"errors,omitempty"`
	Count      *int                      `json:"count,omitempty"`
	Total      *int64                    `json:"total,omitempty"`
	Pagination *utils.PaginationResponse `json:"pagination,omitempty"`
}

// OK wraps data in a successful envelope
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// OKWithMessage wraps data and a confirmation message in a successful envelope
func OKWithMessage(message string, data any) Response {
	return Response{Success: true, Message: message, Data: data}
}

// Page wraps one page of a listing
func Page(data any, count int, total int64, pagination utils.PaginationResponse) Response {
	return Response{
		Success:    true,
		Data:       data,
		Count:      &count,
		Total:      &total,
		Pagination: &pagination,
	}
}
