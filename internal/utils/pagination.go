package utils

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskhub-api/internal/constants"
)

// PaginationParams holds the pagination parameters
type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
}

// PageCursor points at a neighbouring page
type PageCursor struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// PaginationResponse represents the pagination metadata in API responses.
// Next and Prev are only present when that page exists.
type PaginationResponse struct {
	Next *PageCursor `json:"next,omitempty"`
	Prev *PageCursor `json:"prev,omitempty"`
}

// GetPaginationParams extracts and validates pagination parameters from the request
func GetPaginationParams(c *gin.Context) PaginationParams {
	return NewPaginationParams(queryInt(c, "page", constants.MinPageSize), queryInt(c, "limit", constants.DefaultPageSize))
}

func queryInt(c *gin.Context, key string, fallback int) int {
	value, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return value
}

// NewPaginationParams normalizes raw page/limit values
func NewPaginationParams(page, limit int) PaginationParams {
	if page < constants.MinPageSize {
		page = constants.MinPageSize
	}
	if limit < constants.MinPageSize || limit > constants.MaxPageSize {
		limit = constants.DefaultPageSize
	}
	// Keep page*limit within int so offsets never wrap
	if maxPage := math.MaxInt / limit; page > maxPage {
		page = maxPage
	}

	return PaginationParams{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// BuildPagination computes the next/prev cursors for a page of a result set with total rows
func BuildPagination(params PaginationParams, total int64) PaginationResponse {
	var resp PaginationResponse
	if int64(params.Offset+params.Limit) < total {
		resp.Next = &PageCursor{Page: params.Page + 1, Limit: params.Limit}
	}
	if params.Offset > 0 {
		resp.Prev = &PageCursor{Page: params.Page - 1, Limit: params.Limit}
	}
	return resp
}
