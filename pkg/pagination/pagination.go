package pagination

import (
	"math"

	"github.com/gin-gonic/gin"
	"github.com/sabanago/ride-sharing/pkg/common"
)

const (
	// DefaultLimit is the default number of items per page
	DefaultLimit = 20
	// MaxLimit is the maximum number of items per page
	MaxLimit = 100
)

// Params represents page-based pagination parameters. Pages are 1-indexed.
type Params struct {
	Page  int `form:"page" json:"page"`
	Limit int `form:"limit" json:"limit"`
}

// ParseParams extracts and validates pagination parameters from the request.
func ParseParams(c *gin.Context) Params {
	params := Params{
		Page:  1,
		Limit: DefaultLimit,
	}

	if err := c.ShouldBindQuery(&params); err != nil {
		// If binding fails, use defaults
		return Params{Page: 1, Limit: DefaultLimit}
	}

	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}

	return params
}

// Offset converts the page number into the SQL offset.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// BuildMeta creates pagination metadata for responses.
func BuildMeta(params Params, total int64) *common.Meta {
	meta := &common.Meta{
		Page:  params.Page,
		Limit: params.Limit,
		Total: total,
	}

	if params.Limit > 0 {
		meta.TotalPages = int(math.Ceil(float64(total) / float64(params.Limit)))
	}

	return meta
}

// HasMore checks if pages remain after the current one.
func HasMore(params Params, total int64) bool {
	return int64(params.Offset()+params.Limit) < total
}
