package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	graphrag "github.com/soundprediction/graphrag"
	"github.com/soundprediction/graphrag/pkg/server/dto"
	"github.com/soundprediction/graphrag/pkg/types"
)

// QueryHandler handles global query requests
type QueryHandler struct {
	client graphrag.GraphRAG
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(client graphrag.GraphRAG) *QueryHandler {
	return &QueryHandler{client: client}
}

// Answer handles POST /api/v1/query
func (h *QueryHandler) Answer(c *gin.Context) {
	var req dto.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	answer, err := h.client.Answer(c.Request.Context(), req.Query)
	switch {
	case errors.Is(err, types.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, dto.ErrorResponse{Error: "timeout", Message: err.Error()})
	case errors.Is(err, types.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "not_found", Message: err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "query_failed", Message: err.Error()})
	default:
		c.JSON(http.StatusOK, dto.QueryResponse{Answer: answer})
	}
}
