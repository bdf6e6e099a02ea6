package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	graphrag "github.com/soundprediction/graphrag"
	"github.com/soundprediction/graphrag/pkg/server/dto"
)

// IngestHandler handles extractor stream ingestion requests
type IngestHandler struct {
	client graphrag.GraphRAG
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(client graphrag.GraphRAG) *IngestHandler {
	return &IngestHandler{client: client}
}

// Ingest handles POST /api/v1/ingest
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	result, err := h.client.Ingest(c.Request.Context(), req.Stream, req.DocumentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "ingest_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.IngestResponse{
		Entities:      result.Entities,
		Relationships: result.Relationships,
		Skipped:       result.Skipped,
	})
}
