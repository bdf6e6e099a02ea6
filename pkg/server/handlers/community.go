package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	graphrag "github.com/soundprediction/graphrag"
	"github.com/soundprediction/graphrag/pkg/server/dto"
)

// CommunityHandler handles community build and report requests
type CommunityHandler struct {
	client graphrag.GraphRAG
}

// NewCommunityHandler creates a new community handler
func NewCommunityHandler(client graphrag.GraphRAG) *CommunityHandler {
	return &CommunityHandler{client: client}
}

// Build handles POST /api/v1/communities/build
func (h *CommunityHandler) Build(c *gin.Context) {
	communities, err := h.client.BuildCommunities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "build_failed", Message: err.Error()})
		return
	}
	uids := make([]string, 0, len(communities))
	for _, community := range communities {
		uids = append(uids, community.CommunityUID)
	}
	c.JSON(http.StatusOK, dto.BuildCommunitiesResponse{Communities: len(communities), UIDs: uids})
}

// GenerateReports handles POST /api/v1/communities/reports
func (h *CommunityHandler) GenerateReports(c *gin.Context) {
	if err := h.client.GenerateReports(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "reports_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DispatchReports handles POST /api/v1/communities/reports/dispatch
func (h *CommunityHandler) DispatchReports(c *gin.Context) {
	dispatched, err := h.client.DispatchReports(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "dispatch_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.DispatchReportsResponse{Dispatched: dispatched})
}

// List handles GET /api/v1/communities
func (h *CommunityHandler) List(c *gin.Context) {
	communities, err := h.client.Graph().ListCommunities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "list_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, communities)
}
