package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/graphrag/pkg/types"
)

// communityRequestBody is the wire shape of a map request. The community may
// arrive embedded or string-encoded, matching both bus bridge styles.
type communityRequestBody struct {
	CommunityRecord json.RawMessage `json:"community_record"`
	CommunityReport json.RawMessage `json:"community_report"`
	UserQuery       string          `json:"user_query"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Router builds the worker's HTTP surface.
func (w *Worker) Router(mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/helloworld", w.handleHelloWorld)
	router.POST("/receive_community_request", w.handleCommunityRequest)
	router.POST("/receive_report_request", w.handleReportRequest)
	return router
}

func (w *Worker) handleHelloWorld(c *gin.Context) {
	c.JSON(http.StatusOK, messageResponse{Message: "Hello World"})
}

// handleCommunityRequest scores one (query, community) pair. A 5xx response
// tells the bus bridge to redeliver.
func (w *Worker) handleCommunityRequest(c *gin.Context) {
	var body communityRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, messageResponse{Message: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	report, err := decodeCommunity(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
		return
	}

	result, err := w.ScoreCommunity(c.Request.Context(), &types.CommunityAnswerRequest{
		CommunityReport: *report,
		UserQuery:       body.UserQuery,
	})
	if err != nil {
		w.log.Error("map request failed", "error", err)
		c.JSON(statusFor(err), messageResponse{Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: fmt.Sprintf("scored community %s: %d", result.Community, result.Score)})
}

// handleReportRequest generates one community report.
func (w *Worker) handleReportRequest(c *gin.Context) {
	var req types.CommunityReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, messageResponse{Message: fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if err := w.GenerateReport(c.Request.Context(), &req); err != nil {
		w.log.Error("report request failed", "error", err)
		c.JSON(statusFor(err), messageResponse{Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: fmt.Sprintf("generated report for %s", req.CommunityUID)})
}

// decodeCommunity accepts either an embedded CommunityData object or a
// string holding its JSON encoding.
func decodeCommunity(body communityRequestBody) (*types.CommunityData, error) {
	raw := body.CommunityRecord
	if len(raw) == 0 {
		raw = body.CommunityReport
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("community_record is required")
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}

	var report types.CommunityData
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("invalid community record: %v", err)
	}
	return &report, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrEmptyUID), errors.Is(err, types.ErrMalformedRecord):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
