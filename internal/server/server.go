package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/papergraph/internal/core"
	"github.com/agenthands/papergraph/internal/core/linking"
	"github.com/agenthands/papergraph/internal/core/qa"
	"github.com/agenthands/papergraph/internal/logger"
)

type Server struct {
	Graph *core.PaperGraph
}

func NewServer(g *core.PaperGraph) *Server {
	return &Server{Graph: g}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.POST("/papers", s.IngestPapers)
	r.GET("/papers", s.ListPapers)
	r.GET("/papers/:id/improvements", paperQuery(s, s.Graph.Improvements))
	r.GET("/papers/:id/similar", paperQuery(s, s.Graph.Similar))
	r.GET("/papers/:id/concepts", paperQuery(s, s.Graph.Concepts))
	r.GET("/papers/:id/datasets", paperQuery(s, s.Graph.Datasets))
	r.GET("/papers/:id/metrics", paperQuery(s, s.Graph.Metrics))

	r.POST("/link", s.Link)
	r.GET("/clusters", s.Clusters)
	r.POST("/search", s.Search)
	r.POST("/ask", s.Ask)

	return r
}

type IngestRequest struct {
	Papers []core.Document `json:"papers" binding:"required,min=1"`
	// Link runs a linking pass after ingestion.
	Link     bool   `json:"link"`
	Strategy string `json:"strategy"`
}

// IngestPapers stores the papers and optionally links them. The strategy is
// checked before anything is written; a failed linking pass still returns
// the ingestion results so the client does not resubmit the papers.
func (s *Server) IngestPapers(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if req.Link {
		if _, err := s.Graph.Generator(req.Strategy); err != nil {
			s.fail(c, "link", err)
			return
		}
	}

	ctx := c.Request.Context()
	batch, err := s.Graph.IngestBatch(ctx, req.Papers)
	if err != nil {
		s.fail(c, "ingest", err)
		return
	}

	results := make([]gin.H, len(req.Papers))
	for i := range req.Papers {
		if e := batch.Errors[i]; e != nil {
			results[i] = gin.H{"error": e.Error()}
			continue
		}
		results[i] = gin.H{"result": batch.Results[i]}
	}
	resp := gin.H{"results": results, "failed": batch.Failed, "totals": batch.Totals}

	if req.Link && batch.Totals.Ingested > 0 {
		sum, err := s.Graph.LinkPapers(ctx, req.Strategy)
		if err != nil {
			status, msg := s.status("link", err)
			resp["error"] = msg
			c.JSON(status, resp)
			return
		}
		resp["linking"] = linkResponse(sum)
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListPapers(c *gin.Context) {
	papers, err := s.Graph.ListPapers(c.Request.Context())
	if err != nil {
		s.fail(c, "list papers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"papers": papers})
}

func paperQuery[T any](s *Server, query func(ctx context.Context, id string) ([]T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := query(c.Request.Context(), c.Param("id"))
		if err != nil {
			s.fail(c, "paper query", err)
			return
		}
		if out == nil {
			out = []T{}
		}
		c.JSON(http.StatusOK, gin.H{"results": out})
	}
}

type LinkRequest struct {
	Strategy string `json:"strategy"`
}

func (s *Server) Link(c *gin.Context) {
	var req LinkRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}

	sum, err := s.Graph.LinkPapers(c.Request.Context(), req.Strategy)
	if err != nil {
		s.fail(c, "link", err)
		return
	}
	c.JSON(http.StatusOK, linkResponse(sum))
}

func linkResponse(sum linking.Summary) gin.H {
	return gin.H{
		"papers":          sum.Papers,
		"pairs":           sum.Pairs,
		"edges_created":   sum.Edges.Created,
		"edge_failures":   sum.Edges.Failed,
		"oracle_failures": sum.OracleFailures,
	}
}

func (s *Server) Clusters(c *gin.Context) {
	clusters, err := s.Graph.Clusters(c.Request.Context())
	if err != nil {
		s.fail(c, "clusters", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clusters": clusters})
}

type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	K     int    `json:"k"`
}

func (s *Server) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.K <= 0 {
		req.K = 10
	}

	results, err := s.Graph.Search(c.Request.Context(), req.Query, req.K)
	if err != nil {
		s.fail(c, "search", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

func (s *Server) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	answer, err := s.Graph.Ask(c.Request.Context(), req.Question)
	if err != nil {
		s.fail(c, "ask", err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (s *Server) fail(c *gin.Context, op string, err error) {
	status, msg := s.status(op, err)
	c.JSON(status, gin.H{"error": msg})
}

// status maps err to an HTTP status and a client-facing message. Internal
// errors are logged and not echoed.
func (s *Server) status(op string, err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrPaperNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, core.ErrUnknownStrategy), errors.Is(err, core.ErrEmptyDocument), errors.Is(err, qa.ErrEmptyQuestion):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, qa.ErrNoEmbedder):
		return http.StatusNotImplemented, err.Error()
	}
	logger.Error("[Server] request failed", "op", op, "error", err)
	return http.StatusInternalServerError, "Failed to " + op
}
