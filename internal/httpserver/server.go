package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/blackmichael/social-enrichment/internal/domain"
	"github.com/blackmichael/social-enrichment/internal/logging"
)

// Server exposes the enrichment service over HTTP.
type Server struct {
	service    *domain.EnrichmentService
	logger     zerolog.Logger
	httpServer *http.Server
}

type enrichBody struct {
	Identifier string           `json:"identifier"`
	Features   []domain.Feature `json:"features"`
}

const maxBatchSize = 100

type batchBody struct {
	Leads []batchLead `json:"leads"`
}

type batchLead struct {
	LeadID     string           `json:"leadId"`
	Identifier string           `json:"identifier"`
	Features   []domain.Feature `json:"features"`
}

type batchItem struct {
	LeadID  string              `json:"leadId"`
	Success bool                `json:"success"`
	Data    *domain.SocialCache `json:"data,omitempty"`
	Error   string              `json:"error,omitempty"`
}

type integrationInfo struct {
	Name            string             `json:"name"`
	IdentifierField string             `json:"identifierField"`
	Features        []domain.Feature   `json:"features"`
	LeadFields      []domain.LeadField `json:"leadFields"`
}

// NewServer creates a new HTTP server listening on port.
func NewServer(port int, service *domain.EnrichmentService, logger zerolog.Logger) *Server {
	s := &Server{
		service: service,
		logger:  logger,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler builds the gin router. Enrichment calls the remote network
// synchronously, hence the longer write timeout above.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinMiddleware(s.logger, "/health"))

	r.GET("/health", s.handleHealth)

	api := r.Group("/api/v1")
	{
		api.GET("/integrations", s.handleListIntegrations)

		leads := api.Group("/leads/:leadID/social/:network")
		{
			leads.GET("", s.handleGetCache)
			leads.POST("", s.handleEnrich)
			leads.DELETE("", s.handleClearCache)
		}

		api.POST("/social/:network/batch", s.handleEnrichBatch)
	}

	return r
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListIntegrations(c *gin.Context) {
	integrations := s.service.Integrations()
	out := make([]integrationInfo, 0, len(integrations))
	for _, i := range integrations {
		out = append(out, integrationInfo{
			Name:            i.Name(),
			IdentifierField: i.IdentifierField(),
			Features:        i.SupportedFeatures(),
			LeadFields:      i.AvailableLeadFields(),
		})
	}
	success(c, out)
}

func (s *Server) handleGetCache(c *gin.Context) {
	ctx := c.Request.Context()
	leadID, network := c.Param("leadID"), c.Param("network")

	cache, err := s.service.GetCache(ctx, leadID, network)
	if err != nil {
		s.writeServiceError(c, err, "failed to load social data")
		return
	}
	success(c, cache)
}

func (s *Server) handleEnrich(c *gin.Context) {
	ctx := c.Request.Context()
	l := logging.Ctx(ctx)

	var body enrichBody
	if err := c.ShouldBindJSON(&body); err != nil {
		l.Warn().Err(err).Msg("invalid enrich request")
		badRequest(c, err.Error())
		return
	}

	cache, err := s.service.Enrich(ctx, domain.EnrichRequest{
		LeadID:     c.Param("leadID"),
		Network:    c.Param("network"),
		Identifier: body.Identifier,
		Features:   body.Features,
	})
	if err != nil {
		s.writeServiceError(c, err, "failed to enrich lead")
		return
	}
	success(c, cache)
}

// handleEnrichBatch enriches several leads on one network. Per-lead failures
// are reported inline; the request only fails as a whole when it is
// malformed.
func (s *Server) handleEnrichBatch(c *gin.Context) {
	ctx := c.Request.Context()
	l := logging.Ctx(ctx)

	var body batchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		l.Warn().Err(err).Msg("invalid batch request")
		badRequest(c, err.Error())
		return
	}
	if len(body.Leads) == 0 {
		badRequest(c, "leads must not be empty")
		return
	}
	if len(body.Leads) > maxBatchSize {
		badRequest(c, fmt.Sprintf("at most %d leads per batch", maxBatchSize))
		return
	}

	network := c.Param("network")
	reqs := make([]domain.EnrichRequest, len(body.Leads))
	for i, lead := range body.Leads {
		reqs[i] = domain.EnrichRequest{
			LeadID:     lead.LeadID,
			Network:    network,
			Identifier: lead.Identifier,
			Features:   lead.Features,
		}
	}

	results, err := s.service.EnrichBatch(ctx, reqs)
	if err != nil {
		s.writeServiceError(c, err, "failed to enrich leads")
		return
	}

	out := make([]batchItem, len(results))
	for i, r := range results {
		out[i] = batchItem{LeadID: r.Request.LeadID, Success: r.Err == nil, Data: r.Cache}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	l.Info().Str(logging.FieldNetwork, network).Int("leads", len(out)).Msg("batch enrichment complete")
	success(c, out)
}

func (s *Server) handleClearCache(c *gin.Context) {
	ctx := c.Request.Context()

	if err := s.service.ClearCache(ctx, c.Param("leadID"), c.Param("network")); err != nil {
		s.writeServiceError(c, err, "failed to clear social data")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) writeServiceError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, domain.ErrUnknownNetwork), errors.Is(err, domain.ErrCacheMiss):
		notFound(c, err.Error())
	case errors.Is(err, domain.ErrUnsupportedFeature), errors.Is(err, domain.ErrDuplicateRequest):
		badRequest(c, err.Error())
	default:
		l := logging.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(message)
		internalError(c, message)
	}
}
