// Package server exposes the parser and the cadence classifier over HTTP.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cleared-dev/mailtx/internal/buildinfo"
	"github.com/cleared-dev/mailtx/internal/history"
	"github.com/cleared-dev/mailtx/internal/logger"
	"github.com/cleared-dev/mailtx/internal/metrics"
	"github.com/cleared-dev/mailtx/internal/model"
	"github.com/cleared-dev/mailtx/internal/parsing"
	"github.com/cleared-dev/mailtx/internal/prefilter"
	"github.com/cleared-dev/mailtx/internal/recurrence"
	"github.com/cleared-dev/mailtx/internal/synclog"
)

// Options wires the server's collaborators. Store and RepoRoot are optional;
// without them requests asking to persist are rejected.
type Options struct {
	Orchestrator *parsing.Orchestrator
	Filter       *prefilter.Filter
	Store        *history.Store
	RepoRoot     string
	Gatherer     prometheus.Gatherer
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

// Server is the HTTP surface of mailtx.
type Server struct {
	app  *fiber.App
	opts Options
}

// New builds the fiber app and registers all routes.
func New(opts Options) *Server {
	if opts.Filter == nil {
		opts.Filter = &prefilter.Filter{}
	}
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "mailtx",
			DisableStartupMessage: true,
			BodyLimit:             32 << 20,
		}),
		opts: opts,
	}
	s.app.Use(recover.New())
	s.app.Use(s.requestLogger)
	s.app.Get("/api/health", HandleHealth)
	s.app.Post("/api/parse", s.handleParse)
	s.app.Post("/api/recurring", s.handleRecurring)
	if opts.Gatherer != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

// App returns the underlying fiber app, for tests and embedding.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() { errc <- s.app.Listen(addr) }()

	s.opts.Logger.Info().Str("addr", addr).Msg("server listening")
	select {
	case err := <-errc:
		return fmt.Errorf("listening on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// requestLogger attaches a request-scoped logger to the user context and logs
// each request once it completes.
func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	reqID := c.Get(fiber.HeaderXRequestID)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	c.Set(fiber.HeaderXRequestID, reqID)

	log := logger.WithFields(s.opts.Logger, map[string]any{
		"request_id": reqID,
		"method":     c.Method(),
		"path":       c.Path(),
	})
	c.SetUserContext(logger.WithContext(c.UserContext(), log))

	err := c.Next()
	status := c.Response().StatusCode()
	if fe, ok := err.(*fiber.Error); ok {
		status = fe.Code
	}
	log.Debug().Int("status", status).Dur("elapsed", time.Since(start)).Msg("request")
	return err
}

// HandleHealth reports liveness and the build version.
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

// ParseRequest is the body of POST /api/parse.
type ParseRequest struct {
	Mails []model.RawMail `json:"mails"`
	Store bool            `json:"store"`
}

// ParseResponse is the reply of POST /api/parse.
type ParseResponse struct {
	Transactions []model.ParsedTransaction `json:"transactions"`
	Count        int                       `json:"count"`
	Filtered     int                       `json:"filtered"`
	Stored       int                       `json:"stored"`
	Outcomes     map[string]int            `json:"outcomes"`
}

func (s *Server) handleParse(c *fiber.Ctx) error {
	var req ParseRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	if req.Store && s.opts.Store == nil {
		return badRequest(c, "server has no history store configured")
	}

	kept, dropped := s.opts.Filter.Apply(req.Mails)
	filtered := 0
	for _, n := range dropped {
		filtered += n
	}
	for range filtered {
		s.opts.Metrics.Mail(metrics.OutcomeFiltered)
	}

	rep, err := s.opts.Orchestrator.RunReport(c.UserContext(), kept)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}

	resp := ParseResponse{
		Transactions: rep.Transactions,
		Count:        len(rep.Transactions),
		Filtered:     filtered,
		Outcomes:     rep.Counts(),
	}
	if resp.Transactions == nil {
		resp.Transactions = []model.ParsedTransaction{}
	}

	if req.Store {
		n, err := s.opts.Store.AppendTransactions(rep.Transactions)
		if err != nil {
			log := logger.FromContext(c.UserContext())
			log.Error().Err(err).Msg("storing transactions")
			return fiber.NewError(fiber.StatusInternalServerError, "storing transactions failed")
		}
		resp.Stored = n
		s.logSync(c, synclog.ActionParse, len(kept), n, rep.Summary())
	}
	return c.JSON(resp)
}

// RecurringRequest is the body of POST /api/recurring. With FromHistory set,
// the stored transaction history is classified instead of Transactions.
type RecurringRequest struct {
	Transactions []model.ParsedTransaction `json:"transactions"`
	FromHistory  bool                      `json:"fromHistory"`
}

// RecurringResponse is the reply of POST /api/recurring.
type RecurringResponse struct {
	Recurring []model.RecurringPayment `json:"recurring"`
	Count     int                      `json:"count"`
}

func (s *Server) handleRecurring(c *fiber.Ctx) error {
	var req RecurringRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	txns := req.Transactions
	if req.FromHistory {
		if s.opts.Store == nil {
			return badRequest(c, "server has no history store configured")
		}
		var err error
		if txns, err = s.opts.Store.ReadTransactions(); err != nil {
			log := logger.FromContext(c.UserContext())
			log.Error().Err(err).Msg("reading history")
			return fiber.NewError(fiber.StatusInternalServerError, "reading history failed")
		}
	}

	recs := recurrence.Classify(txns)
	byCadence := make(map[string]int)
	for _, r := range recs {
		byCadence[string(r.Cadence)]++
	}
	s.opts.Metrics.SetRecurring(byCadence)

	if recs == nil {
		recs = []model.RecurringPayment{}
	}
	return c.JSON(RecurringResponse{Recurring: recs, Count: len(recs)})
}

func (s *Server) logSync(c *fiber.Ctx, action string, mails, records int, details string) {
	if s.opts.RepoRoot == "" {
		return
	}
	entry := synclog.Entry{
		Timestamp: time.Now(),
		RunID:     uuid.NewString(),
		Action:    action,
		Source:    "api",
		Mails:     mails,
		Records:   records,
		Details:   details,
	}
	if err := synclog.Append(s.opts.RepoRoot, []synclog.Entry{entry}); err != nil {
		log := logger.FromContext(c.UserContext())
		log.Warn().Err(err).Msg("writing sync log")
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}
