package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog/log"

	"github.com/carebridge-ai/virtual-triage/agent/agents/orchestrator"
	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	statex "github.com/carebridge-ai/virtual-triage/agent/state"
	speechx "github.com/carebridge-ai/virtual-triage/pkg/speech"
)

type Config struct {
	Port         int           `split_words:"true" default:"8080"`
	ReadTimeout  time.Duration `split_words:"true" default:"15s"`
	WriteTimeout time.Duration `split_words:"true" default:"90s"`
}

// Server exposes the triage pipeline over HTTP and streams turn events to
// websocket subscribers.
type Server struct {
	app          *fiber.App
	orchestrator *orchestrator.Orchestrator
	synthesizer  *speechx.Synthesizer
	hub          *Hub
	port         int
}

func New(o *orchestrator.Orchestrator, synthesizer *speechx.Synthesizer, cfg Config) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "virtual-triage",
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	app.Use(recover.New())

	s := &Server{
		app:          app,
		orchestrator: o,
		synthesizer:  synthesizer,
		hub:          NewHub(),
		port:         cfg.Port,
	}
	s.routes()
	go s.hub.Run()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api/triage")

	api.Post("/sessions", s.createSession)
	api.Get("/sessions/:id", s.getSession)
	api.Delete("/sessions/:id", s.endSession)
	api.Post("/sessions/:id/turns", s.handleTurn)

	api.Use("/sessions/:id/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/sessions/:id/events", websocket.New(func(conn *websocket.Conn) {
		serveWs(s.hub, conn, conn.Params("id"))
	}))

	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

// Run blocks serving requests until the listener fails or is shut down.
func (s *Server) Run() error {
	return s.app.Listen(fmt.Sprintf(":%d", s.port))
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

type createSessionRequest struct {
	Language string `json:"language"`
}

type sessionResponse struct {
	Session *statex.SessionState `json:"session"`
}

type turnRequest struct {
	Text string `json:"text"`
}

type turnResponse struct {
	Narrative string               `json:"narrative"`
	Agent     string               `json:"agent"`
	Stage     statex.Stage         `json:"stage"`
	Session   *statex.SessionState `json:"session"`
	AudioB64  string               `json:"audio_b64,omitempty"`
}

type turnEvent struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id"`
	Narrative string       `json:"narrative"`
	Agent     string       `json:"agent"`
	Stage     statex.Stage `json:"stage"`
}

func (s *Server) createSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
		}
	}

	st, err := s.orchestrator.StartSession(c.Context(), req.Language)
	if err != nil {
		return s.mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(sessionResponse{Session: st})
}

func (s *Server) getSession(c *fiber.Ctx) error {
	st, err := s.orchestrator.GetSession(c.Context(), c.Params("id"))
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(sessionResponse{Session: st})
}

func (s *Server) endSession(c *fiber.Ctx) error {
	if err := s.orchestrator.EndSession(c.Context(), c.Params("id")); err != nil {
		return s.mapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleTurn(c *fiber.Ctx) error {
	var req turnRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}

	sessionID := c.Params("id")
	result, err := s.orchestrator.HandleTurn(c.Context(), sessionID, req.Text)
	if err != nil {
		return s.mapError(err)
	}

	resp := turnResponse{
		Narrative: result.Narrative,
		Agent:     string(result.Agent),
		Stage:     result.Session.Stage,
		Session:   result.Session,
	}

	if s.synthesizer != nil && c.QueryBool("speech") {
		audio, synthErr := s.synthesizer.Synthesize(c.Context(), result.Narrative)
		if synthErr != nil {
			log.Warn().Err(synthErr).Str("session_id", sessionID).Msg("speech synthesis failed")
		} else {
			resp.AudioB64 = base64.StdEncoding.EncodeToString(audio)
		}
	}

	s.hub.Publish(sessionID, turnEvent{
		Type:      "turn.completed",
		SessionID: sessionID,
		Narrative: result.Narrative,
		Agent:     string(result.Agent),
		Stage:     result.Session.Stage,
	})

	return c.JSON(resp)
}

func (s *Server) mapError(err error) error {
	switch {
	case errors.Is(err, orchestrator.ErrSessionBusy):
		return fiber.NewError(fiber.StatusConflict, "a turn is already in flight for this session")
	case errors.Is(err, contractx.ErrSessionSuperseded):
		return fiber.NewError(fiber.StatusConflict, "session was reset while the turn was processing")
	case errors.Is(err, orchestrator.ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	case errors.Is(err, orchestrator.ErrInvalidUtterance), errors.Is(err, orchestrator.ErrInvalidSession):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, "turn processing timed out")
	default:
		log.Error().Err(err).Msg("turn processing failed")
		return fiber.ErrInternalServerError
	}
}
