// Package mockapi is an in-memory ticket service speaking the same HTTP
// surface as the real backend. It backs the end-to-end tests and the
// `tickcheck mock` command.
//
// Seeded state: users admin (ADMIN), manager_jane (MANAGER),
// employee_john (EMPLOYEE, managed by manager_jane) and support_sam
// (SUPPORT), all with password "password"; ticket 75 owned by
// employee_john, pending approval and unassigned.
package mockapi

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Options configures a Server.
type Options struct {
	Logger *zap.Logger

	// TokenSecret signs bearer tokens. Defaults to a fixed development
	// secret.
	TokenSecret string

	// NotifyDelay is how long a notification waits in the outbox before
	// it becomes visible.
	NotifyDelay time.Duration

	// PasswordCost is the bcrypt cost for seeded passwords.
	PasswordCost int
}

// Server is the mock backend.
type Server struct {
	app    *fiber.App
	state  *state
	tokens *tokenManager
	logger *zap.Logger
}

// New builds a Server with seeded state.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TokenSecret == "" {
		opts.TokenSecret = "tickcheck-mock-secret"
	}
	if opts.PasswordCost == 0 {
		opts.PasswordCost = bcrypt.DefaultCost
	}

	st, err := newState(opts.PasswordCost, opts.NotifyDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to seed mock state: %w", err)
	}

	s := &Server{
		state:  st,
		tokens: &tokenManager{secret: []byte(opts.TokenSecret)},
		logger: opts.Logger,
	}
	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Use(requestLogger(s.logger))

	s.app.Get("/actuator/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "UP"})
	})
	s.app.Post("/login", s.login)
	s.app.Get("/auth/me", s.authenticate, s.me)

	api := s.app.Group("/api", s.authenticate)
	api.Get("/users", s.listUsers)
	api.Post("/tickets", s.createTicket)
	api.Get("/tickets/:id", s.getTicket)
	api.Patch("/tickets/:id/approval", requireRole("MANAGER", "ADMIN"), s.setApproval)
	api.Patch("/tickets/:id/assign", requireRole("SUPPORT", "MANAGER", "ADMIN"), s.assign)
	api.Post("/kb", s.createArticle)
	api.Get("/notifications", s.listNotifications)
}

// Listener serves on ln until Shutdown.
func (s *Server) Listener(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops the server and discards undispatched notifications.
func (s *Server) Shutdown() error {
	s.state.stop()
	return s.app.Shutdown()
}

// Test runs req through the router without a network listener.
func (s *Server) Test(req *http.Request) (*http.Response, error) {
	return s.app.Test(req, -1)
}

// IssueToken signs a bearer token for a seeded user.
func (s *Server) IssueToken(username string, ttl time.Duration) (string, error) {
	u, ok := s.state.userByName(username)
	if !ok {
		return "", fmt.Errorf("unknown user %q", username)
	}
	return s.tokens.issue(u, ttl)
}

// OpenSession creates a session for a seeded user and returns the
// session id, as a browser would hold it in its cookie jar.
func (s *Server) OpenSession(username string) (string, error) {
	u, ok := s.state.userByName(username)
	if !ok {
		return "", fmt.Errorf("unknown user %q", username)
	}
	return s.state.openSession(u), nil
}

// UserID returns the id of a seeded user, or 0.
func (s *Server) UserID(username string) int64 {
	if u, ok := s.state.userByName(username); ok {
		return u.ID
	}
	return 0
}

func (s *Server) login(c *fiber.Ctx) error {
	u, ok := s.state.authenticate(c.FormValue("username"), c.FormValue("password"))
	if !ok {
		return c.Redirect("/login?error", fiber.StatusFound)
	}
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    s.state.openSession(u),
		Path:     "/",
		HTTPOnly: true,
	})
	return c.Redirect("/", fiber.StatusFound)
}

func (s *Server) me(c *fiber.Ctx) error {
	return c.JSON(principal(c))
}

func (s *Server) listUsers(c *fiber.Ctx) error {
	return c.JSON(s.state.listUsers())
}

func (s *Server) createTicket(c *fiber.Ctx) error {
	var in ticketInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	t, err := s.state.createTicket(in, principal(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (s *Server) getTicket(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	t, err := s.state.ticket(id)
	if err != nil {
		return err
	}
	return c.JSON(t)
}

func (s *Server) setApproval(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var body struct {
		ManagerApprovalStatus string `json:"managerApprovalStatus"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	t, err := s.state.setApproval(id, body.ManagerApprovalStatus)
	if err != nil {
		return err
	}
	return c.JSON(t)
}

func (s *Server) assign(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	userID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "userId query parameter must be an integer")
	}
	t, err := s.state.assign(id, userID)
	if err != nil {
		return err
	}
	return c.JSON(t)
}

func (s *Server) createArticle(c *fiber.Ctx) error {
	var a Article
	if err := c.BodyParser(&a); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	created, err := s.state.createArticle(a, principal(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (s *Server) listNotifications(c *fiber.Ctx) error {
	var ticketID int64
	if raw := c.Query("ticketId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "ticketId must be an integer")
		}
		ticketID = id
	}
	return c.JSON(s.state.notifications(ticketID))
}

func pathID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "ticket id must be an integer")
	}
	return id, nil
}

// handleError renders errors as {"error": {"code", "message"}}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		status = fe.Code
	case errors.Is(err, errNotFound), errors.Is(err, errUnknownUser):
		status = fiber.StatusNotFound
	case errors.Is(err, errBadApproval), errors.Is(err, errTitleMissing):
		status = fiber.StatusBadRequest
	}
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": fiber.Map{
		"code":    status,
		"message": err.Error(),
	}})
}

func requestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.Int("status", c.Response().StatusCode()))
		}
		logger.Debug("mock request", fields...)
		return err
	}
}
