package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/config"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/db"
	"github.com/Rogue-Bear-Innovations/notely-back/internal/service"
)

const (
	localUser      = "user"
	localToken     = "token"
	localRequestID = "request_id"

	readyTimeout = 2 * time.Second
)

var (
	Module = fx.Provide(
		NewHTTPServer,
	)
)

type (
	AuthReq struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResp struct {
		Token string `json:"token"`
		Email string `json:"email"`
	}

	UserResp struct {
		ID    uint64 `json:"id"`
		Email string `json:"email"`
	}

	TopicReq struct {
		Name string `json:"name" validate:"required"`
	}

	JoinReq struct {
		Code string `json:"code" validate:"required"`
	}

	TopicResp struct {
		ID        uint64   `json:"id"`
		Name      string   `json:"name"`
		OwnerID   uint64   `json:"ownerId"`
		ShareCode string   `json:"shareCode"`
		Members   []uint64 `json:"members"`
	}

	NoteCreateReq struct {
		Title   string   `json:"title" validate:"required"`
		Content string   `json:"content"`
		Color   string   `json:"color" validate:"omitempty,oneof=yellow blue green red"`
		X       *float64 `json:"x"`
		Y       *float64 `json:"y"`
		Width   *float64 `json:"width" validate:"omitempty,gt=0"`
		Height  *float64 `json:"height" validate:"omitempty,gt=0"`
		TopicID *uint64  `json:"topicId"`
	}

	NoteUpdateReq struct {
		Title   *string  `json:"title"`
		Content *string  `json:"content"`
		Color   *string  `json:"color" validate:"omitempty,oneof=yellow blue green red"`
		X       *float64 `json:"x"`
		Y       *float64 `json:"y"`
		Width   *float64 `json:"width" validate:"omitempty,gt=0"`
		Height  *float64 `json:"height" validate:"omitempty,gt=0"`
	}

	NoteResp struct {
		ID        uint64    `json:"id"`
		Title     string    `json:"title"`
		Content   string    `json:"content"`
		Color     string    `json:"color"`
		X         float64   `json:"x"`
		Y         float64   `json:"y"`
		Width     float64   `json:"width"`
		Height    float64   `json:"height"`
		OwnerID   uint64    `json:"ownerId"`
		TopicID   *uint64   `json:"topicId"`
		CreatedAt time.Time `json:"createdAt"`
	}

	ErrorResp struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}

	HTTPServer struct {
		app       *fiber.App
		auth      *service.Auth
		board     *service.Board
		gdb       *gorm.DB
		validator *validator.Validate
		logger    *zap.SugaredLogger
	}
)

func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, auth *service.Auth, board *service.Board, gdb *gorm.DB, logger *zap.SugaredLogger) *HTTPServer {
	instance := New(cfg, auth, board, gdb, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.HTTPAddr())
			if err != nil {
				return errors.Wrap(err, "listen http")
			}
			logger.Infow("Starting HTTP server.", "addr", ln.Addr().String())
			go func() {
				if err := instance.app.Listener(ln); err != nil {
					logger.Errorw("HTTP server stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server.")
			return instance.app.ShutdownWithContext(ctx)
		},
	})

	return instance
}

// New builds the fiber app with every route registered. It does not listen.
func New(cfg *config.Config, auth *service.Auth, board *service.Board, gdb *gorm.DB, logger *zap.SugaredLogger) *HTTPServer {
	instance := &HTTPServer{
		auth:      auth,
		board:     board,
		gdb:       gdb,
		validator: newValidator(),
		logger:    logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               "notely",
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          instance.ErrorHandler,
	})

	app.Use(instance.RequestLogger)
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Authorization, X-Request-ID",
		ExposeHeaders: "X-Request-ID",
	}))

	api := app.Group("/api")
	api.Get("/health", instance.Health)
	api.Get("/ready", instance.Ready)

	authG := api.Group("/auth")
	authG.Post("/register", instance.Register)
	authG.Post("/login", instance.Login)
	authG.Post("/logout", instance.AuthMiddleware, instance.Logout)
	authG.Get("/me", instance.AuthMiddleware, instance.Me)

	noteG := api.Group("/notes", instance.AuthMiddleware)
	noteG.Get("", instance.NoteList)
	noteG.Post("", instance.NoteCreate)
	noteG.Put("", instance.NoteUpdate)
	noteG.Delete("", instance.NoteDelete)

	topicG := api.Group("/topics", instance.AuthMiddleware)
	topicG.Get("", instance.TopicList)
	topicG.Post("", instance.TopicCreate)
	topicG.Put("", instance.TopicUpdate)
	topicG.Delete("", instance.TopicDelete)
	topicG.Post("/join", instance.TopicJoin)

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	instance.app = app
	return instance
}

func (s *HTTPServer) App() *fiber.App {
	return s.app
}

// RequestLogger tags the request with an id and logs it once it is done.
// Errors are rendered here so the logged status is the one sent.
func (s *HTTPServer) RequestLogger(c *fiber.Ctx) error {
	requestID := c.Get(fiber.HeaderXRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	c.Locals(localRequestID, requestID)
	c.Set(fiber.HeaderXRequestID, requestID)

	started := time.Now()
	if err := c.Next(); err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	s.logger.Infow("request",
		"request_id", requestID,
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

// AuthMiddleware takes the raw token from the Authorization header. A
// "Bearer " prefix is tolerated.
func (s *HTTPServer) AuthMiddleware(c *fiber.Ctx) error {
	token := tokenFromHeader(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	user, err := s.auth.Authenticate(c.UserContext(), token)
	if err != nil {
		return errors.Wrap(err, "authenticate")
	}
	if user == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	c.Locals(localUser, user)
	c.Locals(localToken, token)
	return c.Next()
}

func (s *HTTPServer) ErrorHandler(c *fiber.Ctx, err error) error {
	status, code, message := mapError(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Errorw("request failed",
			"request_id", c.Locals(localRequestID),
			"path", c.Path(),
			"error", err,
		)
	}
	return c.Status(status).JSON(ErrorResp{
		Code:  code,
		Error: message,
	})
}

func mapError(err error) (status int, code, message string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, codeForStatus(fe.Code), fe.Message
	}

	message = err.Error()
	var se *service.Error
	if errors.As(err, &se) {
		message = se.Message
	}

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return fiber.StatusBadRequest, "INVALID_INPUT", message
	case errors.Is(err, service.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, "INVALID_CREDENTIALS", message
	case errors.Is(err, service.ErrUnauthenticated):
		return fiber.StatusUnauthorized, "UNAUTHENTICATED", message
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden, "FORBIDDEN", message
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound, "NOT_FOUND", message
	case errors.Is(err, service.ErrConflict):
		return fiber.StatusConflict, "CONFLICT", message
	}
	return fiber.StatusInternalServerError, "INTERNAL", "internal server error"
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return "INVALID_INPUT"
	case fiber.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusRequestEntityTooLarge:
		return "TOO_LARGE"
	}
	if status >= fiber.StatusInternalServerError {
		return "INTERNAL"
	}
	return "ERROR"
}

////////

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *HTTPServer) BindAndValidate(c *fiber.Ctx, v interface{}) error {
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if err := s.validator.Struct(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

// censorBody masks the password of an auth request body for logging.
func censorBody(body []byte) []byte {
	fields := make(map[string]interface{})
	if err := json.Unmarshal(body, &fields); err != nil {
		return []byte(`"<unparsable>"`)
	}
	if _, ok := fields["password"]; ok {
		fields["password"] = "$censored"
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return []byte(`"<unparsable>"`)
	}
	return out
}

func tokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		header = header[7:]
	}
	return strings.TrimSpace(header)
}

func GetUserFromContext(c *fiber.Ctx) (*db.User, error) {
	user, ok := c.Locals(localUser).(*db.User)
	if !ok || user == nil {
		return nil, errors.New("no user found in context")
	}
	return user, nil
}

func GetAndParseQuery(c *fiber.Ctx, name string) (uint64, error) {
	v := c.Query(name)
	if v == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("missing query param '%s'", name))
	}
	vv, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid query param '%s'", name))
	}
	return vv, nil
}

func (s *HTTPServer) pingDB(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	return db.Ping(ctx, s.gdb)
}
