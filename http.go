package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/goliatone/go-admin-auth/middleware/jwtware"
	"github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const sessionContextKey = "admin_session"

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// RegisterAuthRoutes mounts the auth endpoints. The dev login route only
// exists when the controller has dev login enabled.
func RegisterAuthRoutes(app fiber.Router, controller *AuthController) {
	if controller.DevLoginEnabled {
		app.Post(controller.Routes.DevLogin, controller.DevLoginPost).Name("auth.dev-login")
	}

	app.Post(controller.Routes.VerifyIdentity, controller.VerifyIdentityPost).Name("auth.verify-identity")
	app.Post(controller.Routes.VerifyAdminQR, controller.VerifyAdminQRPost).Name("auth.verify-admin-qr")
	app.Post(controller.Routes.Refresh, controller.RefreshPost).Name("auth.refresh")
	app.Post(controller.Routes.Logout, controller.LogoutPost).Name("auth.logout")

	app.Get(controller.Routes.Validate,
		ProtectedRoute(controller.Sessions, controller.SessionHeader),
		controller.ValidateGet,
	).Name("auth.validate")
}

// RegisterMetricsRoute exposes gatherer on path
func RegisterMetricsRoute(app fiber.Router, path string, gatherer prometheus.Gatherer) {
	app.Get(path, adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// ProtectedRoute requires a valid access token and session token pair.
// Listeners run after validation and may reject the request.
func ProtectedRoute(sessions SessionManager, sessionHeader string, listeners ...ValidationListener) fiber.Handler {
	if sessionHeader == "" {
		sessionHeader = DefaultSessionHeader
	}
	cfg := jwtware.Config{
		Validator:     sessionValidator{sessions: sessions},
		ContextKey:    sessionContextKey,
		SessionLookup: "header:" + sessionHeader,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return ErrSessionInvalid
		},
		ContextEnricher: ContextEnricherAdapter,
	}
	RegisterValidationListeners(&cfg, listeners...)
	return jwtware.New(cfg)
}

// GetSession returns the session stored by ProtectedRoute
func GetSession(c *fiber.Ctx, key string) (*Session, error) {
	if key == "" {
		key = sessionContextKey
	}
	session, ok := c.Locals(key).(*Session)
	if !ok || session == nil {
		return nil, ErrSessionInvalid
	}
	return session, nil
}

type sessionValidator struct {
	sessions SessionManager
}

func (v sessionValidator) ValidateTokens(ctx context.Context, accessToken, sessionToken string) (jwtware.Session, error) {
	session, err := v.sessions.Validate(ctx, accessToken, sessionToken)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ErrorHandler renders errors as ErrorResponse with the status carried by
// the error. Unknown errors become a 500 without details.
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defaultLogger()
	}
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{Error: fiberErr.Message})
		}

		var richErr *errors.Error
		if !errors.As(err, &richErr) {
			logger.Error("unhandled request error", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
				Error: "internal server error",
			})
		}

		status := richErr.Code
		if status == 0 {
			status = fiber.StatusInternalServerError
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed", "path", c.Path(), "error", richErr.Message, "category", richErr.Category)
		} else {
			logger.Debug("request rejected", "path", c.Path(), "text_code", richErr.TextCode)
		}

		return c.Status(status).JSON(ErrorResponse{
			Error: richErr.Message,
			Code:  richErr.TextCode,
		})
	}
}
