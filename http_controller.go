package auth

import (
	"io"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

type AuthControllerRoutes struct {
	DevLogin       string
	VerifyIdentity string
	VerifyAdminQR  string
	Refresh        string
	Logout         string
	Validate       string
}

type AuthController struct {
	Debug           bool
	Logger          Logger
	Auther          Authenticator
	Sessions        SessionManager
	Routes          *AuthControllerRoutes
	SessionHeader   string
	DevLoginEnabled bool
	MaxArtifactSize int64
}

type AuthControllerOption func(*AuthController) *AuthController

func WithAuthenticator(a Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = a
		return c
	}
}

func WithSessionManager(m SessionManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Sessions = m
		return c
	}
}

func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

// WithControllerConfig reads the session header and dev mode from cfg
func WithControllerConfig(cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if h := cfg.GetSessionHeader(); h != "" {
			c.SessionHeader = h
		}
		c.DevLoginEnabled = DevLoginCompiledIn && cfg.GetMode() == ModeDev
		return c
	}
}

func WithMaxArtifactSize(n int64) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if n > 0 {
			c.MaxArtifactSize = n
		}
		return c
	}
}

func WithDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:          defaultLogger(),
		SessionHeader:   DefaultSessionHeader,
		MaxArtifactSize: 2 << 20,
		Routes: &AuthControllerRoutes{
			DevLogin:       "/auth/dev-login",
			VerifyIdentity: "/auth/verify-identity",
			VerifyAdminQR:  "/auth/verify-admin-qr",
			Refresh:        "/auth/refresh",
			Logout:         "/auth/logout",
			Validate:       "/auth/validate",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Sessions == nil {
		panic("Missing SessionManager in auth controller...")
	}

	return c
}

// DevLoginRequest payload
type DevLoginRequest struct {
	Phone    string `form:"phone" json:"phone"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r DevLoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Phone, validation.Required, validation.Length(4, 32)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 256)),
	)
}

// IdentityRequest payload
type IdentityRequest struct {
	Assertion string `form:"assertion" json:"assertion"`
}

// Validate will run validation rules
func (r IdentityRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Assertion, validation.Required, validation.Length(16, 16384)),
	)
}

func (a *AuthController) DevLoginPost(c *fiber.Ctx) error {
	payload := new(DevLoginRequest)
	if err := c.BodyParser(payload); err != nil {
		return ErrInvalidPayload
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Debug("dev login payload rejected", "error", err)
		return ErrInvalidPayload
	}

	pair, err := a.Auther.DevLogin(c.UserContext(), payload.Phone, payload.Password)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(pair)
}

func (a *AuthController) VerifyIdentityPost(c *fiber.Ctx) error {
	payload := new(IdentityRequest)
	if err := c.BodyParser(payload); err != nil {
		return ErrInvalidPayload
	}

	if err := payload.Validate(); err != nil {
		return ErrAssertionInvalid
	}

	identity, err := a.Auther.CheckIdentity(c.UserContext(), payload.Assertion)
	if err != nil {
		return err
	}

	if a.Debug {
		a.Logger.Debug("identity verified", "identity", print.MaybePrettyJSON(identity))
	}

	return c.Status(fiber.StatusOK).JSON(identity)
}

func (a *AuthController) VerifyAdminQRPost(c *fiber.Ctx) error {
	payload := IdentityRequest{Assertion: c.FormValue("assertion")}
	if err := payload.Validate(); err != nil {
		return ErrAssertionInvalid
	}

	image, err := a.readArtifact(c)
	if err != nil {
		return err
	}

	pair, err := a.Auther.VerifyAdminQR(c.UserContext(), payload.Assertion, image)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(pair)
}

func (a *AuthController) RefreshPost(c *fiber.Ctx) error {
	access, session := a.tokens(c)
	if access == "" || session == "" {
		return ErrSessionInvalid
	}

	pair, err := a.Sessions.Refresh(c.UserContext(), access, session)
	if err != nil {
		return ErrSessionInvalid
	}

	return c.Status(fiber.StatusOK).JSON(pair)
}

// LogoutPost always answers 204, revocation is best effort
func (a *AuthController) LogoutPost(c *fiber.Ctx) error {
	_, session := a.tokens(c)
	if err := a.Sessions.Revoke(c.UserContext(), session); err != nil {
		a.Logger.Warn("logout revoke failed", "error", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *AuthController) ValidateGet(c *fiber.Ctx) error {
	session, err := GetSession(c, sessionContextKey)
	if err != nil {
		return ErrSessionInvalid
	}
	return c.Status(fiber.StatusOK).JSON(session)
}

func (a *AuthController) tokens(c *fiber.Ctx) (string, string) {
	var access string
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		access = strings.TrimSpace(header[7:])
	}
	return access, strings.TrimSpace(c.Get(a.SessionHeader))
}

func (a *AuthController) readArtifact(c *fiber.Ctx) ([]byte, error) {
	fh, err := c.FormFile("qr")
	if err != nil || fh == nil || fh.Size == 0 {
		return nil, ErrMissingArtifact
	}
	if fh.Size > a.MaxArtifactSize {
		return nil, ErrInvalidPayload
	}

	f, err := fh.Open()
	if err != nil {
		return nil, ErrMissingArtifact
	}
	defer f.Close()

	image, err := io.ReadAll(io.LimitReader(f, a.MaxArtifactSize+1))
	if err != nil || int64(len(image)) > a.MaxArtifactSize {
		return nil, ErrInvalidPayload
	}
	return image, nil
}
