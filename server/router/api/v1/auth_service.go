package v1

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/acswi/programchat/server/auth"
	pipeerr "github.com/acswi/programchat/server/internal/errors"
	"github.com/acswi/programchat/store"
)

const userContextKey = "programchat.user"

type registerRequest struct {
	LastName string `json:"last_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Register creates a new user account.
func (s *APIV1Service) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return sendError(c, pipeerr.InvalidArgument("malformed request body"))
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return sendError(c, pipeerr.InvalidArgument("invalid email address"))
	}
	if len(req.Password) < 8 {
		return sendError(c, pipeerr.InvalidArgument("password must be at least 8 characters"))
	}

	ctx := c.Request().Context()
	if existing, err := s.Store.GetUser(ctx, &store.FindUser{Email: &req.Email}); err != nil {
		return sendError(c, pipeerr.PersistenceFailure(err))
	} else if existing != nil {
		return sendError(c, pipeerr.InvalidArgument("an account with this email already exists"))
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return sendError(c, pipeerr.PersistenceFailure(err))
	}

	user, err := s.Store.CreateUser(ctx, &store.User{
		LastName:     strings.TrimSpace(req.LastName),
		Email:        req.Email,
		PasswordHash: hash,
		Status:       store.Active,
		CreatedTs:    time.Now().UTC().Unix(),
	})
	if err != nil {
		return sendError(c, pipeerr.PersistenceFailure(err))
	}

	slog.Info("user registered", "user_id", user.ID)
	return c.JSON(http.StatusCreated, map[string]any{"id": user.ID})
}

// Login verifies credentials and issues a session token. A successful
// login bumps the visit counter; legacy password hashes are upgraded to
// bcrypt in place.
func (s *APIV1Service) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return sendError(c, pipeerr.InvalidArgument("malformed request body"))
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	ctx := c.Request().Context()
	user, err := s.Store.GetUser(ctx, &store.FindUser{Email: &req.Email})
	if err != nil {
		return sendError(c, pipeerr.PersistenceFailure(err))
	}
	if user == nil || user.Status != store.Active {
		return sendError(c, pipeerr.Unauthorized("invalid email or password"))
	}

	ok, needsUpgrade := auth.VerifyPassword(req.Password, user.PasswordHash)
	if !ok {
		return sendError(c, pipeerr.Unauthorized("invalid email or password"))
	}

	update := &store.UpdateUser{ID: user.ID}
	visits := user.VisitCount + 1
	update.VisitCount = &visits
	if needsUpgrade {
		if hash, hashErr := auth.HashPassword(req.Password); hashErr == nil {
			update.PasswordHash = &hash
		}
	}
	if _, err := s.Store.UpdateUser(ctx, update); err != nil {
		slog.Warn("failed to update user on login", "user_id", user.ID, "error", err)
	}

	token, err := auth.GenerateAccessToken(user.ID, user.Email, time.Now().Add(auth.AccessTokenDuration), []byte(s.Secret))
	if err != nil {
		return sendError(c, pipeerr.PersistenceFailure(err))
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token})
}

// AuthMiddleware authenticates the bearer token and loads the user.
func (s *APIV1Service) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			return sendError(c, pipeerr.Unauthorized("missing bearer token"))
		}

		claims, err := auth.Authenticate(token, []byte(s.Secret))
		if err != nil {
			return sendError(c, pipeerr.Unauthorized("invalid or expired token"))
		}
		userID, err := claims.UserID()
		if err != nil {
			return sendError(c, pipeerr.Unauthorized("invalid token subject"))
		}

		user, err := s.Store.GetUser(c.Request().Context(), &store.FindUser{ID: &userID})
		if err != nil {
			return sendError(c, pipeerr.PersistenceFailure(err))
		}
		if user == nil || user.Status != store.Active {
			return sendError(c, pipeerr.Unauthorized("account is not active"))
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

// AdminMiddleware restricts routes to the configured admin account.
func (s *APIV1Service) AdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := currentUser(c)
		if user == nil || !s.Profile.IsAdminUser(user.Email) {
			return sendError(c, pipeerr.AccessDenied("admin access required"))
		}
		return next(c)
	}
}

func currentUser(c echo.Context) *store.User {
	user, _ := c.Get(userContextKey).(*store.User)
	return user
}
