package v1

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/llamamind/mindmap/server/auth"
	"github.com/llamamind/mindmap/store"
)

// ─────────────────────────────────────────────────────────────────────────────
// Request / Response types
// ─────────────────────────────────────────────────────────────────────────────

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=80"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updateProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=80"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

type userResponse struct {
	ID        int32  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedTs int64  `json:"createdTs"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	User        userResponse `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func convertUser(user *store.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role.String(),
		CreatedTs: user.CreatedTs,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Route registration
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) registerAuthRoutes(e *echo.Echo) {
	g := e.Group("/api/auth")
	g.POST("/register", s.register)
	g.POST("/login", s.login)
	g.GET("/profile", s.getProfile)
	g.PUT("/profile", s.updateProfile)
	g.POST("/change-password", s.changePassword)
	g.POST("/logout", s.logout)
}

func (s *APIV1Service) register(c *echo.Context) error {
	ctx := c.Request().Context()
	var req registerRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := s.Store.GetUser(ctx, &store.FindUser{Email: &req.Email})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if existing != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "email already registered")
	}
	existing, err = s.Store.GetUser(ctx, &store.FindUser{Username: &req.Username})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if existing != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "username already taken")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	user, err := s.Store.CreateUser(ctx, &store.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		// Left empty so the store makes the first account ADMIN.
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
	}
	s.audit(c, user.ID, store.AuditUserRegistered, map[string]any{"username": user.Username, "email": user.Email})

	return c.JSON(http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user_id": user.ID,
	})
}

func (s *APIV1Service) login(c *echo.Context) error {
	ctx := c.Request().Context()
	var req loginRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.Store.GetUser(ctx, &store.FindUser{Email: &email})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if user == nil || !auth.ComparePassword(user.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token, err := s.authenticator.GenerateAccessToken(user, s.Profile.TokenDuration)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.SetCookie(&http.Cookie{
		Name:     auth.AccessTokenCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.Profile.TokenDuration.Seconds()),
		Secure:   !s.Profile.IsDev(),
	})
	s.audit(c, user.ID, store.AuditUserLogin, map[string]any{"email": email})

	return c.JSON(http.StatusOK, loginResponse{
		AccessToken: token,
		User:        convertUser(user),
	})
}

func (s *APIV1Service) getProfile(c *echo.Context) error {
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convertUser(user))
}

func (s *APIV1Service) updateProfile(c *echo.Context) error {
	ctx := c.Request().Context()
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	var req updateProfileRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	update := &store.UpdateUser{ID: user.ID}
	updatedFields := []string{}
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		existing, err := s.Store.GetUser(ctx, &store.FindUser{Username: &username})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if existing != nil && existing.ID != user.ID {
			return echo.NewHTTPError(http.StatusBadRequest, "username already taken")
		}
		update.Username = &username
		updatedFields = append(updatedFields, "username")
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		existing, err := s.Store.GetUser(ctx, &store.FindUser{Email: &email})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if existing != nil && existing.ID != user.ID {
			return echo.NewHTTPError(http.StatusBadRequest, "email already registered")
		}
		update.Email = &email
		updatedFields = append(updatedFields, "email")
	}

	updated, err := s.Store.UpdateUser(ctx, update)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update profile")
	}
	if len(updatedFields) > 0 {
		s.audit(c, user.ID, store.AuditProfileUpdated, map[string]any{"updated_fields": updatedFields})
	}
	return c.JSON(http.StatusOK, convertUser(updated))
}

func (s *APIV1Service) changePassword(c *echo.Context) error {
	ctx := c.Request().Context()
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	var req changePasswordRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	if !auth.ComparePassword(user.PasswordHash, req.CurrentPassword) {
		return echo.NewHTTPError(http.StatusUnauthorized, "current password is incorrect")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if _, err := s.Store.UpdateUser(ctx, &store.UpdateUser{ID: user.ID, PasswordHash: &hash}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to change password")
	}
	s.audit(c, user.ID, store.AuditPasswordChanged, nil)
	return c.JSON(http.StatusOK, messageResponse{Message: "Password changed successfully"})
}

// logout is stateless: the client drops its token. The audit entry is best
// effort and a failure to write it only downgrades the response to 202.
func (s *APIV1Service) logout(c *echo.Context) error {
	ctx := c.Request().Context()
	token := auth.ExtractToken(c.Request().Header.Get("Authorization"), c.Request().Header.Get("Cookie"))
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	userID, _, err := s.authenticator.ParseAccessToken(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	c.SetCookie(&http.Cookie{
		Name:     auth.AccessTokenCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	degraded := map[string]any{"message": "Logout completed", "degraded": true}
	user, err := s.Store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil || user == nil {
		slog.Warn("logout for unknown user", "user", userID, "err", err)
		return c.JSON(http.StatusAccepted, degraded)
	}
	if _, err := s.Store.CreateAuditLog(ctx, &store.AuditLog{
		UserID:    user.ID,
		EventType: store.AuditUserLogout,
	}); err != nil {
		slog.Warn("failed to record logout", "user", user.ID, "err", err)
		return c.JSON(http.StatusAccepted, degraded)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Logout successful"})
}

// audit appends an entry for an action that has already been committed.
func (s *APIV1Service) audit(c *echo.Context, userID int32, eventType string, data map[string]any) {
	if _, err := s.Store.CreateAuditLog(c.Request().Context(), &store.AuditLog{
		UserID:    userID,
		EventType: eventType,
		EventData: data,
	}); err != nil {
		slog.Error("failed to write audit log", "event", eventType, "user", userID, "err", err)
	}
}
