package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/information-sharing-networks/wiki-harness/internal/auth"
	"github.com/information-sharing-networks/wiki-harness/internal/database"
	"github.com/information-sharing-networks/wiki-harness/internal/logger"
	"github.com/information-sharing-networks/wiki-harness/internal/server/response"
)

// defaultRole is given to self-registered users.
const defaultRole = "User"

// request and responses

type LoginRequest struct {
	Username string `json:"username" example:"admin"`
	Password string `json:"password" example:"admin"`
}

type RegisterRequest struct {
	UserName string `json:"userName" example:"newuser"`
	Email    string `json:"email" example:"newuser@example.com"`
	Password string `json:"password" example:"s3cret"`
}

// LoginResponse is returned by both login and register.
// A failed login is reported with Success false rather than an error status.
type LoginResponse struct {
	Success      bool      `json:"success"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt,omitzero"`
	User         *UserInfo `json:"user,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

type UserInfo struct {
	ID     string   `json:"id" example:"6f1d3c1e-8a3b-4d7e-9c55-2b0f6f1a9e40"`
	Name   string   `json:"name" example:"admin"`
	Email  string   `json:"email" example:"admin@wiki.test"`
	Avatar string   `json:"avatar"`
	Roles  []string `json:"roles" example:"Admin"`
}

// LoginEnvelope documents the wrapped login response for swaggo.
type LoginEnvelope struct {
	Code int           `json:"code" example:"200"`
	Data LoginResponse `json:"data"`
}

const invalidCredentials = "invalid username or password"

// HandleLogin godoc
//
//	@Summary		Log in
//	@Description	Exchanges a user name (or email address) and password for a bearer token.
//	@Description	Wrong credentials return 200 with success=false.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginRequest	true	"Credentials"
//	@Success		200		{object}	LoginEnvelope
//	@Failure		400		{object}	response.ErrorEnvelope	"Malformed request"
//	@Router			/api/Auth/Login [post]
func HandleLogin(queries *database.Queries, tokens *auth.TokenIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logger.ContextRequestLogger(r.Context())

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, r, http.StatusBadRequest, "invalid request body", err)
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			response.Data(w, http.StatusOK, LoginResponse{ErrorMessage: "username and password are required"})
			return
		}

		user, err := queries.GetUserByLogin(r.Context(), req.Username)
		if err != nil {
			if database.IsNotFound(err) {
				reqLogger.Debug("login for unknown user", slog.String("username", req.Username))
				response.Data(w, http.StatusOK, LoginResponse{ErrorMessage: invalidCredentials})
				return
			}
			response.Error(w, r, http.StatusInternalServerError, "failed to look up user", err)
			return
		}

		if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
			if !errors.Is(err, auth.ErrPasswordMismatch) {
				reqLogger.Warn("stored password hash is unusable",
					slog.String("user_id", user.ID),
					slog.String("error", err.Error()),
				)
			}
			response.Data(w, http.StatusOK, LoginResponse{ErrorMessage: invalidCredentials})
			return
		}

		resp, err := issueLogin(r, queries, tokens, user)
		if err != nil {
			response.Error(w, r, http.StatusInternalServerError, "failed to issue token", err)
			return
		}

		logger.ContextWithLogAttrs(r.Context(), slog.String("user_id", user.ID))
		response.Data(w, http.StatusOK, resp)
	}
}

// HandleRegister godoc
//
//	@Summary		Register a user
//	@Description	Creates a user with the User role and logs them in.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RegisterRequest	true	"New user"
//	@Success		200		{object}	LoginEnvelope
//	@Failure		400		{object}	response.ErrorEnvelope	"Invalid user name, email or password"
//	@Failure		409		{object}	response.ErrorEnvelope	"User name or email already registered"
//	@Router			/api/Auth/Register [post]
func HandleRegister(queries *database.Queries, tokens *auth.TokenIssuer, bcryptCost int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, r, http.StatusBadRequest, "invalid request body", err)
			return
		}

		req.UserName = strings.TrimSpace(req.UserName)
		req.Email = strings.TrimSpace(req.Email)
		if req.UserName == "" {
			response.Error(w, r, http.StatusBadRequest, "userName is required", nil)
			return
		}
		if _, err := mail.ParseAddress(req.Email); err != nil {
			response.Error(w, r, http.StatusBadRequest, "email is invalid", err)
			return
		}

		hash, err := auth.HashPassword(req.Password, bcryptCost)
		if err != nil {
			response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
			return
		}

		now := time.Now().UTC()
		user := database.User{
			ID:           uuid.NewString(),
			Name:         req.UserName,
			Email:        req.Email,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err = queries.CreateUser(r.Context(), database.CreateUserParams{
			ID:           user.ID,
			Name:         user.Name,
			Email:        user.Email,
			PasswordHash: user.PasswordHash,
			CreatedAt:    user.CreatedAt,
			UpdatedAt:    user.UpdatedAt,
		})
		if err != nil {
			if database.IsUniqueViolation(err) {
				response.Error(w, r, http.StatusConflict, "user name or email already registered", nil)
				return
			}
			response.Error(w, r, http.StatusInternalServerError, "failed to create user", err)
			return
		}

		role, err := queries.GetRoleByName(r.Context(), defaultRole)
		switch {
		case err == nil:
			if err := queries.AddUserToRole(r.Context(), user.ID, role.ID); err != nil {
				response.Error(w, r, http.StatusInternalServerError, "failed to assign role", err)
				return
			}
		case database.IsNotFound(err):
			logger.ContextRequestLogger(r.Context()).Warn("default role missing, user registered without a role",
				slog.String("role", defaultRole))
		default:
			response.Error(w, r, http.StatusInternalServerError, "failed to look up role", err)
			return
		}

		resp, err := issueLogin(r, queries, tokens, user)
		if err != nil {
			response.Error(w, r, http.StatusInternalServerError, "failed to issue token", err)
			return
		}
		response.Data(w, http.StatusOK, resp)
	}
}

// HandleCurrentUser godoc
//
//	@Summary	Current user
//	@Tags		Auth
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	UserInfo
//	@Failure	401	{object}	response.ErrorEnvelope
//	@Router		/api/Auth/CurrentUser [get]
func HandleCurrentUser(queries *database.Queries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r, queries)
		if !ok {
			return
		}
		roles, err := queries.ListUserRoles(r.Context(), user.ID)
		if err != nil {
			response.Error(w, r, http.StatusInternalServerError, "failed to load roles", err)
			return
		}
		response.Data(w, http.StatusOK, userInfo(user, roles))
	}
}

// currentUser loads the user named by the request's token claims.
// It writes the error response and returns false when that is not possible.
func currentUser(w http.ResponseWriter, r *http.Request, queries *database.Queries) (database.User, bool) {
	claims, ok := auth.ContextClaims(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "authentication required", nil)
		return database.User{}, false
	}

	user, err := queries.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if database.IsNotFound(err) {
			response.Error(w, r, http.StatusUnauthorized, "user no longer exists", nil)
			return database.User{}, false
		}
		response.Error(w, r, http.StatusInternalServerError, "failed to load user", err)
		return database.User{}, false
	}
	return user, true
}

func issueLogin(r *http.Request, queries *database.Queries, tokens *auth.TokenIssuer, user database.User) (LoginResponse, error) {
	roles, err := queries.ListUserRoles(r.Context(), user.ID)
	if err != nil {
		return LoginResponse{}, err
	}

	token, expires, err := tokens.Issue(user.ID, user.Name, roles)
	if err != nil {
		return LoginResponse{}, err
	}

	return LoginResponse{
		Success:      true,
		Token:        token,
		RefreshToken: uuid.NewString(),
		ExpiresAt:    expires,
		User:         userInfo(user, roles),
	}, nil
}

func userInfo(u database.User, roles []string) *UserInfo {
	if roles == nil {
		roles = []string{}
	}
	return &UserInfo{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Avatar: u.Avatar,
		Roles:  roles,
	}
}
