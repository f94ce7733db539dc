package handlers

import (
	"net/http"
	"time"

	"github.com/information-sharing-networks/wiki-harness/internal/database"
	"github.com/information-sharing-networks/wiki-harness/internal/server/response"
)

type UserProfile struct {
	UserInfo
	Bio       string    `json:"bio"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HandleUserProfile godoc
//
//	@Summary	Profile of the current user
//	@Tags		UserProfile
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	UserProfile
//	@Failure	401	{object}	response.ErrorEnvelope
//	@Router		/api/UserProfile/ [get]
func HandleUserProfile(queries *database.Queries) http.HandlerFunc {
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

		response.Data(w, http.StatusOK, UserProfile{
			UserInfo:  *userInfo(user, roles),
			Bio:       user.Bio,
			CreatedAt: user.CreatedAt,
			UpdatedAt: user.UpdatedAt,
		})
	}
}
