package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/information-sharing-networks/wiki-harness/internal/database"
	"github.com/information-sharing-networks/wiki-harness/internal/server/response"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type RepositoryItem struct {
	ID               string    `json:"id"`
	Name             string    `json:"name" example:"test-repo"`
	OrganizationName string    `json:"organizationName" example:"testorg"`
	Address          string    `json:"address" example:"https://github.com/testorg/test-repo.git"`
	Description      string    `json:"description"`
	Branch           string    `json:"branch" example:"main"`
	Type             string    `json:"type" example:"git"`
	Status           string    `json:"status" example:"Completed"`
	Stars            int64     `json:"stars"`
	Forks            int64     `json:"forks"`
	CreatedAt        time.Time `json:"createdAt"`
}

type RepositoryListResponse struct {
	Total int64            `json:"total" example:"3"`
	Items []RepositoryItem `json:"items"`
}

type CatalogItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" example:"Getting Started"`
	Url         string    `json:"url" example:"getting-started"`
	Description string    `json:"description"`
	IsCompleted bool      `json:"isCompleted"`
	Order       int64     `json:"order"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HandleRepositoryList godoc
//
//	@Summary	List repositories
//	@Tags		Repository
//	@Produce	json
//	@Security	BearerAuth
//	@Param		page		query		int	false	"Page number (from 1)"	default(1)
//	@Param		pageSize	query		int	false	"Items per page (max 100)"	default(10)
//	@Success	200			{object}	RepositoryListResponse
//	@Failure	400			{object}	response.ErrorEnvelope	"Invalid paging parameters"
//	@Failure	401			{object}	response.ErrorEnvelope
//	@Router		/api/Repository/RepositoryList [get]
func HandleRepositoryList(queries *database.Queries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := queryInt(r, "page", 1)
		if err != nil || page < 1 {
			response.Error(w, r, http.StatusBadRequest, "page must be a positive integer", err)
			return
		}
		pageSize, err := queryInt(r, "pageSize", defaultPageSize)
		if err != nil || pageSize < 1 || pageSize > maxPageSize {
			response.Error(w, r, http.StatusBadRequest, "pageSize must be between 1 and 100", err)
			return
		}

		total, err := queries.CountWarehouses(r.Context())
		if err != nil {
			response.Error(w, r, http.StatusInternalServerError, "failed to count repositories", err)
			return
		}

		warehouses, err := queries.ListWarehouses(r.Context(), database.ListWarehousesParams{
			Limit:  pageSize,
			Offset: (page - 1) * pageSize,
		})
		if err != nil {
			response.Error(w, r, http.StatusInternalServerError, "failed to list repositories", err)
			return
		}

		items := make([]RepositoryItem, 0, len(warehouses))
		for _, wh := range warehouses {
			items = append(items, RepositoryItem{
				ID:               wh.ID,
				Name:             wh.Name,
				OrganizationName: wh.OrganizationName,
				Address:          wh.Address,
				Description:      wh.Description,
				Branch:           wh.Branch,
				Type:             wh.Type,
				Status:           wh.Status,
				Stars:            wh.Stars,
				Forks:            wh.Forks,
				CreatedAt:        wh.CreatedAt,
			})
		}

		response.Data(w, http.StatusOK, RepositoryListResponse{Total: total, Items: items})
	}
}

// HandleRepositoryCatalogs godoc
//
//	@Summary	Document catalog of a repository
//	@Tags		Repository
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Repository ID"
//	@Success	200	{array}		CatalogItem
//	@Failure	401	{object}	response.ErrorEnvelope
//	@Failure	404	{object}	response.ErrorEnvelope	"Repository not found"
//	@Router		/api/Repository/{id}/Catalogs [get]
func HandleRepositoryCatalogs(queries *database.Queries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if _, err := queries.GetWarehouseByID(r.Context(), id); err != nil {
			if database.IsNotFound(err) {
				response.Error(w, r, http.StatusNotFound, "repository not found", nil)
				return
			}
			response.Error(w, r, http.StatusInternalServerError, "failed to load repository", err)
			return
		}

		catalogs, err := queries.ListCatalogsByWarehouse(r.Context(), id)
		if err != nil {
			response.Error(w, r, http.StatusInternalServerError, "failed to list catalogs", err)
			return
		}

		items := make([]CatalogItem, 0, len(catalogs))
		for _, c := range catalogs {
			items = append(items, CatalogItem{
				ID:          c.ID,
				Name:        c.Name,
				Url:         c.Url,
				Description: c.Description,
				IsCompleted: c.IsCompleted,
				Order:       c.SortOrder,
				CreatedAt:   c.CreatedAt,
			})
		}
		response.Data(w, http.StatusOK, items)
	}
}

func queryInt(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
