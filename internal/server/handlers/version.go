package handlers

import (
	"net/http"

	"github.com/information-sharing-networks/wiki-harness/internal/server/response"
	"github.com/information-sharing-networks/wiki-harness/internal/version"
)

const serviceName = "wiki-server"

// HandleVersion godoc
//
//	@Summary		Get version information
//	@Description	Returns the version and build information for the service
//	@Tags			Common
//	@Produce		json
//	@Success		200	{object}	VersionResponse	"Version information"
//	@Router			/version [get]
func HandleVersion(info version.Info) http.HandlerFunc {
	// Pre-create the response to avoid allocating on every request
	resp := VersionResponse{
		Version:   info.Version,
		BuildTime: info.BuildDate,
		GitCommit: info.GitCommit,
		Service:   serviceName,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, resp)
	}
}

type VersionResponse struct {
	Version   string `json:"version" example:"1.0.0"`
	BuildTime string `json:"build_time" example:"2024-01-28T10:00:00Z"`
	GitCommit string `json:"git_commit" example:"4f2c1d9"`
	Service   string `json:"service" example:"wiki-server"`
}

// HandleRoot godoc
//
//	@Summary		Service banner
//	@Description	Identifies the service and points at the API reference.
//	@Tags			Common
//	@Produce		json
//	@Success		200	{object}	RootResponse
//	@Router			/ [get]
func HandleRoot(info version.Info) http.HandlerFunc {
	resp := RootResponse{
		Service: serviceName,
		Version: info.Version,
		Docs:    "/scalar",
		OpenAPI: "/openapi.json",
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, resp)
	}
}

type RootResponse struct {
	Service string `json:"service" example:"wiki-server"`
	Version string `json:"version" example:"1.0.0"`
	Docs    string `json:"docs" example:"/scalar"`
	OpenAPI string `json:"openapi" example:"/openapi.json"`
}
