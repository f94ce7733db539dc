package handlers

import (
	"net/http"

	"github.com/swaggo/swag"

	"github.com/information-sharing-networks/wiki-harness/internal/server/response"
)

// HandleOpenAPI serves the OpenAPI document registered by the docs package.
func HandleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "API document unavailable", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

const scalarPage = `<!doctype html>
<html>
  <head>
    <title>wiki-server API reference</title>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
  </head>
  <body>
    <script id="api-reference" data-url="/openapi.json"></script>
    <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
  </body>
</html>
`

// HandleScalar serves the interactive API reference page.
func HandleScalar(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(scalarPage))
}
