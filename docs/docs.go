// Package docs serves the OpenAPI description of the chess clubs API.
package docs

import (
	_ "embed"
	"net/http"
)

//go:embed swagger.json
var SwaggerJSON []byte

// Handler отдаёт swagger.json для /swagger/doc.json.
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(SwaggerJSON)
}
