package handlers

import (
	"net/http"

	"github.com/upb/arp-template-pdp/utils"
)

// NotFound returns the JSON 404 used for unknown routes
func NotFound(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteNotFound(w, "No route for "+r.Method+" "+r.URL.Path)
}

// MethodNotAllowed returns the JSON 405 used for known routes with the wrong method
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteMethodNotAllowed(w)
}
