package gateway

import (
	"encoding/json"
	"net/http"
)

// Response messages. Internal details never reach the client.
const (
	msgNoPath          = "No path specified"
	msgNoURL           = "No URL specified"
	msgInvalidURL      = "Invalid storage URL"
	msgHostNotAllowed  = "Host not allowed"
	msgFileNotFound    = "File not found"
	msgNoPDF           = "No PDF found in ZIP"
	msgFetchFailed     = "Failed to fetch file"
	msgDocumentFailed  = "Failed to fetch document"
	msgExtractFailed   = "Failed to extract PDF"
	msgInternal        = "Internal server error"
	msgMetaNotFound    = "Documents metadata not found"
	msgAppNotFound     = "Application not found"
	msgInvalidRequest  = "Invalid request"
	msgUploadForbidden = "Upload key not allowed"
	msgBadTransition   = "Status transition not allowed"
	msgConflict        = "Concurrent update, retry"
	msgUnavailable     = "Service unavailable"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Expose-Headers", "Content-Disposition, Content-Length, ETag, Last-Modified")
}

// preflight answers CORS preflight requests for the proxy routes.
func preflight(w http.ResponseWriter, _ *http.Request) {
	h := w.Header()
	setCORS(h)
	h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Range, X-Request-ID")
	h.Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}
