package sheetsync

import (
	"encoding/json"
	"io"
	"net/http"
)

// maxBodyBytes caps a request payload; a full-replacement write of the deal
// sheet stays well under this.
const maxBodyBytes = 10 << 20

// NewHTTPHandler exposes the dispatcher as a webhook-style endpoint. Every
// outcome, including validation and authorization failures, is written with
// HTTP 200; callers inspect the success field of the envelope.
func NewHTTPHandler(d *Dispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var resp Response
		if r.Method != http.MethodPost {
			resp = failure("POST required")
		} else {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				resp = failure("failed to read request body: " + err.Error())
			} else {
				resp = d.Handle(r.Context(), body)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
}
