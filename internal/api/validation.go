package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/MJE43/promo-games-go/internal/games"
)

const (
	maxBodyBytes = 1 << 20
	// customerHeader lets clients keep the customer id out of URLs.
	customerHeader = "X-Customer-Id"
	maxSegments    = 360
)

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid JSON format: %v", err)
	}
	return nil
}

// customerID reads the customer from the query string or header.
func customerID(r *http.Request) string {
	if id := strings.TrimSpace(r.URL.Query().Get("customerId")); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(customerHeader))
}

// ValidatePlanRequest validates a plan request
func ValidatePlanRequest(req *PlanRequest) error {
	if req.Segments <= 0 || req.Segments > maxSegments {
		return fmt.Errorf("segments must be between 1 and %d", maxSegments)
	}
	if req.WinningIndex < 0 || req.WinningIndex >= req.Segments {
		return fmt.Errorf("winning_index (%d) must be in [0, %d)", req.WinningIndex, req.Segments)
	}
	if math.IsNaN(req.Current) || math.IsInf(req.Current, 0) {
		return fmt.Errorf("current must be a finite number")
	}
	if math.Abs(req.Current) > games.MaxRotation {
		return fmt.Errorf("current must not exceed %g degrees in magnitude", games.MaxRotation)
	}
	return nil
}

// ValidateStrokesRequest validates a stroke batch
func ValidateStrokesRequest(req *StrokesRequest) error {
	if len(req.Strokes) == 0 {
		return fmt.Errorf("at least one stroke is required")
	}
	for i, st := range req.Strokes {
		if len(st.Points) == 0 {
			return fmt.Errorf("stroke %d has no points", i)
		}
		if st.Radius < 0 {
			return fmt.Errorf("stroke %d has a negative radius", i)
		}
	}
	return nil
}
