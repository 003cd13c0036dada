package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lewisedginton/ron/pkg/logger"
)

// Response is the JSON body served by Handler.
type Response struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version,omitempty"`
	Uptime  string                 `json:"uptime"`
	Checks  map[string]CheckStatus `json:"checks,omitempty"`
}

// CheckStatus is the JSON form of one check result.
type CheckStatus struct {
	Status   string `json:"status"` // "ok" | "error"
	Critical bool   `json:"critical,omitempty"`
	Error    string `json:"error,omitempty"`
	Latency  string `json:"latency"`
}

// Handler serves the report as JSON. Only an unavailable report is a 503.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())

		resp := Response{
			Status:  report.Status,
			Version: c.version,
			Uptime:  time.Since(c.started).Truncate(time.Second).String(),
			Checks:  make(map[string]CheckStatus, len(report.Checks)),
		}
		for _, res := range report.Checks {
			cs := CheckStatus{Status: "ok", Critical: res.Critical, Latency: res.Latency.String()}
			if !res.Healthy {
				cs.Status = "error"
				cs.Error = res.Error
			}
			resp.Checks[res.Name] = cs
		}

		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusUnavailable {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			c.logger.Error("Failed to encode health response", logger.ErrorField(err))
		}
	}
}
