package handler

import (
	"net/http"
	"time"

	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
)

type dependencyHealth struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type storeHealth struct {
	Driver       string `json:"driver"`
	Transactions bool   `json:"transactions"`
	TransferMode string `json:"transfer_mode"`
}

// HealthCheck handles GET /health. It pings every dependency and reports
// which transfer path the active store drives.
func HealthCheck(caps ports.StoreCapabilities, checkers ...ports.HealthChecker) gin.HandlerFunc {
	mode := "sequential"
	if caps.Transactions {
		mode = "transactional"
	}
	store := storeHealth{Driver: caps.Name, Transactions: caps.Transactions, TransferMode: mode}

	return func(c *gin.Context) {
		deps := make(map[string]dependencyHealth, len(checkers))
		healthy := true

		for _, checker := range checkers {
			start := time.Now()
			err := checker.Ping(c.Request.Context())
			dep := dependencyHealth{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				dep.Status = "unhealthy"
				dep.Error = err.Error()
				healthy = false
			}
			deps[checker.Name()] = dep
		}

		code, status := http.StatusOK, "healthy"
		if !healthy {
			code, status = http.StatusServiceUnavailable, "degraded"
		}
		c.JSON(code, gin.H{
			"status":       status,
			"store":        store,
			"dependencies": deps,
		})
	}
}
