package serving

import (
	"time"

	"enferd/pkg/types"
)

// Status builds a detailed status response for /status.
func (e *Engine) Status() types.StatusResponse {
	resp := types.StatusResponse{
		MemoryBudgetBytes: e.cfg.MemoryBudgetBytes,
		ReservedBytes:     e.admission.reserved(),
		AdmittedTotal:     e.admitted.Load(),
		RejectedTotal:     e.rejected.Load(),
		BatchesTotal:      e.scheduler.batchesTotal.Load(),
		FailuresTotal:     e.scheduler.failuresTotal.Load(),
		UptimeSeconds:     int64(time.Since(e.startTime).Seconds()),
		ServerTimeUnix:    time.Now().Unix(),
	}
	models := e.registry.list()
	resp.Models = make([]types.ModelStatus, 0, len(models))
	for _, m := range models {
		pending, reserved, ceiling := e.admission.stateOf(m.ID)
		leased, size := e.pool.snapshot(m.ID)
		resp.Models = append(resp.Models, types.ModelStatus{
			ModelID:        m.ID,
			QueueDepth:     pending,
			QueueCeiling:   ceiling,
			ReservedBytes:  reserved,
			LeasedSessions: leased,
			PoolSize:       size,
		})
	}
	return resp
}
