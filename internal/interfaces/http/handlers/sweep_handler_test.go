package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-sweep.backend/internal/domain/entities"
	domainerrors "custody-sweep.backend/internal/domain/errors"
)

type sweepTriggerStub struct {
	entry        *entities.SweepQueueEntry
	entries      []*entities.SweepQueueEntry
	err          error
	lastForce    bool
	lastPriority entities.SweepPriority
	lastReason   string
}

func (s *sweepTriggerStub) RequestManualSweep(_ context.Context, _ string, force bool) (*entities.SweepQueueEntry, error) {
	s.lastForce = force
	if s.err != nil {
		return nil, s.err
	}
	return s.entry, nil
}

func (s *sweepTriggerStub) RequestBatchSweep(_ context.Context, _ []string, priority entities.SweepPriority) ([]*entities.SweepQueueEntry, error) {
	s.lastPriority = priority
	if s.err != nil {
		return nil, s.err
	}
	return s.entries, nil
}

func (s *sweepTriggerStub) RequestEmergencySweep(_ context.Context, _, reason string) (*entities.SweepQueueEntry, error) {
	s.lastReason = reason
	if s.err != nil {
		return nil, s.err
	}
	return s.entry, nil
}

type sweepQueryStub struct {
	entries []*entities.SweepQueueEntry
	logs    []*entities.SweepLog
	entry   *entities.SweepQueueEntry
	err     error
}

func (s *sweepQueryStub) ListQueue(_ context.Context, _ entities.SweepStatus, _, _ int) ([]*entities.SweepQueueEntry, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.entries, len(s.entries), nil
}

func (s *sweepQueryStub) ListLogs(_ context.Context, _ string, _, _ int) ([]*entities.SweepLog, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.logs, len(s.logs), nil
}

func (s *sweepQueryStub) GetLogByTxHash(_ context.Context, _ string) (*entities.SweepLog, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.logs[0], nil
}

func (s *sweepQueryStub) RequeueFailed(_ context.Context, _ uuid.UUID) (*entities.SweepQueueEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.entry, nil
}

type stopFlagStub struct {
	raised bool
	reason string
	err    error
}

func (s *stopFlagStub) set(_ context.Context, reason string) error {
	if s.err != nil {
		return s.err
	}
	s.raised = true
	s.reason = reason
	return nil
}

func (s *stopFlagStub) clear(_ context.Context) error {
	if s.err != nil {
		return s.err
	}
	s.raised = false
	return nil
}

func newSweepRouter(trigger *sweepTriggerStub, query *sweepQueryStub, stop *stopFlagStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &SweepHandler{trigger: trigger, query: query, setStop: stop.set, clearStop: stop.clear}
	r := gin.New()
	r.POST("/sweeps/manual", h.ManualSweep)
	r.POST("/sweeps/batch", h.BatchSweep)
	r.POST("/sweeps/emergency", h.EmergencySweep)
	r.POST("/sweeps/:id/requeue", h.RequeueSweep)
	r.GET("/sweeps/queue", h.ListQueue)
	r.GET("/sweeps/logs", h.ListLogs)
	r.GET("/sweeps/logs/:txHash", h.GetLogByTxHash)
	r.POST("/sweeps/emergency-stop", h.SetEmergencyStop)
	r.DELETE("/sweeps/emergency-stop", h.ClearEmergencyStop)
	return r
}

func TestSweepHandler_ManualSweep(t *testing.T) {
	trigger := &sweepTriggerStub{entry: &entities.SweepQueueEntry{ID: uuid.New()}}
	r := newSweepRouter(trigger, &sweepQueryStub{}, &stopFlagStub{})

	w := doJSON(t, r, http.MethodPost, "/sweeps/manual", `{"address":"0xdeposit","force":true}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.True(t, trigger.lastForce)

	w = doJSON(t, r, http.MethodPost, "/sweeps/manual", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweepHandler_ManualSweepErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown address", domainerrors.ErrNotFound, http.StatusNotFound},
		{"already queued", domainerrors.ErrAlreadyQueued, http.StatusConflict},
		{"pending unresolved", domainerrors.ErrPendingUnresolved, http.StatusConflict},
		{"below minimum", domainerrors.ErrBelowMinimum, http.StatusBadRequest},
		{"internal", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newSweepRouter(&sweepTriggerStub{err: tt.err}, &sweepQueryStub{}, &stopFlagStub{})
			w := doJSON(t, r, http.MethodPost, "/sweeps/manual", `{"address":"0xdeposit"}`)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestSweepHandler_BatchSweep(t *testing.T) {
	trigger := &sweepTriggerStub{entries: []*entities.SweepQueueEntry{{ID: uuid.New()}}}
	r := newSweepRouter(trigger, &sweepQueryStub{}, &stopFlagStub{})

	w := doJSON(t, r, http.MethodPost, "/sweeps/batch", `{"addresses":["0xone","0xtwo"],"priority":"high"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, entities.SweepPriorityHigh, trigger.lastPriority)
	assert.Contains(t, w.Body.String(), `"requested":2`)
	assert.Contains(t, w.Body.String(), `"enqueued":1`)
}

func TestSweepHandler_BatchSweepValidation(t *testing.T) {
	r := newSweepRouter(&sweepTriggerStub{}, &sweepQueryStub{}, &stopFlagStub{})

	w := doJSON(t, r, http.MethodPost, "/sweeps/batch", `{"addresses":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/sweeps/batch", `{"addresses":["0xone"],"priority":"urgent"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweepHandler_EmergencySweep(t *testing.T) {
	trigger := &sweepTriggerStub{entry: &entities.SweepQueueEntry{ID: uuid.New()}}
	r := newSweepRouter(trigger, &sweepQueryStub{}, &stopFlagStub{})

	w := doJSON(t, r, http.MethodPost, "/sweeps/emergency", `{"address":"0xdeposit","reason":"key exposure"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, "key exposure", trigger.lastReason)

	// reason is required
	w = doJSON(t, r, http.MethodPost, "/sweeps/emergency", `{"address":"0xdeposit"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweepHandler_RequeueSweep(t *testing.T) {
	query := &sweepQueryStub{entry: &entities.SweepQueueEntry{ID: uuid.New(), Status: entities.SweepStatusQueued}}
	r := newSweepRouter(&sweepTriggerStub{}, query, &stopFlagStub{})

	w := doJSON(t, r, http.MethodPost, "/sweeps/"+uuid.NewString()+"/requeue", "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/sweeps/bad/requeue", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweepHandler_RequeueSweepErrorMapping(t *testing.T) {
	r := newSweepRouter(&sweepTriggerStub{}, &sweepQueryStub{err: domainerrors.ErrNotRequeueable}, &stopFlagStub{})
	w := doJSON(t, r, http.MethodPost, "/sweeps/"+uuid.NewString()+"/requeue", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	r = newSweepRouter(&sweepTriggerStub{}, &sweepQueryStub{err: domainerrors.ErrNotFound}, &stopFlagStub{})
	w = doJSON(t, r, http.MethodPost, "/sweeps/"+uuid.NewString()+"/requeue", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSweepHandler_ListQueue(t *testing.T) {
	query := &sweepQueryStub{entries: []*entities.SweepQueueEntry{{ID: uuid.New()}}}
	r := newSweepRouter(&sweepTriggerStub{}, query, &stopFlagStub{})

	w := doJSON(t, r, http.MethodGet, "/sweeps/queue?status=FAILED", "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/sweeps/queue?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweepHandler_ListQueueEmpty(t *testing.T) {
	r := newSweepRouter(&sweepTriggerStub{}, &sweepQueryStub{}, &stopFlagStub{})

	w := doJSON(t, r, http.MethodGet, "/sweeps/queue", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"entries":[]`)
}

func TestSweepHandler_ListLogs(t *testing.T) {
	query := &sweepQueryStub{logs: []*entities.SweepLog{{ID: uuid.New(), Address: "0xdeposit"}}}
	r := newSweepRouter(&sweepTriggerStub{}, query, &stopFlagStub{})

	w := doJSON(t, r, http.MethodGet, "/sweeps/logs?address=0xdeposit", "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "0xdeposit")
}

func TestSweepHandler_GetLogByTxHash(t *testing.T) {
	query := &sweepQueryStub{logs: []*entities.SweepLog{{ID: uuid.New(), TxHash: "0xtx", Address: "0xdeposit"}}}
	r := newSweepRouter(&sweepTriggerStub{}, query, &stopFlagStub{})

	w := doJSON(t, r, http.MethodGet, "/sweeps/logs/0xtx", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "0xtx")

	r = newSweepRouter(&sweepTriggerStub{}, &sweepQueryStub{err: domainerrors.ErrNotFound}, &stopFlagStub{})
	w = doJSON(t, r, http.MethodGet, "/sweeps/logs/0xmissing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSweepHandler_EmergencyStopLifecycle(t *testing.T) {
	stop := &stopFlagStub{}
	r := newSweepRouter(&sweepTriggerStub{}, &sweepQueryStub{}, stop)

	w := doJSON(t, r, http.MethodPost, "/sweeps/emergency-stop", `{"reason":"rpc melting down"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, stop.raised)
	assert.Equal(t, "rpc melting down", stop.reason)

	w = doJSON(t, r, http.MethodDelete, "/sweeps/emergency-stop", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, stop.raised)

	// reason is required
	w = doJSON(t, r, http.MethodPost, "/sweeps/emergency-stop", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweepHandler_EmergencyStopBackendError(t *testing.T) {
	stop := &stopFlagStub{err: errors.New("redis down")}
	r := newSweepRouter(&sweepTriggerStub{}, &sweepQueryStub{}, stop)

	w := doJSON(t, r, http.MethodPost, "/sweeps/emergency-stop", `{"reason":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
