package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-sweep.backend/internal/domain/entities"
	domainerrors "custody-sweep.backend/internal/domain/errors"
)

type tenantServiceStub struct {
	wallet      *entities.MasterWallet
	registerErr error
	getErr      error
	setErr      error
	setEnabled  *bool
}

func (s *tenantServiceStub) RegisterTenant(_ context.Context, input *entities.RegisterTenantInput) (*entities.MasterWallet, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return s.wallet, nil
}

func (s *tenantServiceStub) GetWallet(_ context.Context, _ uuid.UUID) (*entities.MasterWallet, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.wallet, nil
}

func (s *tenantServiceStub) SetSweepEnabled(_ context.Context, _ uuid.UUID, enabled bool) error {
	s.setEnabled = &enabled
	return s.setErr
}

func newTenantRouter(stub *tenantServiceStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &TenantHandler{vaultUsecase: stub}
	r := gin.New()
	r.POST("/tenants", h.RegisterTenant)
	r.GET("/tenants/:tenantId/wallet", h.GetWallet)
	r.PUT("/tenants/:tenantId/sweep-enabled", h.SetSweepEnabled)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTenantHandler_Register(t *testing.T) {
	tenantID := uuid.New()
	stub := &tenantServiceStub{wallet: &entities.MasterWallet{TenantID: tenantID, SweepEnabled: true}}
	r := newTenantRouter(stub)

	body := `{"tenantId":"` + tenantID.String() + `","collectionAddress":"0x00000000000000000000000000000000C0113C70","minSweepAmount":"50000"}`
	w := doJSON(t, r, http.MethodPost, "/tenants", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Wallet entities.MasterWallet `json:"wallet"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, tenantID, resp.Wallet.TenantID)
	assert.True(t, resp.Wallet.SweepEnabled)
}

func TestTenantHandler_RegisterValidation(t *testing.T) {
	r := newTenantRouter(&tenantServiceStub{})

	// missing collectionAddress
	w := doJSON(t, r, http.MethodPost, "/tenants", `{"tenantId":"`+uuid.NewString()+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// tenantId not a uuid
	w = doJSON(t, r, http.MethodPost, "/tenants", `{"tenantId":"abc","collectionAddress":"0xabc","minSweepAmount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTenantHandler_RegisterConflict(t *testing.T) {
	r := newTenantRouter(&tenantServiceStub{registerErr: domainerrors.ErrAlreadyExists})

	body := `{"tenantId":"` + uuid.NewString() + `","collectionAddress":"0xabc","minSweepAmount":"1"}`
	w := doJSON(t, r, http.MethodPost, "/tenants", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTenantHandler_GetWallet(t *testing.T) {
	tenantID := uuid.New()
	r := newTenantRouter(&tenantServiceStub{wallet: &entities.MasterWallet{TenantID: tenantID}})

	w := doJSON(t, r, http.MethodGet, "/tenants/"+tenantID.String()+"/wallet", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/tenants/not-a-uuid/wallet", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTenantHandler_GetWalletNotFound(t *testing.T) {
	r := newTenantRouter(&tenantServiceStub{getErr: domainerrors.ErrNotFound})

	w := doJSON(t, r, http.MethodGet, "/tenants/"+uuid.NewString()+"/wallet", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTenantHandler_SetSweepEnabled(t *testing.T) {
	stub := &tenantServiceStub{}
	r := newTenantRouter(stub)

	w := doJSON(t, r, http.MethodPut, "/tenants/"+uuid.NewString()+"/sweep-enabled", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, stub.setEnabled)
	assert.False(t, *stub.setEnabled)

	// enabled is required even when false, so an empty body is rejected
	w = doJSON(t, r, http.MethodPut, "/tenants/"+uuid.NewString()+"/sweep-enabled", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
