package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custody-sweep.backend/internal/interfaces/http/handlers"
)

type routeDeps struct {
	tenantHandler  *handlers.TenantHandler
	addressHandler *handlers.AddressHandler
	sweepHandler   *handlers.SweepHandler
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func registerMetricsRoute(r *gin.Engine, registry *prometheus.Registry) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Tenant onboarding and sweep gating
		tenants := v1.Group("/tenants")
		{
			tenants.POST("", d.tenantHandler.RegisterTenant)
			tenants.GET("/:tenantId/wallet", d.tenantHandler.GetWallet)
			tenants.PUT("/:tenantId/sweep-enabled", d.tenantHandler.SetSweepEnabled)
			tenants.GET("/:tenantId/addresses", d.addressHandler.ListAddresses)
			tenants.GET("/:tenantId/users/:userId/address", d.addressHandler.GetUserAddress)
		}

		// Deposit address allocation
		addresses := v1.Group("/addresses")
		{
			addresses.POST("", d.addressHandler.AllocateAddress)
			addresses.POST("/:id/deactivate", d.addressHandler.DeactivateAddress)
		}

		// Chain watcher ingest
		v1.POST("/observations", d.addressHandler.SubmitObservation)

		// Sweep triggers and inspection
		sweeps := v1.Group("/sweeps")
		{
			sweeps.POST("/manual", d.sweepHandler.ManualSweep)
			sweeps.POST("/batch", d.sweepHandler.BatchSweep)
			sweeps.POST("/emergency", d.sweepHandler.EmergencySweep)
			sweeps.POST("/:id/requeue", d.sweepHandler.RequeueSweep)
			sweeps.GET("/queue", d.sweepHandler.ListQueue)
			sweeps.GET("/logs", d.sweepHandler.ListLogs)
			sweeps.GET("/logs/:txHash", d.sweepHandler.GetLogByTxHash)
			sweeps.POST("/emergency-stop", d.sweepHandler.SetEmergencyStop)
			sweeps.DELETE("/emergency-stop", d.sweepHandler.ClearEmergencyStop)
		}
	}
}
