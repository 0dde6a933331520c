// Package handlers exposes the ingestion pipeline and the decision engine
// over HTTP. All handlers hang off an API value with injected collaborators;
// there is no package-level state.
package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"credit-engine/internal/decision"
	"credit-engine/internal/models"
)

// IngestRunner runs one ingestion pass over a folder.
type IngestRunner interface {
	Run(ctx context.Context, folderID string) *models.IngestionReport
}

// API carries the handler dependencies and the in-memory run history.
type API struct {
	ingest IngestRunner

	mu   sync.RWMutex
	runs map[string]*models.IngestionReport
}

// NewAPI wires the handlers with their collaborators.
func NewAPI(ingest IngestRunner) *API {
	return &API{
		ingest: ingest,
		runs:   make(map[string]*models.IngestionReport),
	}
}

// RegisterRoutes attaches all endpoints to the router.
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", a.Health)

	v1 := router.Group("/api/v1")
	{
		ingestRoutes := v1.Group("/ingest")
		{
			ingestRoutes.POST("/trigger/:folder_id", a.TriggerIngestion)
			ingestRoutes.GET("/runs/:id", a.GetIngestionRun)
		}
		decisionRoutes := v1.Group("/decisions")
		{
			decisionRoutes.POST("/facility", a.EvaluateFacility)
		}
		riskRoutes := v1.Group("/risk")
		{
			riskRoutes.GET("/npl/:dpd", a.ClassifyNPL)
			riskRoutes.POST("/rotation", a.CheckRotation)
		}
	}
}

// Health godoc
// @Summary Service liveness probe
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (a *API) Health(c *gin.Context) {
	RespondWithSuccess(c, http.StatusOK, gin.H{"status": "ok"})
}

// TriggerIngestion godoc
// @Summary Run the ingestion pipeline over a folder
// @Description Lists the folder, processes every file and returns the run report.
// @Tags ingest
// @Produce json
// @Param folder_id path string true "Source folder identifier"
// @Success 200 {object} models.IngestionReport "Run completed (individual files may still have failed)"
// @Failure 502 {object} models.APIError "Folder listing failed; no files were processed (code INGESTION_FAILED)"
// @Router /ingest/trigger/{folder_id} [post]
func (a *API) TriggerIngestion(c *gin.Context) {
	folderID := c.Param("folder_id")
	log.Printf("Received ingestion trigger for folder: %s", folderID)

	report := a.ingest.Run(c.Request.Context(), folderID)

	a.mu.Lock()
	a.runs[report.RunID] = report
	a.mu.Unlock()

	if report.Error != "" && report.TotalFiles == 0 {
		RespondWithError(c, http.StatusBadGateway, models.ErrorCodeIngestionFailed,
			"Ingestion run could not start", gin.H{"run_id": report.RunID, "error": report.Error})
		return
	}

	log.Printf("Ingestion run %s finished: %d successful, %d failed, %d skipped",
		report.RunID, report.Successful, report.Failed, report.Skipped)
	RespondWithSuccess(c, http.StatusOK, report)
}

// GetIngestionRun godoc
// @Summary Fetch a past ingestion run report by its run ID
// @Tags ingest
// @Produce json
// @Param id path string true "Run ID (UUID)"
// @Success 200 {object} models.IngestionReport
// @Failure 400 {object} models.APIError "Malformed run ID (code INVALID_ID_FORMAT)"
// @Failure 404 {object} models.APIError "Unknown run ID (code REPORT_NOT_FOUND)"
// @Router /ingest/runs/{id} [get]
func (a *API) GetIngestionRun(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeInvalidIDFormat,
			"Run ID is not a valid UUID", gin.H{"id": id})
		return
	}

	a.mu.RLock()
	report, ok := a.runs[id]
	a.mu.RUnlock()
	if !ok {
		RespondWithError(c, http.StatusNotFound, models.ErrorCodeReportNotFound,
			"No ingestion report for this run ID", gin.H{"id": id})
		return
	}
	RespondWithSuccess(c, http.StatusOK, report)
}

// metricsPayload mirrors decision.Metrics with pointer fields so an absent
// field is distinguishable from an explicit zero and can take its safe
// default.
type metricsPayload struct {
	POD             *float64 `json:"pod"`
	DPD             *float64 `json:"dpd"`
	DPDMean         *float64 `json:"dpd_mean"`
	LTV             *float64 `json:"ltv"`
	CollectionRate  *float64 `json:"collection_rate"`
	AvgRiskSeverity *float64 `json:"avg_risk_severity"`
}

func (p *metricsPayload) toMetrics() decision.Metrics {
	m := decision.DefaultMetrics()
	if p == nil {
		return m
	}
	if p.POD != nil {
		m.POD = *p.POD
	}
	if p.DPD != nil {
		m.DPD = *p.DPD
	}
	if p.DPDMean != nil {
		m.DPDMean = *p.DPDMean
	}
	if p.LTV != nil {
		m.LTV = *p.LTV
	}
	if p.CollectionRate != nil {
		m.CollectionRate = *p.CollectionRate
	}
	if p.AvgRiskSeverity != nil {
		m.AvgRiskSeverity = *p.AvgRiskSeverity
	}
	return m
}

type facilityDecisionRequest struct {
	FacilityAmount  *float64        `json:"facility_amount" binding:"required"`
	CollateralValue float64         `json:"collateral_value"`
	CustomerMetrics *metricsPayload `json:"customer_metrics"`
}

// EvaluateFacility godoc
// @Summary Evaluate a facility request against the tiered approval policy
// @Tags decisions
// @Accept json
// @Produce json
// @Param request body facilityDecisionRequest true "Facility request"
// @Success 200 {object} decision.Decision
// @Failure 400 {object} models.APIError "Invalid payload (code VALIDATION_ERROR)"
// @Router /decisions/facility [post]
func (a *API) EvaluateFacility(c *gin.Context) {
	var req facilityDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeValidation,
			"Invalid request payload", gin.H{"reason": err.Error()})
		return
	}
	if *req.FacilityAmount <= 0 {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeValidation,
			"facility_amount must be positive", gin.H{"facility_amount": *req.FacilityAmount})
		return
	}
	if req.CollateralValue < 0 {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeValidation,
			"collateral_value must not be negative", gin.H{"collateral_value": req.CollateralValue})
		return
	}

	result := decision.EvaluateFacilityApproval(*req.FacilityAmount, req.CustomerMetrics.toMetrics(), req.CollateralValue)
	RespondWithSuccess(c, http.StatusOK, result)
}

// ClassifyNPL godoc
// @Summary Classify an account by days past due
// @Tags risk
// @Produce json
// @Param dpd path int true "Days past due"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.APIError "DPD is not a non-negative integer (code VALIDATION_ERROR)"
// @Router /risk/npl/{dpd} [get]
func (a *API) ClassifyNPL(c *gin.Context) {
	dpdStr := c.Param("dpd")
	dpd, err := strconv.Atoi(dpdStr)
	if err != nil || dpd < 0 {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeValidation,
			"dpd must be a non-negative integer", gin.H{"dpd": dpdStr})
		return
	}

	isNPL, classification := decision.ClassifyNPL(dpd)
	RespondWithSuccess(c, http.StatusOK, gin.H{
		"dpd":            dpd,
		"is_npl":         isNPL,
		"classification": classification,
	})
}

type rotationRequest struct {
	TotalRevenue float64               `json:"total_revenue"`
	AvgBalance   float64               `json:"avg_balance"`
	Industry     decision.IndustryType `json:"industry"`
}

// CheckRotation godoc
// @Summary Check annual revenue rotation against the portfolio target
// @Description When an industry is given, the response also carries its risk adjustment and benchmarks.
// @Tags risk
// @Accept json
// @Produce json
// @Param request body rotationRequest true "Rotation inputs"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.APIError "Invalid payload (code VALIDATION_ERROR)"
// @Router /risk/rotation [post]
func (a *API) CheckRotation(c *gin.Context) {
	var req rotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeValidation,
			"Invalid request payload", gin.H{"reason": err.Error()})
		return
	}
	if req.TotalRevenue < 0 || req.AvgBalance < 0 {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeValidation,
			"total_revenue and avg_balance must not be negative", nil)
		return
	}

	rotation, meets, message := decision.CheckRotation(req.TotalRevenue, req.AvgBalance)
	resp := gin.H{
		"rotation":     rotation,
		"meets_target": meets,
		"message":      message,
	}
	if req.Industry != "" {
		resp["industry"] = req.Industry
		resp["risk_adjustment"] = decision.IndustryAdjustment(req.Industry)
		resp["benchmarks"] = decision.IndustryBenchmarks(req.Industry)
	}
	RespondWithSuccess(c, http.StatusOK, resp)
}
