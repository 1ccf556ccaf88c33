// Package http 资本账务引擎 HTTP 接口
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundcapital/internal/capital/application"
	"github.com/wyfcoding/fundcapital/internal/capital/domain"
	"github.com/wyfcoding/fundcapital/pkg/logger"
	"github.com/wyfcoding/pkg/response"
)

// CapitalHandler 资本账务 HTTP 处理器
type CapitalHandler struct {
	fundSvc    *application.FundService
	allocSvc   *application.AllocationService
	callSvc    *application.CapitalCallService
	metricsSvc *application.MetricsService
	integSvc   *application.IntegrityService
}

// NewCapitalHandler 创建 HTTP 处理器实例
func NewCapitalHandler(
	fundSvc *application.FundService,
	allocSvc *application.AllocationService,
	callSvc *application.CapitalCallService,
	metricsSvc *application.MetricsService,
	integSvc *application.IntegrityService,
) *CapitalHandler {
	return &CapitalHandler{
		fundSvc:    fundSvc,
		allocSvc:   allocSvc,
		callSvc:    callSvc,
		metricsSvc: metricsSvc,
		integSvc:   integSvc,
	}
}

// RegisterRoutes 注册路由
func (h *CapitalHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		funds := api.Group("/funds")
		{
			funds.POST("", h.CreateFund)
			funds.GET("", h.ListFunds)
			funds.GET("/:id", h.GetFund)
			funds.GET("/:id/metrics", h.GetFundMetrics)
			funds.GET("/:id/allocations", h.ListFundAllocations)
		}

		deals := api.Group("/deals")
		{
			deals.POST("", h.CreateDeal)
			deals.GET("/:id", h.GetDeal)
		}

		allocations := api.Group("/allocations")
		{
			allocations.POST("", h.CreateAllocation)
			allocations.GET("/:id", h.GetAllocation)
			allocations.PUT("/:id", h.UpdateAllocation)
			allocations.DELETE("/:id", h.DeleteAllocation)
			allocations.POST("/:id/unfunded", h.MarkUnfunded)
			allocations.POST("/:id/writeoff", h.WriteOff)
			allocations.POST("/:id/distributions", h.RecordDistribution)
			allocations.GET("/:id/calls", h.ListCalls)
			allocations.POST("/:id/calls/refresh-overdue", h.RefreshOverdueCalls)
			allocations.GET("/:id/metrics", h.GetAllocationMetrics)
		}

		calls := api.Group("/capital-calls")
		{
			calls.POST("", h.CreateCapitalCall)
			calls.GET("/:id", h.GetCapitalCall)
			calls.POST("/:id/sent", h.MarkCallSent)
			calls.POST("/:id/default", h.DefaultCall)
			calls.POST("/:id/payments", h.ProcessPayment)
			calls.GET("/:id/payments", h.ListPayments)
		}

		api.POST("/integrity/check", h.RunIntegrityCheck)
	}
}

// writeError 错误分类到 HTTP 状态码的映射
func writeError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
	case domain.IsNotFound(err):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	case domain.IsConflict(err):
		response.ErrorWithStatus(c, http.StatusConflict, err.Error(), "")
	case domain.IsConstraintViolation(err):
		response.ErrorWithStatus(c, http.StatusUnprocessableEntity, err.Error(), "")
	default:
		logger.Error(c.Request.Context(), "Request failed", "path", c.FullPath(), "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
	}
}

type createFundRequest struct {
	Name     string `json:"name" binding:"required"`
	Currency string `json:"currency"`
}

// CreateFund 创建基金
func (h *CapitalHandler) CreateFund(c *gin.Context) {
	var req createFundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	fund, err := h.fundSvc.CreateFund(c.Request.Context(), req.Name, req.Currency)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, fund)
}

// GetFund 查询基金
func (h *CapitalHandler) GetFund(c *gin.Context) {
	fund, err := h.fundSvc.GetFund(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, fund)
}

// ListFunds 查询全部基金
func (h *CapitalHandler) ListFunds(c *gin.Context) {
	funds, err := h.fundSvc.ListFunds(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, funds)
}

// GetFundMetrics 查询基金口径汇总，view 缺省为 committed
func (h *CapitalHandler) GetFundMetrics(c *gin.Context) {
	view := domain.CapitalView(c.DefaultQuery("view", string(domain.ViewCommitted)))
	result, err := h.metricsSvc.GetFundMetrics(c.Request.Context(), c.Param("id"), view)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

// ListFundAllocations 查询基金下全部配置
func (h *CapitalHandler) ListFundAllocations(c *gin.Context) {
	allocs, err := h.allocSvc.ListAllocationsByFund(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, allocs)
}

type createDealRequest struct {
	Name   string `json:"name" binding:"required"`
	Sector string `json:"sector"`
}

// CreateDeal 创建被投项目
func (h *CapitalHandler) CreateDeal(c *gin.Context) {
	var req createDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	deal, err := h.fundSvc.CreateDeal(c.Request.Context(), req.Name, req.Sector)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, deal)
}

// GetDeal 查询项目
func (h *CapitalHandler) GetDeal(c *gin.Context) {
	deal, err := h.fundSvc.GetDeal(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, deal)
}

type createAllocationRequest struct {
	FundID          string          `json:"fund_id" binding:"required"`
	DealID          string          `json:"deal_id" binding:"required"`
	CommittedAmount decimal.Decimal `json:"committed_amount" binding:"required"`
	SecurityType    string          `json:"security_type"`
}

// CreateAllocation 创建认缴配置
func (h *CapitalHandler) CreateAllocation(c *gin.Context) {
	var req createAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	alloc, err := h.allocSvc.CreateAllocation(c.Request.Context(), application.CreateAllocationRequest{
		FundID:          req.FundID,
		DealID:          req.DealID,
		CommittedAmount: req.CommittedAmount,
		SecurityType:    req.SecurityType,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, alloc)
}

// GetAllocation 查询配置
func (h *CapitalHandler) GetAllocation(c *gin.Context) {
	alloc, err := h.allocSvc.GetAllocation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, alloc)
}

type updateAllocationRequest struct {
	CommittedAmount *decimal.Decimal `json:"committed_amount"`
	MarketValue     *decimal.Decimal `json:"market_value"`
	SecurityType    *string          `json:"security_type"`
	Status          *string          `json:"status"`
}

// UpdateAllocation 字段补丁更新
func (h *CapitalHandler) UpdateAllocation(c *gin.Context) {
	var req updateAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	alloc, err := h.allocSvc.UpdateAllocation(c.Request.Context(), c.Param("id"), application.UpdateAllocationRequest{
		CommittedAmount: req.CommittedAmount,
		MarketValue:     req.MarketValue,
		SecurityType:    req.SecurityType,
		Status:          req.Status,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, alloc)
}

// DeleteAllocation 删除配置，cascade=true 时级联删除子记录
func (h *CapitalHandler) DeleteAllocation(c *gin.Context) {
	cascade := c.Query("cascade") == "true"
	if err := h.allocSvc.DeleteAllocation(c.Request.Context(), c.Param("id"), cascade); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// MarkUnfunded 人工标记未出资
func (h *CapitalHandler) MarkUnfunded(c *gin.Context) {
	alloc, err := h.allocSvc.MarkUnfunded(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, alloc)
}

// WriteOff 核销配置
func (h *CapitalHandler) WriteOff(c *gin.Context) {
	alloc, err := h.allocSvc.WriteOff(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, alloc)
}

type recordDistributionRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Date   time.Time       `json:"date" binding:"required"`
	Type   string          `json:"type" binding:"required"`
}

// RecordDistribution 登记分配
func (h *CapitalHandler) RecordDistribution(c *gin.Context) {
	var req recordDistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	dist, err := h.allocSvc.RecordDistribution(c.Request.Context(), application.RecordDistributionRequest{
		AllocationID: c.Param("id"),
		Amount:       req.Amount,
		Date:         req.Date,
		Type:         req.Type,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, dist)
}

// ListCalls 查询配置下全部缴款通知
func (h *CapitalHandler) ListCalls(c *gin.Context) {
	calls, err := h.callSvc.ListCallsByAllocation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, calls)
}

// RefreshOverdueCalls 刷新配置下通知的逾期标记，返回状态发生变化的数量
func (h *CapitalHandler) RefreshOverdueCalls(c *gin.Context) {
	changed, err := h.callSvc.RefreshOverdueCalls(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"changed": changed})
}

// GetAllocationMetrics 查询单配置口径金额
func (h *CapitalHandler) GetAllocationMetrics(c *gin.Context) {
	m, err := h.metricsSvc.GetAllocationMetrics(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, m)
}

type createCapitalCallRequest struct {
	AllocationID  string           `json:"allocation_id" binding:"required"`
	Amount        *decimal.Decimal `json:"amount"`
	Percentage    *decimal.Decimal `json:"percentage"`
	Basis         string           `json:"basis"`
	CallDate      time.Time        `json:"call_date" binding:"required"`
	DueDate       time.Time        `json:"due_date" binding:"required"`
	Notes         string           `json:"notes"`
	InitialStatus string           `json:"initial_status"`
}

// CreateCapitalCall 创建缴款通知
func (h *CapitalHandler) CreateCapitalCall(c *gin.Context) {
	var req createCapitalCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	call, err := h.callSvc.CreateCapitalCall(c.Request.Context(), application.CreateCapitalCallRequest{
		AllocationID:  req.AllocationID,
		Amount:        req.Amount,
		Percentage:    req.Percentage,
		Basis:         domain.CallBasis(req.Basis),
		CallDate:      req.CallDate,
		DueDate:       req.DueDate,
		Notes:         req.Notes,
		InitialStatus: req.InitialStatus,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, call)
}

// GetCapitalCall 查询缴款通知
func (h *CapitalHandler) GetCapitalCall(c *gin.Context) {
	call, err := h.callSvc.GetCapitalCall(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, call)
}

// MarkCallSent 通知发出
func (h *CapitalHandler) MarkCallSent(c *gin.Context) {
	call, err := h.callSvc.MarkCallSent(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, call)
}

// DefaultCall 标记违约
func (h *CapitalHandler) DefaultCall(c *gin.Context) {
	call, err := h.callSvc.DefaultCall(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, call)
}

type processPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	PaymentDate time.Time       `json:"payment_date" binding:"required"`
}

// ProcessPayment 实缴入账
func (h *CapitalHandler) ProcessPayment(c *gin.Context) {
	var req processPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	payment, err := h.callSvc.ProcessPayment(c.Request.Context(), application.ProcessPaymentRequest{
		CallID:      c.Param("id"),
		Amount:      req.Amount,
		PaymentDate: req.PaymentDate,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, payment)
}

// ListPayments 查询通知下实缴记录
func (h *CapitalHandler) ListPayments(c *gin.Context) {
	payments, err := h.callSvc.ListPaymentsByCall(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, payments)
}

// RunIntegrityCheck 触发只读完整性检查，fund_id 缺省扫描全部
func (h *CapitalHandler) RunIntegrityCheck(c *gin.Context) {
	report, err := h.integSvc.RunIntegrityCheck(c.Request.Context(), c.Query("fund_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, report)
}
