package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	perioddomain "github.com/nominalabs/nomina/internal/period/domain"
)

type createPeriodRequest struct {
	CompanyID   string `json:"company_id"`
	Number      int    `json:"number"`
	Year        int    `json:"year"`
	Kind        string `json:"kind"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	PaymentDate string `json:"payment_date"`
}

type transitionPeriodRequest struct {
	Status string `json:"status"`
}

func (s *Server) CreatePeriod(c *gin.Context) {
	var req createPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	companyID, err := snowflake.ParseString(strings.TrimSpace(req.CompanyID))
	if err != nil {
		AbortWithError(c, newValidationError("company_id is required"))
		return
	}
	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		AbortWithError(c, newValidationError("start_date must be YYYY-MM-DD"))
		return
	}
	end, err := time.Parse(time.DateOnly, req.EndDate)
	if err != nil {
		AbortWithError(c, newValidationError("end_date must be YYYY-MM-DD"))
		return
	}
	payment, err := time.Parse(time.DateOnly, req.PaymentDate)
	if err != nil {
		AbortWithError(c, newValidationError("payment_date must be YYYY-MM-DD"))
		return
	}

	period, err := s.periodSvc.Create(c.Request.Context(), perioddomain.CreateRequest{
		CompanyID:   companyID,
		Number:      req.Number,
		Year:        req.Year,
		Kind:        perioddomain.Kind(strings.ToUpper(strings.TrimSpace(req.Kind))),
		StartDate:   start,
		EndDate:     end,
		PaymentDate: payment,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, period)
}

func (s *Server) GetPeriod(c *gin.Context) {
	periodID, ok := pathID(c)
	if !ok {
		return
	}
	period, err := s.periodSvc.Get(c.Request.Context(), periodID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, period)
}

// TransitionPeriod advances the status machine one step, e.g. CALCULATED to
// APPROVED before stamping.
func (s *Server) TransitionPeriod(c *gin.Context) {
	periodID, ok := pathID(c)
	if !ok {
		return
	}

	var req transitionPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	period, err := s.periodSvc.Transition(c.Request.Context(), periodID,
		perioddomain.Status(strings.ToUpper(strings.TrimSpace(req.Status))))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, period)
}
