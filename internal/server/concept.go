package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	conceptdomain "github.com/nominalabs/nomina/internal/concept/domain"
	"github.com/shopspring/decimal"
)

type createConceptRequest struct {
	CompanyID string `json:"company_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Formula   string `json:"formula"`
	SATCode   string `json:"sat_code"`
	TaxPolicy string `json:"tax_policy"`
	ExemptCap string `json:"exempt_cap"`
	Priority  int    `json:"priority"`
}

type conceptFromTemplateRequest struct {
	Template  string `json:"template"`
	CompanyID string `json:"company_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Formula   string `json:"formula"`
	Priority  int    `json:"priority"`
}

func (s *Server) CreateConcept(c *gin.Context) {
	var req createConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	companyID, err := snowflake.ParseString(strings.TrimSpace(req.CompanyID))
	if err != nil {
		AbortWithError(c, newValidationError("company_id is required"))
		return
	}

	exemptCap := decimal.Zero
	if strings.TrimSpace(req.ExemptCap) != "" {
		exemptCap, err = decimal.NewFromString(req.ExemptCap)
		if err != nil {
			AbortWithError(c, newValidationError("exempt_cap is not a number"))
			return
		}
	}

	taxPolicy := conceptdomain.TaxPolicyTaxed
	if strings.TrimSpace(req.TaxPolicy) != "" {
		taxPolicy = conceptdomain.TaxPolicy(strings.ToUpper(strings.TrimSpace(req.TaxPolicy)))
	}

	concept, err := s.conceptSvc.Create(c.Request.Context(), conceptdomain.CreateRequest{
		CompanyID: companyID,
		Code:      req.Code,
		Name:      req.Name,
		Kind:      conceptdomain.Kind(strings.ToUpper(strings.TrimSpace(req.Kind))),
		Formula:   req.Formula,
		SATCode:   strings.TrimSpace(req.SATCode),
		TaxPolicy: taxPolicy,
		ExemptCap: exemptCap,
		Priority:  req.Priority,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, concept)
}

func (s *Server) CreateConceptFromTemplate(c *gin.Context) {
	var req conceptFromTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	companyID, err := snowflake.ParseString(strings.TrimSpace(req.CompanyID))
	if err != nil {
		AbortWithError(c, newValidationError("company_id is required"))
		return
	}

	concept, err := s.conceptSvc.CreateFromTemplate(c.Request.Context(), strings.TrimSpace(req.Template), conceptdomain.TemplateOverrides{
		CompanyID: companyID,
		Code:      req.Code,
		Name:      req.Name,
		Formula:   req.Formula,
		Priority:  req.Priority,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, concept)
}
