package server

import (
	"github.com/gin-gonic/gin"
	"github.com/nominalabs/nomina/internal/formula"
	payrollservice "github.com/nominalabs/nomina/internal/payroll/service"
	"github.com/shopspring/decimal"
)

type validateFormulaRequest struct {
	Expression string `json:"expression"`
}

type testFormulaRequest struct {
	Expression string            `json:"expression"`
	Context    map[string]string `json:"context"`
}

func (s *Server) ListFormulaIdentifiers(c *gin.Context) {
	respondData(c, gin.H{
		"identifiers": payrollservice.ContextIdentifiers(),
		"functions":   formula.FunctionNames(),
	})
}

func (s *Server) ListFormulaTemplates(c *gin.Context) {
	respondData(c, s.conceptSvc.ListTemplates())
}

func (s *Server) ValidateFormula(c *gin.Context) {
	var req validateFormulaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.formulaEngine.Validate(req.Expression); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"valid": true})
}

// TestFormula evaluates an expression against a caller-supplied sample
// context, the dry-run behind the authoring UI's "probar" button.
func (s *Server) TestFormula(c *gin.Context) {
	var req testFormulaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sample := make(map[string]decimal.Decimal, len(req.Context))
	for name, raw := range req.Context {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("context value for "+name+" is not a number"))
			return
		}
		sample[name] = value
	}

	result, err := s.formulaEngine.Test(req.Expression, sample)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"value": result.String()})
}
