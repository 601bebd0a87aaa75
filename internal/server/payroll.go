package server

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) CalculatePeriod(c *gin.Context) {
	periodID, ok := pathID(c)
	if !ok {
		return
	}

	report, err := s.payrollSvc.Calculate(c.Request.Context(), periodID, callerFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, report)
}

func (s *Server) ListPeriodDetails(c *gin.Context) {
	periodID, ok := pathID(c)
	if !ok {
		return
	}

	details, err := s.payrollSvc.ListDetails(c.Request.Context(), periodID, callerFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, details)
}

func (s *Server) GetDetail(c *gin.Context) {
	detailID, ok := pathID(c)
	if !ok {
		return
	}

	detail, err := s.payrollSvc.GetDetail(c.Request.Context(), detailID, callerFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, detail)
}
