package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

type cancelDocumentRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CreateFiscalDocument(c *gin.Context) {
	detailID, ok := pathID(c)
	if !ok {
		return
	}

	doc, err := s.stampingSvc.CreateForDetail(c.Request.Context(), detailID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, doc)
}

func (s *Server) GetFiscalDocument(c *gin.Context) {
	documentID, ok := pathID(c)
	if !ok {
		return
	}

	doc, err := s.stampingSvc.Get(c.Request.Context(), documentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, doc)
}

func (s *Server) StampFiscalDocument(c *gin.Context) {
	documentID, ok := pathID(c)
	if !ok {
		return
	}

	doc, err := s.stampingSvc.Stamp(c.Request.Context(), documentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, doc)
}

func (s *Server) CancelFiscalDocument(c *gin.Context) {
	documentID, ok := pathID(c)
	if !ok {
		return
	}

	var req cancelDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	doc, err := s.stampingSvc.Cancel(c.Request.Context(), documentID, strings.TrimSpace(req.Reason))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, doc)
}
