// Package server exposes the payroll engine over HTTP: formula authoring,
// concept management, calculation runs, and the fiscal document lifecycle.
package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	conceptdomain "github.com/nominalabs/nomina/internal/concept/domain"
	"github.com/nominalabs/nomina/internal/config"
	"github.com/nominalabs/nomina/internal/formula"
	"github.com/nominalabs/nomina/internal/observability"
	payrolldomain "github.com/nominalabs/nomina/internal/payroll/domain"
	perioddomain "github.com/nominalabs/nomina/internal/period/domain"
	stampingdomain "github.com/nominalabs/nomina/internal/stamping/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	engine *gin.Engine
	log    *zap.Logger
	cfg    *config.Config
	db     *gorm.DB

	formulaEngine *formula.Engine
	metrics       *observability.Metrics
	conceptSvc    conceptdomain.Service
	periodSvc     perioddomain.Service
	payrollSvc    payrolldomain.Service
	stampingSvc   stampingdomain.Service
}

type ServerParam struct {
	fx.In

	Engine  *gin.Engine
	Log     *zap.Logger
	Config  *config.Config
	DB      *gorm.DB
	Formula *formula.Engine
	Metrics *observability.Metrics

	ConceptSvc  conceptdomain.Service
	PeriodSvc   perioddomain.Service
	PayrollSvc  payrolldomain.Service
	StampingSvc stampingdomain.Service
}

func NewEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	return engine
}

func NewServer(p ServerParam) *Server {
	return &Server{
		engine: p.Engine,
		log:    p.Log.Named("server"),
		cfg:    p.Config,
		db:     p.DB,

		formulaEngine: p.Formula,
		metrics:       p.Metrics,
		conceptSvc:    p.ConceptSvc,
		periodSvc:     p.PeriodSvc,
		payrollSvc:    p.PayrollSvc,
		stampingSvc:   p.StampingSvc,
	}
}

func (s *Server) RegisterRoutes() {
	s.engine.GET("/healthz", s.Healthz)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	v1 := s.engine.Group("/v1", s.CallerRequired())

	v1.GET("/formulas/identifiers", s.ListFormulaIdentifiers)
	v1.GET("/formulas/templates", s.ListFormulaTemplates)
	v1.POST("/formulas/validate", s.ValidateFormula)
	v1.POST("/formulas/test", s.TestFormula)

	v1.POST("/concepts", s.CreateConcept)
	v1.POST("/concepts/from-template", s.CreateConceptFromTemplate)

	v1.POST("/periods", s.CreatePeriod)
	v1.GET("/periods/:id", s.GetPeriod)
	v1.POST("/periods/:id/transition", s.TransitionPeriod)
	v1.POST("/periods/:id/calculate", s.CalculatePeriod)
	v1.GET("/periods/:id/details", s.ListPeriodDetails)

	v1.GET("/details/:id", s.GetDetail)
	v1.POST("/details/:id/fiscal-documents", s.CreateFiscalDocument)

	v1.GET("/fiscal-documents/:id", s.GetFiscalDocument)
	v1.POST("/fiscal-documents/:id/stamp", s.StampFiscalDocument)
	v1.POST("/fiscal-documents/:id/cancel", s.CancelFiscalDocument)
}

const (
	contextCallerKey = "caller"

	headerEmployeeID = "X-Employee-ID"
	headerGrants     = "X-Grants"
)

// CallerRequired resolves the authenticated caller's identity and grants from
// the headers set by the authenticating proxy. Requests without grants are
// rejected before any handler runs.
func (s *Server) CallerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawGrants := strings.TrimSpace(c.GetHeader(headerGrants))
		if rawGrants == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		caller := payrolldomain.Caller{}
		for _, grant := range strings.Split(rawGrants, ",") {
			if g := strings.TrimSpace(grant); g != "" {
				caller.Grants = append(caller.Grants, g)
			}
		}
		if raw := strings.TrimSpace(c.GetHeader(headerEmployeeID)); raw != "" {
			id, err := snowflake.ParseString(raw)
			if err != nil {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			caller.EmployeeID = id
		}
		c.Set(contextCallerKey, caller)
		c.Next()
	}
}

func callerFrom(c *gin.Context) payrolldomain.Caller {
	if v, ok := c.Get(contextCallerKey); ok {
		if caller, ok := v.(payrolldomain.Caller); ok {
			return caller
		}
	}
	return payrolldomain.Caller{}
}

func pathID(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return 0, false
	}
	return id, true
}

func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunHTTP binds the configured address and ties server lifetime to the fx app.
func RunHTTP(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{Addr: s.cfg.HTTPAddr, Handler: s.engine}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
