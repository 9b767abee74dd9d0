package server

import (
	"io"
	"net/http"

	"github.com/amoylab/skirmish/internal/catalog"
	"github.com/amoylab/skirmish/internal/common/errorx"
	"github.com/amoylab/skirmish/internal/scenario"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxScenarioSize = 4 << 20

func (s *Server) handleCreateScenario(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxScenarioSize))
	if err != nil {
		s.errs.HandleError(c, errorx.ErrMalformedBody.WithMessage(err.Error()))
		return
	}
	sc, err := scenario.FromDocument(raw)
	if err != nil {
		s.errs.HandleError(c, err)
		return
	}
	if err := s.deps.Scenarios.Create(c.Request.Context(), sc); err != nil {
		s.errs.HandleError(c, err)
		return
	}
	s.logger.Info("scenario stored", zap.String("scenario_id", sc.ID), zap.String("name", sc.Name))
	c.JSON(http.StatusOK, gin.H{"scenario_id": sc.ID})
}

func (s *Server) handleListScenarios(c *gin.Context) {
	list, err := s.deps.Scenarios.List(c.Request.Context())
	if err != nil {
		s.errs.HandleError(c, err)
		return
	}
	out := make([]scenario.Summary, 0, len(list))
	for _, sc := range list {
		out = append(out, sc.Summary())
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": out})
}

func (s *Server) handleGetScenario(c *gin.Context) {
	sc, err := s.deps.Scenarios.Find(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (s *Server) handleUnitTypes(c *gin.Context) {
	if s.deps.Catalog == nil {
		s.errs.HandleError(c, errorx.ErrCatalogUnavailable)
		return
	}
	units := s.deps.Catalog.Units
	if units == nil {
		units = []catalog.UnitType{}
	}
	c.JSON(http.StatusOK, gin.H{"unit_types": units})
}

func (s *Server) handleAreaTypes(c *gin.Context) {
	if s.deps.Catalog == nil {
		s.errs.HandleError(c, errorx.ErrCatalogUnavailable)
		return
	}
	areas := s.deps.Catalog.Areas
	if areas == nil {
		areas = []catalog.AreaType{}
	}
	c.JSON(http.StatusOK, gin.H{"areas": areas})
}
