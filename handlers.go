package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"imgmeasure/pkg/metrics"
	"imgmeasure/pkg/predict"
	"imgmeasure/pkg/units"
)

// evaluator is the part of predict.Predictor the handlers use.
type evaluator interface {
	Evaluate(ctx context.Context, link, entity string) predict.Outcome
}

type server struct {
	predictor evaluator
	metrics   *metrics.Metrics
	jwtSecret []byte
	log       *zap.Logger
}

func setupRoutes(r *gin.Engine, s *server) {
	r.GET("/healthz", s.healthHandler)
	r.GET("/entities", s.entitiesHandler)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware(s.jwtSecret))
	authGroup.POST("/predict", s.predictHandler)
	authGroup.POST("/extract", s.extractHandler)
}

func (s *server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *server) entitiesHandler(c *gin.Context) {
	out := gin.H{}
	for _, e := range units.EntityTypes() {
		list, _ := units.UnitsFor(e)
		out[e] = list
	}
	c.JSON(http.StatusOK, gin.H{"entities": out})
}

// predictHandler fetches and recognizes one image. Row-level failures are
// reported in the body with status 200, like a dataset row would be.
func (s *server) predictHandler(c *gin.Context) {
	var req struct {
		ImageLink  string `json:"image_link" binding:"required"`
		EntityName string `json:"entity_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out := s.predictor.Evaluate(c.Request.Context(), req.ImageLink, req.EntityName)
	resp := gin.H{"prediction": out.Prediction}
	if out.Err != nil {
		resp["error"] = out.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) extractHandler(c *gin.Context) {
	var req struct {
		Text       string `json:"text"`
		EntityName string `json:"entity_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pred := predict.Extract(req.Text, req.EntityName)
	s.metrics.ObserveRow(predict.Outcome{Prediction: pred}.Kind())
	c.JSON(http.StatusOK, gin.H{"prediction": pred})
}

// runServer serves until ctx is done, then drains in-flight requests.
func runServer(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
