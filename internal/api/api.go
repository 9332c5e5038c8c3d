// Package api exposes runs, administration and read endpoints over HTTP.
package api

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dwetl/internal/admin"
	"dwetl/internal/metrics"
	"dwetl/internal/model"
	"dwetl/internal/pipeline"
	"dwetl/internal/runlog"
	"dwetl/internal/runner"
	"dwetl/internal/store"
)

// API holds the handlers' dependencies.
type API struct {
	runner     *runner.Runner
	admin      *admin.Admin
	store      store.Store
	metrics    *metrics.Registry
	runLogPath string
	log        logrus.FieldLogger
}

func New(r *runner.Runner, a *admin.Admin, st store.Store, reg *metrics.Registry, log logrus.FieldLogger) *API {
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	return &API{runner: r, admin: a, store: st, metrics: reg, log: log}
}

// SetRunLog enables GET /api/etl/runs, served from the JSONL run log at path.
func (a *API) SetRunLog(path string) { a.runLogPath = path }

// Router returns a gin engine with recovery, request logging and every
// route registered.
func (a *API) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), a.requestLogger())
	a.RegisterRoutes(router)
	return router
}

func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if a.metrics != nil {
		router.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	}

	v := router.Group("/api")
	{
		v.POST("/init", a.initHandler)

		etl := v.Group("/etl")
		etl.POST("/run", a.runHandler)
		etl.GET("/mappings", a.mappingsHandler)
		etl.GET("/reset", a.stateHandler)
		etl.POST("/reset", a.resetHandler)
		etl.GET("/runs", a.runsHandler)

		data := v.Group("/data")
		data.GET("/stats", a.statsHandler)
		data.GET("/charts", a.chartsHandler)
		data.GET("/products", a.productsHandler)
		data.GET("/reports", a.reportsHandler)
	}
}

func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.log.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("http request")
	}
}

func (a *API) fail(c *gin.Context, status int, err error) {
	a.log.WithError(err).WithField("path", c.FullPath()).Warn("request failed")
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

// runHandler executes one run synchronously. A failed run is still a 200;
// its status and errors are in the body.
func (a *API) runHandler(c *gin.Context) {
	var req runner.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, http.StatusBadRequest, fmt.Errorf("invalid run request: %w", err))
		return
	}
	c.JSON(http.StatusOK, a.runner.Run(c.Request.Context(), req))
}

func (a *API) mappingsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, pipeline.DefaultMappings())
}

func (a *API) initHandler(c *gin.Context) {
	res, err := a.admin.Init(c.Request.Context())
	if err != nil {
		a.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "database initialized", "indexes": res.Indexes})
}

func (a *API) resetHandler(c *gin.Context) {
	res, err := a.admin.Reset(c.Request.Context())
	if err != nil {
		a.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "warehouse reset",
		"snapshotId":     res.SnapshotID,
		"initialState":   res.InitialCounts,
		"deletedCounts":  res.Deleted,
		"droppedIndexes": res.DroppedIndexes,
		"finalState":     res.FinalCounts,
		"timestamp":      time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (a *API) stateHandler(c *gin.Context) {
	counts, err := a.admin.Counts(c.Request.Context())
	if err != nil {
		a.fail(c, http.StatusInternalServerError, err)
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	msg := "warehouse is empty"
	if total > 0 {
		msg = fmt.Sprintf("warehouse holds %d documents", total)
	}
	c.JSON(http.StatusOK, gin.H{"collections": counts, "totalDocuments": total, "message": msg})
}

func (a *API) statsHandler(c *gin.Context) {
	st, err := a.admin.Stats(c.Request.Context())
	if err != nil {
		a.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *API) chartsHandler(c *gin.Context) {
	ch, err := a.admin.Charts(c.Request.Context())
	if err != nil {
		a.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (a *API) productsHandler(c *gin.Context) {
	docs, err := a.documents(c, model.CollectionProducts)
	if err != nil {
		a.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

// reportsHandler lists sales reports, newest reportDate first.
func (a *API) reportsHandler(c *gin.Context) {
	docs, err := a.documents(c, model.CollectionSalesReports)
	if err != nil {
		a.fail(c, http.StatusInternalServerError, err)
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return reportTime(docs[i]["reportDate"]).After(reportTime(docs[j]["reportDate"]))
	})
	c.JSON(http.StatusOK, docs)
}

func (a *API) documents(c *gin.Context, coll string) ([]model.Document, error) {
	docs := []model.Document{}
	err := a.store.Scan(c.Request.Context(), coll, func(d model.Document) error {
		docs = append(docs, d)
		return nil
	})
	return docs, err
}

func reportTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if ts, err := model.ParseISO(t); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// runsHandler returns the last runs from the run log, newest last.
// ?limit=n bounds the count (default 50).
func (a *API) runsHandler(c *gin.Context) {
	if a.runLogPath == "" {
		a.fail(c, http.StatusNotFound, fmt.Errorf("run log is not file-backed"))
		return
	}
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			a.fail(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", s))
			return
		}
		limit = n
	}
	events, err := runlog.ReadFile(a.runLogPath, limit)
	if err != nil {
		a.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
