package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rawblock/shapley-engine/internal/config"
	"github.com/rawblock/shapley-engine/internal/db"
	"github.com/rawblock/shapley-engine/internal/games"
	"github.com/rawblock/shapley-engine/internal/metrics"
	"github.com/rawblock/shapley-engine/internal/shadow"
	"github.com/rawblock/shapley-engine/internal/shapley"
	"github.com/rawblock/shapley-engine/internal/telemetry"
	"github.com/rawblock/shapley-engine/pkg/models"
)

// progressSteps bounds how many progress events one run broadcasts.
const progressSteps = 20

// LesionStore is the subset of the Postgres store the API needs.
type LesionStore interface {
	db.LesionSource
	SaveLesionValues(ctx context.Context, gameID string, values []models.LesionValue) error
	ListGames(ctx context.Context) ([]db.GameSummary, error)
}

type APIHandler struct {
	store   LesionStore
	wsHub   *Hub
	metrics *telemetry.Metrics
	cfg     *config.Config
}

// SetupRouter wires every route. store may be nil, in which case lesion-table
// games are unavailable.
func SetupRouter(cfg *config.Config, store LesionStore, wsHub *Hub, m *telemetry.Metrics, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.Default()

	// Enable CORS: ALLOWED_ORIGINS empty or "*" allows any origin.
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if len(cfg.AllowedOrigins) == 0 {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if originAllowed(cfg.AllowedOrigins, origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{store: store, wsHub: wsHub, metrics: m, cfg: cfg}
	limiter := NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitBurst)

	r.GET("/health", handler.handleHealth)
	r.GET("/metrics", gin.WrapH(telemetry.Handler(gatherer)))

	api := r.Group("/api/v1")
	{
		api.GET("/games", handler.handleListGames)
		api.GET("/stream", wsHub.Subscribe)

		protected := api.Group("", AuthMiddleware(cfg.APIAuthToken), limiter.Middleware())
		protected.POST("/estimate", handler.handleEstimate)
		protected.POST("/estimate/verify", handler.handleVerify)
		protected.POST("/estimate/replicate", handler.handleReplicate)
		protected.PUT("/games/:id/lesions", handler.handleSaveLesions)
	}

	return r
}

// badRequest is a client error detected before any objective call.
type badRequest struct {
	status int
	msg    string
}

func (e *badRequest) Error() string { return e.msg }

// statusFor maps run errors onto HTTP status codes.
func statusFor(err error) int {
	var br *badRequest
	switch {
	case errors.As(err, &br):
		return br.status
	case errors.Is(err, shapley.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shapley.ErrObjective):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *APIHandler) fail(c *gin.Context, runID string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[API] run %s failed: %v", runID, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": telemetry.Status(err), "runId": runID})
}

// buildRequest checks limits and resolves the game into an instrumented
// objective.
func (h *APIHandler) buildRequest(req models.EstimateRequest) (shapley.Request[string], error) {
	if len(req.Players) > h.cfg.MaxPlayers {
		return shapley.Request[string]{}, &badRequest{http.StatusBadRequest,
			"too many players: max " + strconv.Itoa(h.cfg.MaxPlayers)}
	}
	if req.Samples > h.cfg.MaxSamples {
		return shapley.Request[string]{}, &badRequest{http.StatusBadRequest,
			"too many samples: max " + strconv.Itoa(h.cfg.MaxSamples)}
	}
	// A run evaluates up to (N+1)*K coalitions and holds all of them at once.
	if coalitions := (len(req.Players) + 1) * req.Samples; coalitions > h.cfg.MaxCoalitions {
		return shapley.Request[string]{}, &badRequest{http.StatusBadRequest,
			"combination space too large: (players+1)*samples = " + strconv.Itoa(coalitions) +
				", max " + strconv.Itoa(h.cfg.MaxCoalitions)}
	}

	parallelism, err := h.parallelism(req)
	if err != nil {
		return shapley.Request[string]{}, err
	}

	var objective shapley.Objective[string]
	if req.Game.Kind == games.KindLesion {
		if h.store == nil {
			return shapley.Request[string]{}, &badRequest{http.StatusServiceUnavailable, "lesion store not configured"}
		}
		if req.Game.GameID == "" {
			return shapley.Request[string]{}, &badRequest{http.StatusBadRequest, "lesion-table game requires gameId"}
		}
		objective = db.LesionObjective(h.store, req.Game.GameID)
	} else {
		objective, err = games.Build(req.Game, req.Players)
		if err != nil {
			return shapley.Request[string]{}, &badRequest{http.StatusBadRequest, err.Error()}
		}
	}

	return shapley.Request[string]{
		Players:     req.Players,
		Samples:     req.Samples,
		Objective:   telemetry.Instrument(h.metrics, req.Game.Kind, objective),
		Parallelism: parallelism,
		Seed:        req.Seed,
	}, nil
}

func (h *APIHandler) parallelism(req models.EstimateRequest) (shapley.Parallelism, error) {
	switch req.Mode {
	case "", "sequential":
		return shapley.Parallelism{Mode: shapley.Sequential}, nil
	case "pooled":
		size := h.cfg.DefaultPoolSize
		if req.PoolSize != nil {
			size = *req.PoolSize
		}
		return shapley.Parallelism{Mode: shapley.Pooled, PoolSize: size}, nil
	default:
		return shapley.Parallelism{}, &badRequest{http.StatusBadRequest, "unknown mode " + req.Mode}
	}
}

// progressReporter broadcasts about progressSteps events per run.
func (h *APIHandler) progressReporter(runID string) func(done, total int) {
	return func(done, total int) {
		step := total / progressSteps
		if step < 1 {
			step = 1
		}
		if done%step != 0 && done != total {
			return
		}
		h.wsHub.BroadcastJSON(models.ProgressEvent{Type: "progress", RunID: runID, Done: done, Total: total})
	}
}

func (h *APIHandler) handleEstimate(c *gin.Context) {
	var body models.EstimateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	runID := uuid.NewString()

	req, err := h.buildRequest(body)
	if err != nil {
		h.fail(c, runID, err)
		return
	}
	req.OnEvaluated = h.progressReporter(runID)

	finish := h.metrics.StartRun("estimate", req.Parallelism.Mode.String())
	res, err := shapley.Estimate(c.Request.Context(), req)
	if err != nil {
		finish(0, err)
		h.fail(c, runID, err)
		return
	}
	finish(res.Contributions.Len(), nil)
	h.wsHub.BroadcastJSON(models.ProgressEvent{Type: "done", RunID: runID, Done: res.Calls, Total: res.Contributions.Len()})

	c.JSON(http.StatusOK, buildResponse(runID, body, req.Parallelism, res))
}

// buildResponse ranks players by estimate and attaches per-player spread.
func buildResponse(runID string, body models.EstimateRequest, par shapley.Parallelism, res *shapley.Result[string]) models.EstimateResponse {
	players := res.Table.Players()
	summaries := metrics.SummarizeColumns(res.Table.Matrix())
	order := metrics.RankByMean(summaries)

	out := models.EstimateResponse{
		RunID:        runID,
		Players:      make([]models.PlayerSummary, len(order)),
		Seed:         res.Seed,
		SampleDigest: res.SampleDigest,
		Samples:      res.Sample.Len(),
		Coalitions:   res.Contributions.Len(),
		Calls:        res.Calls,
		Mode:         par.Mode.String(),
		ElapsedMs:    res.Elapsed.Milliseconds(),
	}
	for rank, i := range order {
		out.Players[rank] = models.PlayerSummary{
			Player:  players[i],
			Shapley: summaries[i].Mean,
			Std:     summaries[i].Std,
			StdErr:  summaries[i].StdErr,
			Rank:    rank + 1,
		}
	}

	vFull, _ := res.Contributions.Value(players...)
	vEmpty, _ := res.Contributions.Value()
	out.EfficiencyGap = metrics.EfficiencyGap(res.Table.Means(), vFull, vEmpty)

	if body.IncludeTable {
		out.Table = res.Table.Matrix()
	}
	return out
}

func (h *APIHandler) handleVerify(c *gin.Context) {
	var body models.EstimateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	runID := uuid.NewString()

	req, err := h.buildRequest(body)
	if err != nil {
		h.fail(c, runID, err)
		return
	}

	finish := h.metrics.StartRun("verify", req.Parallelism.Mode.String())
	cmp, err := shadow.NewRunner[string](req.Parallelism).Compare(c.Request.Context(), req)
	if err != nil {
		finish(0, err)
		h.fail(c, runID, err)
		return
	}
	finish(cmp.ProductionCalls, nil)
	h.metrics.ObserveComparison(cmp.Identical)

	c.JSON(http.StatusOK, models.ComparisonResponse{
		RunID:           runID,
		Seed:            cmp.Seed,
		Identical:       cmp.Identical,
		MaxAbsDelta:     cmp.MaxAbsDelta,
		DigestMatch:     cmp.DigestMatch,
		ProductionCalls: cmp.ProductionCalls,
		ShadowCalls:     cmp.ShadowCalls,
		CreatedAt:       cmp.CreatedAt,
	})
}

func (h *APIHandler) handleReplicate(c *gin.Context) {
	var body models.ReplicateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	runID := uuid.NewString()

	if body.Replicates > h.cfg.MaxReplicates {
		h.fail(c, runID, &badRequest{http.StatusBadRequest, "too many replicates: max " + strconv.Itoa(h.cfg.MaxReplicates)})
		return
	}
	req, err := h.buildRequest(body.EstimateRequest)
	if err != nil {
		h.fail(c, runID, err)
		return
	}

	finish := h.metrics.StartRun("replicate", req.Parallelism.Mode.String())
	rep, err := shadow.NewRunner[string](req.Parallelism).Replicate(c.Request.Context(), req, body.Replicates)
	finish(0, err)
	if err != nil {
		h.fail(c, runID, err)
		return
	}

	out := models.ReplicateResponse{
		RunID:      runID,
		Replicates: len(rep.Seeds),
		Seeds:      rep.Seeds,
		Intervals:  make([]models.PlayerInterval, len(rep.Players)),
	}
	for i, p := range rep.Players {
		iv := rep.Intervals[i]
		out.Intervals[i] = models.PlayerInterval{Player: p, Mean: iv.Mean, Std: iv.Std, Lower: iv.Lower, Upper: iv.Upper}
	}
	c.JSON(http.StatusOK, out)
}

func (h *APIHandler) handleListGames(c *gin.Context) {
	stored := []db.GameSummary{}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		list, err := h.store.ListGames(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list stored games", "details": err.Error()})
			return
		}
		stored = list
	}

	c.JSON(http.StatusOK, gin.H{
		"builtin": games.Catalogue(),
		"stored":  stored,
	})
}

func (h *APIHandler) handleSaveLesions(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "lesion store not configured"})
		return
	}
	var body models.LesionUpload
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	gameID := c.Param("id")

	if err := h.store.SaveLesionValues(c.Request.Context(), gameID, body.Values); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to store lesion values", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"gameId": gameID, "stored": len(body.Values)})
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "operational",
		"engine":      "Shapley Lesion Engine",
		"dbConnected": h.store != nil,
		"limits": gin.H{
			"maxPlayers":    h.cfg.MaxPlayers,
			"maxSamples":    h.cfg.MaxSamples,
			"maxCoalitions": h.cfg.MaxCoalitions,
			"maxReplicates": h.cfg.MaxReplicates,
		},
		"modes": []string{shapley.Sequential.String(), shapley.Pooled.String()},
	})
}
