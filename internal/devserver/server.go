// Package devserver is a local stand-in for the copy service, good enough
// to develop and demo the client against: the same HTTP surface and JSON
// shapes, sqlite persistence, and a simulator that advances job execution.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"telecopy/internal/logger"
	"telecopy/internal/model"
	"telecopy/internal/usage"
)

// Dev plan limits, loosely the real service's free tier.
const (
	devUsageLimit     = 1000
	devHistoricalMax  = 5
	devRealtimeMax    = 1
	bearerPhonePrefix = "dev-"
)

type Server struct {
	echo  *echo.Echo
	store *Store
	sim   *Simulator
	port  int
}

func NewServer(store *Store, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:  e,
		store: store,
		sim:   NewSimulator(store, time.Second),
		port:  port,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.POST("/copy", s.handleCreate)
	s.echo.POST("/copy/:id/stop", s.handleStop)

	g := s.echo.Group("/jobs")
	g.GET("", s.handleList)
	g.GET("/:id", s.handleGet)
	g.POST("/:id/pause", s.handlePause)
	g.POST("/:id/resume", s.handleResume)

	s.echo.GET("/user/usage", s.handleUsage)
}

func (s *Server) Start() {
	s.sim.Start()

	go func() {
		addr := ":" + strconv.Itoa(s.port)
		logger.Log.Info("dev server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("dev server error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	s.sim.Stop()
	return s.echo.Shutdown(ctx)
}

// owner extracts the phone identity from the dev bearer token
// ("Bearer dev-<phone>"). The real service validates a signed credential;
// the stub only needs an identity to partition jobs.
func (s *Server) owner(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", errors.New("missing bearer token")
	}

	phone, ok := strings.CutPrefix(token, bearerPhonePrefix)
	if !ok || phone == "" {
		return "", errors.New("invalid dev token, expected dev-<phone>")
	}

	return phone, nil
}

func (s *Server) handleCreate(c echo.Context) error {
	phone, err := s.owner(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"detail": err.Error()})
	}

	var spec model.CopySpec
	if err := c.Bind(&spec); err != nil || spec.SourceChannel == "" || spec.TargetChannel == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "source_channel and target_channel required"})
	}

	rec := &JobRecord{
		ID:            uuid.NewString(),
		Owner:         phone,
		SourceChannel: spec.SourceChannel,
		TargetChannel: spec.TargetChannel,
		Status:        string(model.JobStatusPending),
		RealTime:      spec.RealTime,
		CopyMedia:     spec.CopyMedia,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.Create(rec); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": err.Error()})
	}

	logger.Log.Info("dev job created",
		zap.String("id", rec.ID),
		zap.String("owner", phone))

	return c.JSON(http.StatusOK, map[string]any{
		"id":             rec.ID,
		"status":         rec.Status,
		"message":        fmt.Sprintf("Job %s created", rec.ID),
		"source_channel": rec.SourceChannel,
		"target_channel": rec.TargetChannel,
	})
}

func (s *Server) handleList(c echo.Context) error {
	phone, err := s.owner(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"detail": err.Error()})
	}

	recs, err := s.store.ByOwner(phone)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": err.Error()})
	}

	jobs := make([]model.Job, 0, len(recs))
	for _, rec := range recs {
		jobs = append(jobs, rec.toJob())
	}

	return c.JSON(http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleGet(c echo.Context) error {
	rec, ok := s.ownedJob(c)
	if !ok {
		return nil
	}

	return c.JSON(http.StatusOK, rec.toJob())
}

func (s *Server) handleStop(c echo.Context) error {
	return s.transition(c, model.JobStatusStopped, func(rec *JobRecord) {
		now := time.Now().UTC()
		rec.CompletedAt = &now
	})
}

func (s *Server) handlePause(c echo.Context) error {
	return s.transition(c, model.JobStatusPaused, nil)
}

func (s *Server) handleResume(c echo.Context) error {
	return s.transition(c, model.JobStatusRunning, nil)
}

func (s *Server) transition(c echo.Context, target model.JobStatus, mutate func(*JobRecord)) error {
	rec, ok := s.ownedJob(c)
	if !ok {
		return nil
	}

	if !model.CanTransition(model.JobStatus(rec.Status), target) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"detail": fmt.Sprintf("job %s cannot go from %s to %s", rec.ID, rec.Status, target),
		})
	}

	rec.Status = string(target)
	if mutate != nil {
		mutate(&rec)
	}
	if err := s.store.Update(rec); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": err.Error()})
	}

	logger.Log.Info("dev job transition",
		zap.String("id", rec.ID),
		zap.String("status", rec.Status))

	return c.JSON(http.StatusOK, map[string]string{
		"job_id":  rec.ID,
		"status":  rec.Status,
		"message": fmt.Sprintf("Job %s is now %s", rec.ID, rec.Status),
	})
}

// ownedJob loads the path job and enforces ownership: 401 without a
// credential, 404 for unknown ids, 403 for someone else's job. On failure
// it writes the error response itself and reports false; the caller must
// not touch the response again.
func (s *Server) ownedJob(c echo.Context) (JobRecord, bool) {
	phone, err := s.owner(c)
	if err != nil {
		_ = c.JSON(http.StatusUnauthorized, map[string]string{"detail": err.Error()})
		return JobRecord{}, false
	}

	id := c.Param("id")
	rec, err := s.store.ByID(id)
	if errors.Is(err, errJobNotFound) {
		_ = c.JSON(http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("job %s not found", id)})
		return JobRecord{}, false
	}
	if err != nil {
		_ = c.JSON(http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return JobRecord{}, false
	}

	if rec.Owner != phone {
		_ = c.JSON(http.StatusForbidden, map[string]string{"detail": "access denied to this job"})
		return JobRecord{}, false
	}

	return rec, true
}

func (s *Server) handleUsage(c echo.Context) error {
	phone, err := s.owner(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"detail": err.Error()})
	}

	recs, err := s.store.ByOwner(phone)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": err.Error()})
	}

	stats := usage.Stats{
		Owner:               phone,
		Plan:                "dev",
		UsageLimit:          devUsageLimit,
		HistoricalJobsLimit: devHistoricalMax,
		RealtimeJobsLimit:   devRealtimeMax,
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	for _, rec := range recs {
		stats.TotalJobs++
		status := model.JobStatus(rec.Status)
		if status == model.JobStatusRunning {
			stats.ActiveJobs++
		}
		if rec.RealTime {
			if status == model.JobStatusRunning {
				stats.RealtimeJobs++
			}
		} else {
			stats.HistoricalJobs++
		}
		if rec.StartedAt != nil && !rec.StartedAt.Before(today) {
			stats.MessagesCopiedToday += rec.MessagesCopied
		}
	}

	stats.UsageCount = stats.TotalJobs
	stats.UsagePercentage = min(float64(stats.MessagesCopiedToday)/float64(devUsageLimit)*100, 100)

	stats.CanCreateJob = stats.MessagesCopiedToday < devUsageLimit
	if !stats.CanCreateJob {
		stats.MessageLimitBlockedReason = "daily message limit reached on the dev plan"
	}
	stats.CanCreateHistoricalJob = stats.HistoricalJobs < devHistoricalMax
	if !stats.CanCreateHistoricalJob {
		stats.HistoricalBlockedReason = fmt.Sprintf("dev plan allows %d historical jobs", devHistoricalMax)
	}
	stats.CanCreateRealtimeJob = stats.RealtimeJobs < devRealtimeMax
	if !stats.CanCreateRealtimeJob {
		stats.RealtimeBlockedReason = fmt.Sprintf("dev plan allows %d concurrent real-time job", devRealtimeMax)
	}

	switch {
	case !stats.CanCreateJob:
		stats.LimitMessage = stats.MessageLimitBlockedReason
	case !stats.CanCreateHistoricalJob && !stats.CanCreateRealtimeJob:
		stats.LimitMessage = "dev plan limits reached"
	case !stats.CanCreateHistoricalJob:
		stats.LimitMessage = stats.HistoricalBlockedReason
	case !stats.CanCreateRealtimeJob:
		stats.LimitMessage = stats.RealtimeBlockedReason
	}

	return c.JSON(http.StatusOK, stats)
}
