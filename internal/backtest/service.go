package backtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"stratlab/internal/analysis/validate"
	"stratlab/internal/logger"
	"stratlab/internal/market"

	"github.com/google/uuid"
)

const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// RunParams describes one requested simulation.
type RunParams struct {
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	Sources   []string `json:"sources"`
	Config    Config   `json:"config"`
	Ranges    []Range  `json:"ranges,omitempty"`
}

// Job tracks one submitted run through its lifecycle.
type Job struct {
	ID           string        `json:"id"`
	Status       string        `json:"status"`
	Message      string        `json:"message,omitempty"`
	Progress     float64       `json:"progress"`
	Params       RunParams     `json:"params"`
	Warnings     []string      `json:"warnings,omitempty"`
	Result       *Result       `json:"result,omitempty"`
	Optimization *Optimization `json:"optimization,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (j *Job) copy() Job {
	out := *j
	out.Warnings = append([]string(nil), j.Warnings...)
	return out
}

// RunRecord is the persisted summary of a completed run.
type RunRecord struct {
	ID             string
	Symbol         string
	Timeframe      string
	StartDate      int64
	EndDate        int64
	InitialCapital float64
	Parameters     map[string]float64
	TotalPnL       float64
	ROI            float64
	SharpeRatio    float64
	MaxDrawdown    float64
	WinRate        float64
	TotalTrades    int
	CreatedAt      time.Time
}

// RunStore persists completed runs. Nil store disables persistence.
type RunStore interface {
	SaveRun(ctx context.Context, run RunRecord, trades []Trade) error
}

// DataProvider supplies the merged candle series for a run.
// *market.Aggregator satisfies it.
type DataProvider interface {
	FetchMerged(ctx context.Context, symbol, timeframe string, start, end int64, sources []string) ([]market.Candle, error)
}

// ServiceConfig configures the run Service.
type ServiceConfig struct {
	Provider      DataProvider
	Store         RunStore
	MaxConcurrent int
}

// Service accepts run submissions and executes them on a bounded worker
// pool, keeping per-job status available for polling.
type Service struct {
	provider DataProvider
	store    RunStore

	sem chan struct{}

	mu   sync.RWMutex
	jobs map[string]*Job

	baseCtx context.Context
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("data provider is required")
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Service{
		provider: cfg.Provider,
		store:    cfg.Store,
		sem:      make(chan struct{}, maxConcurrent),
		jobs:     make(map[string]*Job),
		baseCtx:  context.Background(),
	}, nil
}

// SetContext injects the host context used to cancel in-flight jobs.
func (s *Service) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

func (s *Service) ctx() context.Context {
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

// SubmitRun validates the request, registers a job and returns immediately.
// The run itself executes asynchronously.
func (s *Service) SubmitRun(params RunParams) (Job, error) {
	if params.Symbol == "" {
		return Job{}, fmt.Errorf("symbol is required")
	}
	params.Timeframe = market.NormalizeTimeframe(params.Timeframe)
	if _, ok := market.TimeframeDuration(params.Timeframe); !ok {
		return Job{}, fmt.Errorf("%w: %s", market.ErrUnsupportedTimeframe, params.Timeframe)
	}
	if params.Config.InitialCapital <= 0 {
		return Job{}, fmt.Errorf("initial capital must be positive")
	}
	if params.Config.StartDate >= params.Config.EndDate {
		return Job{}, fmt.Errorf("start date must precede end date")
	}
	if len(params.Sources) == 0 {
		return Job{}, fmt.Errorf("at least one data source is required")
	}

	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	logger.Infof("[backtest] job %s submitted: %s %s [%d,%d] sources=%s",
		job.ID, params.Symbol, params.Timeframe,
		params.Config.StartDate, params.Config.EndDate,
		strings.Join(params.Sources, ","))

	go s.runJob(job.ID)
	return job.copy(), nil
}

func (s *Service) runJob(jobID string) {
	select {
	case s.sem <- struct{}{}:
	case <-s.ctx().Done():
		s.failJob(jobID, "service shutting down")
		return
	}
	defer func() { <-s.sem }()

	job := s.getJob(jobID)
	if job == nil {
		return
	}
	s.updateJob(jobID, func(j *Job) {
		j.Status = JobStatusRunning
		j.Message = ""
	})

	params := job.Params
	ctx := s.ctx()

	candles, err := s.provider.FetchMerged(ctx, params.Symbol, params.Timeframe,
		params.Config.StartDate, params.Config.EndDate, params.Sources)
	if err != nil {
		s.failJob(jobID, fmt.Sprintf("fetch failed: %v", err))
		return
	}

	report := validate.Validate(candles)
	var warnings []string
	for _, issue := range report.Issues {
		if issue.Severity == validate.SeverityWarning {
			warnings = append(warnings, issue.Message)
		}
	}
	if len(warnings) > 0 {
		logger.Warnf("[backtest] job %s: %d data warnings", jobID, len(warnings))
		s.updateJob(jobID, func(j *Job) { j.Warnings = warnings })
	}
	if !report.IsValid {
		s.failJob(jobID, fmt.Sprintf("data validation failed: score=%.1f issues=%d",
			report.Statistics.ConsistencyScore, len(report.Issues)))
		return
	}

	onProgress := func(pct float64) {
		s.updateJob(jobID, func(j *Job) {
			j.Progress = pct
			j.UpdatedAt = time.Now()
		})
	}

	var result *Result
	var opt *Optimization
	if params.Config.OptimizeParameters {
		opt, err = Optimize(candles, params.Config, ThresholdEntry, ThresholdExit, params.Ranges, onProgress)
		if err != nil {
			s.failJob(jobID, fmt.Sprintf("optimization failed: %v", err))
			return
		}
		result = opt.Result
	} else {
		result, err = Run(candles, params.Config, ThresholdEntry, ThresholdExit, onProgress)
		if err != nil {
			s.failJob(jobID, fmt.Sprintf("run failed: %v", err))
			return
		}
	}

	if s.store != nil {
		rec := RunRecord{
			ID:             jobID,
			Symbol:         params.Symbol,
			Timeframe:      params.Timeframe,
			StartDate:      params.Config.StartDate,
			EndDate:        params.Config.EndDate,
			InitialCapital: params.Config.InitialCapital,
			Parameters:     params.Config.Parameters,
			TotalPnL:       result.TotalPnL,
			ROI:            result.ROI,
			SharpeRatio:    result.SharpeRatio,
			MaxDrawdown:    result.MaxDrawdown,
			WinRate:        result.WinRate,
			TotalTrades:    result.TotalTrades,
			CreatedAt:      time.Now(),
		}
		if opt != nil {
			rec.Parameters = opt.Parameters
		}
		if err := s.store.SaveRun(ctx, rec, result.Trades); err != nil {
			logger.Errorf("[backtest] job %s: persist failed: %v", jobID, err)
			s.updateJob(jobID, func(j *Job) {
				j.Warnings = append(j.Warnings, "run persisted only in memory: "+err.Error())
			})
		}
	}

	s.updateJob(jobID, func(j *Job) {
		j.Status = JobStatusDone
		j.Message = "completed"
		j.Progress = 100
		j.Result = result
		j.Optimization = opt
		j.UpdatedAt = time.Now()
	})
	logger.Infof("[backtest] job %s done: trades=%d pnl=%.2f roi=%.2f%%",
		jobID, result.TotalTrades, result.TotalPnL, result.ROI)
}

func (s *Service) failJob(jobID, message string) {
	s.updateJob(jobID, func(j *Job) {
		j.Status = JobStatusFailed
		j.Message = message
		j.UpdatedAt = time.Now()
	})
	logger.Errorf("[backtest] job %s failed: %s", jobID, message)
}

func (s *Service) getJob(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

func (s *Service) updateJob(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok && fn != nil {
		fn(job)
	}
}

// JobSnapshot returns a copy of one job.
func (s *Service) JobSnapshot(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.copy(), true
}

// JobsSnapshot returns copies of every known job.
func (s *Service) JobsSnapshot() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.copy())
	}
	return out
}
