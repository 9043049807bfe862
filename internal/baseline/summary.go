package baseline

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/datastore"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/logger"
)

const (
	// topN is the length of the ranked lists in a Summary
	topN = 5

	summaryLoadTimeout = 30 * time.Second
)

// ClassTotal is one detection class ranked by its summed raw frequency.
type ClassTotal struct {
	Class     string  `json:"class" yaml:"class"`
	Frequency float64 `json:"frequency" yaml:"frequency"`
	Samples   int64   `json:"samples" yaml:"samples"`
}

// HourTotal is one hour of day ranked by its summed raw activity.
type HourTotal struct {
	Hour     int     `json:"hour" yaml:"hour"`
	AvgCount float64 `json:"avg_count" yaml:"avg_count"`
	Samples  int64   `json:"samples" yaml:"samples"`
}

// Summary describes everything learned for one camera. Values are summed
// without decay and are for inspection only.
type Summary struct {
	CameraID              string       `json:"camera_id" yaml:"camera_id"`
	ActivityBaselineCount int          `json:"activity_baseline_count" yaml:"activity_baseline_count"`
	ClassBaselineCount    int          `json:"class_baseline_count" yaml:"class_baseline_count"`
	TotalActivitySamples  int64        `json:"total_activity_samples" yaml:"total_activity_samples"`
	TotalClassSamples     int64        `json:"total_class_samples" yaml:"total_class_samples"`
	TopClasses            []ClassTotal `json:"top_classes" yaml:"top_classes"`
	TopHours              []HourTotal  `json:"top_hours" yaml:"top_hours"`
}

func (s *Summary) clone() *Summary {
	c := *s
	c.TopClasses = slices.Clone(s.TopClasses)
	c.TopHours = slices.Clone(s.TopHours)
	return &c
}

// GetCameraBaselineSummary counts a camera's baseline rows and ranks its
// top classes and hours. Equal totals are ordered by class name or hour
// ascending. Results may be served from a short-lived cache.
func (e *Engine) GetCameraBaselineSummary(ctx context.Context, cameraID string) (*Summary, error) {
	if err := validateCamera(cameraID); err != nil {
		return nil, err
	}

	if e.summaries != nil {
		e.summaries.DeleteExpired()
		if cached, found := e.summaries.Get(cameraID); found {
			e.recordSummaryCache(true)
			return cached.(*Summary).clone(), nil
		}
		e.recordSummaryCache(false)
	}

	gen := e.generations.current(cameraID)
	// the shared load outlives any single caller's cancellation
	ch := e.loads.DoChan(cameraID, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryLoadTimeout)
		defer cancel()
		return e.loadSummary(lctx, cameraID)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	summary := res.Val.(*Summary)

	// skip caching if a write for this camera committed while the summary was loading
	if e.summaries != nil && e.generations.current(cameraID) == gen {
		e.summaries.Set(cameraID, summary, cache.DefaultExpiration)
	}
	return summary.clone(), nil
}

func (e *Engine) loadSummary(ctx context.Context, cameraID string) (*Summary, error) {
	var (
		activity []datastore.ActivityBaseline
		classes  []datastore.ClassBaseline
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		activity, err = e.store.ListActivityBaselines(gctx, cameraID)
		return err
	})
	g.Go(func() error {
		var err error
		classes, err = e.store.ListClassBaselines(gctx, cameraID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := summarize(cameraID, activity, classes)
	e.log.WithContext(ctx).Debug("baseline summary loaded",
		logger.String("camera_id", cameraID),
		logger.Int("activity_rows", summary.ActivityBaselineCount),
		logger.Int("class_rows", summary.ClassBaselineCount))
	return summary, nil
}

// summarize aggregates raw rows into a Summary
func summarize(cameraID string, activity []datastore.ActivityBaseline, classes []datastore.ClassBaseline) *Summary {
	s := &Summary{
		CameraID:              cameraID,
		ActivityBaselineCount: len(activity),
		ClassBaselineCount:    len(classes),
		TopClasses:            []ClassTotal{},
		TopHours:              []HourTotal{},
	}

	byClass := make(map[string]*ClassTotal)
	for i := range classes {
		row := &classes[i]
		s.TotalClassSamples += row.SampleCount
		t, ok := byClass[row.DetectionClass]
		if !ok {
			t = &ClassTotal{Class: row.DetectionClass}
			byClass[row.DetectionClass] = t
		}
		t.Frequency += row.Frequency
		t.Samples += row.SampleCount
	}

	byHour := make(map[int]*HourTotal)
	for i := range activity {
		row := &activity[i]
		s.TotalActivitySamples += row.SampleCount
		t, ok := byHour[row.Hour]
		if !ok {
			t = &HourTotal{Hour: row.Hour}
			byHour[row.Hour] = t
		}
		t.AvgCount += row.AvgCount
		t.Samples += row.SampleCount
	}

	for _, t := range byClass {
		s.TopClasses = append(s.TopClasses, *t)
	}
	slices.SortFunc(s.TopClasses, func(a, b ClassTotal) int {
		if c := cmp.Compare(b.Frequency, a.Frequency); c != 0 {
			return c
		}
		return cmp.Compare(a.Class, b.Class)
	})

	for _, t := range byHour {
		s.TopHours = append(s.TopHours, *t)
	}
	slices.SortFunc(s.TopHours, func(a, b HourTotal) int {
		if c := cmp.Compare(b.AvgCount, a.AvgCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Hour, b.Hour)
	})

	if len(s.TopClasses) > topN {
		s.TopClasses = s.TopClasses[:topN]
	}
	if len(s.TopHours) > topN {
		s.TopHours = s.TopHours[:topN]
	}
	return s
}

// generations counts committed writes per camera. The epoch advances on a
// full reset and is part of every camera's generation.
type generations struct {
	mu       sync.Mutex
	epoch    uint64
	byCamera map[string]uint64
}

type generation struct {
	epoch, writes uint64
}

func (g *generations) current(cameraID string) generation {
	g.mu.Lock()
	defer g.mu.Unlock()
	return generation{epoch: g.epoch, writes: g.byCamera[cameraID]}
}

func (g *generations) bump(cameraID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.byCamera == nil {
		g.byCamera = make(map[string]uint64)
	}
	g.byCamera[cameraID]++
}

func (g *generations) bumpAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.epoch++
}

// invalidateSummary drops the cached summary for a camera after a write commits.
func (e *Engine) invalidateSummary(cameraID string) {
	e.generations.bump(cameraID)
	e.loads.Forget(cameraID)
	if e.summaries != nil {
		e.summaries.Delete(cameraID)
	}
}

func (e *Engine) recordSummaryCache(hit bool) {
	if e.metrics != nil {
		e.metrics.RecordSummaryCache(hit)
	}
}
