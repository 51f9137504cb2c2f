package service

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"curriculum-backend/pkg/courseschema"
)

var (
	metricsOnce sync.Once

	lessonMigrationsTotal *prometheus.CounterVec
	normalizeDuration     prometheus.Histogram
	importRecordsTotal    *prometheus.CounterVec
	backfillRowsTotal     prometheus.Counter
	cacheLookupsTotal     *prometheus.CounterVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		lessonMigrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "curriculum",
			Subsystem: "content",
			Name:      "lesson_migrations_total",
			Help:      "Lesson content migrations by detected legacy shape",
		}, []string{"shape", "legacy"})

		normalizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "curriculum",
			Subsystem: "content",
			Name:      "course_normalize_seconds",
			Help:      "Time spent normalizing a course tree",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		})

		importRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "curriculum",
			Subsystem: "content",
			Name:      "import_records_total",
			Help:      "Bulk import records by outcome",
		}, []string{"status"})

		backfillRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "curriculum",
			Subsystem: "content",
			Name:      "backfill_rows_total",
			Help:      "Stored lesson content rows re-migrated by backfill",
		})

		cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "curriculum",
			Subsystem: "content",
			Name:      "cache_lookups_total",
			Help:      "Normalized course cache lookups by result",
		}, []string{"kind", "result"})
	})
}

func observeMigrations(reports ...courseschema.MigrationReport) {
	for _, report := range reports {
		lessonMigrationsTotal.WithLabelValues(string(report.Shape), strconv.FormatBool(report.Legacy)).Inc()
	}
}
