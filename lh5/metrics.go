package lh5

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	directionToLH5   = "to_lh5"
	directionFromLH5 = "from_lh5"
)

// Metrics counts conversion results. A nil *Metrics records nothing.
type Metrics struct {
	files        *prometheus.CounterVec
	tables       *prometheus.CounterVec
	columns      *prometheus.CounterVec
	emptyColumns prometheus.Counter
}

// NewMetrics registers the conversion metrics with reg. It returns nil for
// a nil registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	return &Metrics{
		files: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "lh5conv",
			Name:      "files_total",
			Help:      "Number of files processed, by direction and result",
		}, []string{"direction", "result"}),
		tables: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "lh5conv",
			Name:      "tables_total",
			Help:      "Number of tables processed, by direction and result",
		}, []string{"direction", "result"}),
		columns: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "lh5conv",
			Name:      "columns_total",
			Help:      "Number of columns converted, by direction",
		}, []string{"direction"}),
		emptyColumns: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "lh5conv",
			Name:      "empty_columns_total",
			Help:      "Number of columns without data that were created empty",
		}),
	}
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (m *Metrics) fileDone(direction string, err error) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(direction, result(err)).Inc()
}

func (m *Metrics) tableDone(direction string, err error) {
	if m == nil {
		return
	}
	m.tables.WithLabelValues(direction, result(err)).Inc()
}

func (m *Metrics) columnDone(direction string) {
	if m == nil {
		return
	}
	m.columns.WithLabelValues(direction).Inc()
}

func (m *Metrics) emptyColumn() {
	if m == nil {
		return
	}
	m.emptyColumns.Inc()
}
