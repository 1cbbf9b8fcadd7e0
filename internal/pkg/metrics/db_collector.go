package metrics

import "github.com/jackc/pgx/v5/pgxpool"

// RecordPoolStats samples the pgx pool counters into DBPoolConnections.
// State names follow the pgxpool.Stat accessors.
func RecordPoolStats(pool *pgxpool.Pool) {
	s := pool.Stat()
	for state, value := range map[string]int32{
		"acquired":     s.AcquiredConns(),
		"idle":         s.IdleConns(),
		"constructing": s.ConstructingConns(),
		"max":          s.MaxConns(),
	} {
		DBPoolConnections.WithLabelValues(state).Set(float64(value))
	}
}
