package opt

import "sync"

// Metrics summarizes one planner run.
type Metrics struct {
	Restarts       int              `json:"restarts"`
	Attempts       int              `json:"attempts"`
	FailedAttempts int              `json:"failedAttempts"`
	Improvements   int              `json:"improvements"`
	BestRestart    int              `json:"bestRestart"`
	BestCost       float64          `json:"bestCost"`
	Seed           int64            `json:"seed"`
	ElapsedMs      int64            `json:"elapsedMs"`
	PerRestart     []RestartSummary `json:"perRestart"`
}

// RestartSummary is the outcome of one restart. Cost is zero when !Found.
type RestartSummary struct {
	Restart      int     `json:"restart"`
	Found        bool    `json:"found"`
	Cost         float64 `json:"cost"`
	Attempts     int     `json:"attempts"`
	Failed       int     `json:"failed"`
	Improvements int     `json:"improvements"`
	ElapsedMs    int64   `json:"elapsedMs"`
}

type key struct {
	Tenant string
	PlanID string
}

var (
	mu    sync.Mutex
	store = map[key]Metrics{}
)

// RecordMetrics keeps run metrics in memory as a fallback for stores that
// cannot persist them.
func RecordMetrics(tenant, planID string, m Metrics) {
	mu.Lock()
	store[key{Tenant: tenant, PlanID: planID}] = m
	mu.Unlock()
}

func GetMetrics(tenant, planID string) (Metrics, bool) {
	mu.Lock()
	defer mu.Unlock()
	m, ok := store[key{Tenant: tenant, PlanID: planID}]
	return m, ok
}
