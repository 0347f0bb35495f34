package opt

import "time"

// AttemptEvent describes one finished solve attempt.
type AttemptEvent struct {
	Restart  int
	Step     int
	Strategy Strategy
	OK       bool
	Improved bool
	// Cost is the unperturbed cost of the attempt; zero when !OK.
	Cost     float64
	Duration time.Duration
	// Err wraps ErrSolveAttemptFailed when !OK.
	Err error
}

// RestartEvent describes one finished restart.
type RestartEvent struct {
	Restart  int
	Found    bool
	Improved bool
	Cost     float64
	// Best is the global best cost after this restart, valid when HasBest is set.
	Best     float64
	HasBest  bool
	Attempts int
	Elapsed  time.Duration
}

// Observer receives planner progress. Implementations must be safe for
// concurrent use when restarts run in parallel.
type Observer interface {
	AttemptFinished(AttemptEvent)
	RestartFinished(RestartEvent)
}

// Observers fans events out to every member.
type Observers []Observer

func (obs Observers) AttemptFinished(e AttemptEvent) {
	for _, o := range obs {
		if o != nil {
			o.AttemptFinished(e)
		}
	}
}

func (obs Observers) RestartFinished(e RestartEvent) {
	for _, o := range obs {
		if o != nil {
			o.RestartFinished(e)
		}
	}
}
