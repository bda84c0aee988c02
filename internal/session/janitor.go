package session

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/soyeahso/rentdesk/internal/logging"
)

// Janitor periodically sweeps expired sessions out of a store.
type Janitor struct {
	cron    *cron.Cron
	sweeper Sweeper
	log     *logging.Logger

	// OnSweep, if set, is called after every sweep with the number removed.
	OnSweep func(removed int)
}

// NewJanitor schedules sweeps of s on the given cron spec ("@every 5m",
// "*/10 * * * *"). An empty spec returns nil, nil.
func NewJanitor(spec string, s Sweeper, log *logging.Logger) (*Janitor, error) {
	if spec == "" {
		return nil, nil
	}
	j := &Janitor{cron: cron.New(), sweeper: s, log: log.Sub("session.janitor")}
	if _, err := j.cron.AddFunc(spec, j.run); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Janitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed := j.sweeper.Sweep(ctx)
	if removed > 0 {
		j.log.Info().Int("removed", removed).Msg("expired sessions swept")
	}
	if j.OnSweep != nil {
		j.OnSweep(removed)
	}
}

// Start begins the schedule in its own goroutine.
func (j *Janitor) Start() {
	j.cron.Start()
	j.log.Debug().Msg("session janitor started")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
