// internal/workers/forfeit.go
//
// Abandonment policy for live games: a player who walks away mid-game does
// not leave the opponent stuck. The sweep finishes every active game whose
// turn has been idle past the timeout, awarding the pot to the waiting
// player. The decision is made server-side inside the same kind of
// transaction as a normal turn, never by a client.
package workers

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/playgrid/arcade/internal/cache"
	"github.com/playgrid/arcade/internal/database"
	"github.com/playgrid/arcade/internal/realtime"
	"github.com/sirupsen/logrus"
)

// ForfeitSweeper periodically times out idle turns.
type ForfeitSweeper struct {
	Hub         *realtime.Hub
	Logger      *logrus.Logger
	TurnTimeout time.Duration
	Interval    time.Duration

	scheduler gocron.Scheduler
}

// NewForfeitSweeper reads GAME_TURN_TIMEOUT_SEC (default 120) and
// FORFEIT_SWEEP_SEC (default 15) from the environment.
func NewForfeitSweeper(hub *realtime.Hub, logger *logrus.Logger) *ForfeitSweeper {
	return &ForfeitSweeper{
		Hub:         hub,
		Logger:      logger,
		TurnTimeout: time.Duration(cache.GetEnvInt("GAME_TURN_TIMEOUT_SEC", 120)) * time.Second,
		Interval:    time.Duration(cache.GetEnvInt("FORFEIT_SWEEP_SEC", 15)) * time.Second,
	}
}

// Start schedules the sweep. Call Stop on shutdown.
func (fs *ForfeitSweeper) Start() error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = s.NewJob(
		gocron.DurationJob(fs.Interval),
		gocron.NewTask(fs.Sweep),
	)
	if err != nil {
		return err
	}
	fs.scheduler = s
	s.Start()
	fs.Logger.Infof("forfeit sweeper running: turn timeout %s, sweep every %s", fs.TurnTimeout, fs.Interval)
	return nil
}

// Stop halts the scheduler.
func (fs *ForfeitSweeper) Stop() {
	if fs.scheduler != nil {
		_ = fs.scheduler.Shutdown()
	}
}

// Sweep runs one pass: finish every active game idle past the timeout and
// fan the finished rows out to subscribers.
func (fs *ForfeitSweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-fs.TurnTimeout)
	forfeited, err := database.ForfeitIdleGames(ctx, cutoff)
	if err != nil {
		fs.Logger.Errorf("forfeit sweep failed: %v", err)
		return
	}
	for _, g := range forfeited {
		fs.Hub.Publish(g)
		fs.Logger.WithFields(logrus.Fields{
			"game_id": g.ID,
			"winner":  g.Winner,
		}).Info("idle game forfeited")
	}
}
