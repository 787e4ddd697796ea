package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/rzbill/triage/internal/assign"
	cfgpkg "github.com/rzbill/triage/internal/config"
	"github.com/rzbill/triage/internal/fanout"
	pebblestore "github.com/rzbill/triage/internal/storage/pebble"
	"github.com/rzbill/triage/internal/store"
	"github.com/rzbill/triage/internal/transcript"
	logpkg "github.com/rzbill/triage/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	// DataDir is the Pebble data directory. Empty runs in-memory only:
	// no journal, no recovery.
	DataDir string
	Fsync   pebblestore.FsyncMode
	// FsyncInterval controls group-commit when Fsync=FsyncModeInterval.
	FsyncInterval time.Duration

	Config cfgpkg.Config
	Logger logpkg.Logger

	// Now is the clock source; defaults to time.Now. Tests inject it.
	Now func() time.Time
}

// Runtime wires storage, the store, the hub, and the coordinator for a
// single-node instance.
type Runtime struct {
	db      *pebblestore.DB
	journal *pebblestore.Journal
	store   *store.Store
	hub     *fanout.Hub
	coord   *assign.Coordinator
	mailer  transcript.Delivery
	config  cfgpkg.Config
	logger  logpkg.Logger
}

// Open initializes storage, replays the journal into the store, and
// wires the coordinator.
func Open(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}

	rt := &Runtime{config: opts.Config, logger: logger}

	if opts.DataDir != "" {
		db, err := pebblestore.Open(pebblestore.Options{
			DataDir:       opts.DataDir,
			Fsync:         opts.Fsync,
			FsyncInterval: opts.FsyncInterval,
		})
		if err != nil {
			return nil, err
		}
		rt.db = db
		rt.journal = pebblestore.NewJournal(db)
	}

	var persister store.Persister
	if rt.journal != nil {
		persister = rt.journal
	}
	rt.store = store.New(store.Options{
		EscalationThreshold: opts.Config.EscalationThreshold(),
		Now:                 opts.Now,
		Persister:           persister,
		Logger:              logger,
	})

	if rt.journal != nil {
		items, err := rt.journal.LoadAll(context.Background())
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.store.Seed(items)
		if len(items) > 0 {
			logger.Info("journal replayed", logpkg.Int("items", len(items)))
		}
	}

	rt.hub = fanout.NewHub(opts.Config.SubscriberBuffer, logger)

	mailer, err := newDelivery(opts.Config.Transcript, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.mailer = mailer

	rt.coord = assign.New(assign.Options{
		Store:             rt.store,
		Hub:               rt.hub,
		Delivery:          mailer,
		Logger:            logger,
		Now:               opts.Now,
		SweepInterval:     opts.Config.SweepInterval(),
		StaleClaimTimeout: opts.Config.StaleClaimTimeout(),
	})
	return rt, nil
}

func newDelivery(cfg cfgpkg.TranscriptConfig, logger logpkg.Logger) (transcript.Delivery, error) {
	if cfg.AMQPURL == "" {
		return transcript.NewLogDelivery(logger), nil
	}
	return transcript.NewAMQPDelivery(cfg.AMQPURL, cfg.Exchange, cfg.RoutingKey, logger)
}

// Close releases all resources. Safe to call on a partially opened
// Runtime.
func (r *Runtime) Close() error {
	if r.hub != nil {
		r.hub.Close()
	}
	var errs []error
	if c, ok := r.mailer.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	return errors.Join(errs...)
}

// CheckHealth verifies the storage layer responds.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Coordinator returns the assignment coordinator.
func (r *Runtime) Coordinator() *assign.Coordinator { return r.coord }

// Hub returns the change-feed hub.
func (r *Runtime) Hub() *fanout.Hub { return r.hub }

// Store returns the work item store.
func (r *Runtime) Store() *store.Store { return r.store }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
