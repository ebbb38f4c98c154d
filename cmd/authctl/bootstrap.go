package main

import (
	"errors"

	"github.com/jrsteele09/go-auth-client/api"
	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/session"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// dependencies is everything a command needs, built once from config.
type dependencies struct {
	Store    credentials.Store
	Client   *api.Client
	Manager  *session.Manager
	Registry *prometheus.Registry
	Metrics  *metrics.Recorder

	closers []func() error
}

func newDependencies(cfg config.Config, logger zerolog.Logger) (*dependencies, error) {
	d := &dependencies{Registry: prometheus.NewRegistry()}

	recorder, err := metrics.NewRecorder(d.Registry)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[newDependencies] metrics.NewRecorder")
	}
	d.Metrics = recorder

	store, closeStore, err := newStore(cfg.Credentials)
	if err != nil {
		return nil, err
	}
	d.Store = store
	if closeStore != nil {
		d.closers = append(d.closers, closeStore)
	}

	client, err := api.New(cfg.GetBaseURL(),
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(logger.With().Str("component", "api").Logger()),
		api.WithMetrics(recorder),
	)
	if err != nil {
		_ = d.Close()
		return nil, pkgerrors.Wrap(err, "[newDependencies] api.New")
	}
	d.Client = client

	manager, err := session.New(store, client,
		session.WithLogger(logger.With().Str("component", "session").Logger()),
		session.WithMetrics(recorder),
	)
	if err != nil {
		_ = d.Close()
		return nil, pkgerrors.Wrap(err, "[newDependencies] session.New")
	}
	d.Manager = manager
	d.closers = append(d.closers, func() error {
		manager.Close()
		return nil
	})
	return d, nil
}

// newStore builds the configured credential store and, when it holds a
// connection, the func that releases it.
func newStore(cfg config.CredentialsConfig) (credentials.Store, func() error, error) {
	switch cfg.Backend {
	case config.StoreMemory:
		return credentials.NewMemoryStore(), nil, nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return credentials.NewRedisStoreWithPrefix(client, cfg.RedisPrefix), client.Close, nil
	default:
		var options []credentials.FileStoreOption
		if cfg.Sealed() {
			sealer, err := credentials.NewSealerFromHex(cfg.EncryptionKey)
			if err != nil {
				return nil, nil, pkgerrors.Wrap(err, "[newStore] credentials.NewSealerFromHex")
			}
			options = append(options, credentials.WithSealer(sealer))
		}
		store, err := credentials.NewFileStore(cfg.Path, options...)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(err, "[newStore] credentials.NewFileStore")
		}
		return store, nil, nil
	}
}

func (d *dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
