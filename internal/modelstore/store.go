// Package modelstore caches trained language models in BadgerDB so that a
// large corpus is only counted once per order and scoring configuration.
package modelstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"crosswarped.com/subsolve/pkg/ngram"
)

// Config holds configuration for a Store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is set.
	Path string
	// InMemory keeps the cache in memory only.
	InMemory bool
	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
	// TTL expires stored models after this long. Zero keeps them forever.
	// Badger stores expiry with one second resolution.
	TTL time.Duration
}

// Settings identifies a trained model for a given corpus.
type Settings struct {
	Order      int
	Penalty    float64
	SpaceAware bool
}

// Options returns the training options described by s.
func (s Settings) Options() []ngram.Option {
	opts := []ngram.Option{ngram.WithUnseenPenalty(s.Penalty)}
	if s.SpaceAware {
		opts = append(opts, ngram.WithSpaceAwareScoring())
	}
	return opts
}

type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens the cache described by cfg. The caller must Close it.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent model store")
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("negative ttl %v", cfg.TTL)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create model store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open model store: %w", err)
	}
	return &Store{db: db, ttl: cfg.TTL}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Key derives the cache key of a model trained on corpus with settings.
func Key(corpus string, settings Settings) []byte {
	sum := sha256.Sum256([]byte(corpus))
	key := "model/" + hex.EncodeToString(sum[:]) +
		"/" + strconv.Itoa(settings.Order) +
		"/" + strconv.FormatFloat(settings.Penalty, 'g', -1, 64) +
		"/" + strconv.FormatBool(settings.SpaceAware)
	return []byte(key)
}

// Get returns the model stored under key. The boolean is false if there is
// none.
func (s *Store) Get(key []byte) (*ngram.Model, bool, error) {
	var m ngram.Model
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get model %s: %w", key, err)
	}
	return &m, true, nil
}

// Put stores m under key, replacing any previous model. The entry expires
// after the store's TTL.
func (s *Store) Put(key []byte, m *ngram.Model) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("put model %s: %w", key, err)
	}
	return nil
}

// GetOrTrain returns the cached model for corpus and settings, training and
// storing it first if needed. The boolean reports a cache hit.
func (s *Store) GetOrTrain(corpus string, settings Settings) (*ngram.Model, bool, error) {
	key := Key(corpus, settings)
	if m, ok, err := s.Get(key); err != nil || ok {
		return m, ok, err
	}

	m, err := ngram.Train(corpus, settings.Order, settings.Options()...)
	if err != nil {
		return nil, false, err
	}
	if err := s.Put(key, m); err != nil {
		return nil, false, err
	}
	return m, false, nil
}
