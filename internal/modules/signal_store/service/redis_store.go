package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signal_trader/internal/models"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

type Mode string

const (
	// ModeList: детектор делает RPUSH, читаем последний элемент.
	ModeList Mode = "list"
	// ModeKey: детектор перезаписывает один ключ.
	ModeKey Mode = "key"
)

type Options struct {
	Addr     string
	Password string
	DB       int
	Mode     Mode
	Key      string
	Timeout  time.Duration
}

type Option func(*Options)

func WithAddr(addr string) Option        { return func(o *Options) { o.Addr = addr } }
func WithPassword(pw string) Option      { return func(o *Options) { o.Password = pw } }
func WithDB(db int) Option               { return func(o *Options) { o.DB = db } }
func WithMode(m Mode) Option             { return func(o *Options) { o.Mode = m } }
func WithKey(key string) Option          { return func(o *Options) { o.Key = key } }
func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }

// Store reads the most recent signal the detector published.
type Store struct {
	client  *redis.Client
	mode    Mode
	key     string
	timeout time.Duration
}

// New builds the client. Соединение ленивое: недоступный Redis не мешает
// старту, ошибка всплывёт на первом чтении.
func New(opts ...Option) (*Store, error) {
	cfg := &Options{
		Addr:    "localhost:6379",
		Mode:    ModeList,
		Key:     "signal",
		Timeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Mode != ModeList && cfg.Mode != ModeKey {
		return nil, fmt.Errorf("unknown signal store mode %q", cfg.Mode)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Store{
		client:  client,
		mode:    cfg.Mode,
		key:     cfg.Key,
		timeout: cfg.Timeout,
	}, nil
}

func (s *Store) Key() string  { return s.key }
func (s *Store) Mode() Mode   { return s.mode }
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return models.Transient("redis ping", err)
	}
	return nil
}

// Latest returns nil, nil when nothing has been published yet.
func (s *Store) Latest(ctx context.Context) (*models.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var cmd *redis.StringCmd
	if s.mode == ModeList {
		cmd = s.client.LIndex(ctx, s.key, -1)
	} else {
		cmd = s.client.Get(ctx, s.key)
	}

	data, err := cmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, models.Transient("redis read "+s.key, err)
	}

	var sig models.Signal
	if err := sonic.Unmarshal(data, &sig); err != nil {
		return nil, models.DataInvalid("decode signal", err)
	}
	return &sig, nil
}

// Publish writes a signal the way the detector does: append in list mode,
// overwrite in key mode.
func (s *Store) Publish(ctx context.Context, sig *models.Signal) error {
	data, err := sonic.Marshal(sig)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.mode == ModeList {
		err = s.client.RPush(ctx, s.key, data).Err()
	} else {
		err = s.client.Set(ctx, s.key, data, 0).Err()
	}
	if err != nil {
		return models.Transient("redis write "+s.key, err)
	}
	return nil
}
