// Copyright 2024 The skylark Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package etcdlocker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/skylark-im/skylark/pkg/cluster/locker"
	"github.com/skylark-im/skylark/pkg/log"
	etcdv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

const defaultKeyPrefix = "/skylark/lock"

var errNotStarted = errors.New("etcdlocker: locker not started")

// Config contains etcd locker configuration.
type Config struct {
	// KeyPrefix is the etcd key space under which locks are registered.
	KeyPrefix string `fig:"key_prefix" default:"/skylark/lock"`

	// SessionTTL is the lease time to live of the underlying etcd session.
	// An expired lease releases every lock the node still holds.
	SessionTTL time.Duration `fig:"session_ttl" default:"10s"`
}

type etcdLock struct {
	mu *concurrency.Mutex
}

func (l *etcdLock) Release(ctx context.Context) error { return l.mu.Unlock(ctx) }

type etcdLocker struct {
	cfg Config
	cli *etcdv3.Client
	ss  *concurrency.Session
}

// New returns a new initialized etcd locker.
func New(cli *etcdv3.Client, cfg Config) locker.Locker {
	if len(cfg.KeyPrefix) == 0 {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	return &etcdLocker{cfg: cfg, cli: cli}
}

func (l *etcdLocker) AcquireLock(ctx context.Context, lockID string) (locker.Lock, error) {
	if l.ss == nil {
		return nil, errNotStarted
	}
	mu := concurrency.NewMutex(l.ss, l.lockPath(lockID))
	if err := mu.Lock(ctx); err != nil {
		return nil, err
	}
	return &etcdLock{mu: mu}, nil
}

func (l *etcdLocker) Start(_ context.Context) error {
	var opts []concurrency.SessionOption
	if l.cfg.SessionTTL > 0 {
		opts = append(opts, concurrency.WithTTL(int(l.cfg.SessionTTL.Seconds())))
	}
	ss, err := concurrency.NewSession(l.cli, opts...)
	if err != nil {
		return err
	}
	l.ss = ss
	log.Infow("Started etcd locker", "key_prefix", l.cfg.KeyPrefix)
	return nil
}

func (l *etcdLocker) Stop(_ context.Context) error {
	if l.ss == nil {
		return nil
	}
	if err := l.ss.Close(); err != nil {
		return err
	}
	log.Infof("Stopped etcd locker")
	return nil
}

func (l *etcdLocker) lockPath(lockID string) string {
	return strings.TrimSuffix(l.cfg.KeyPrefix, "/") + "/" + lockID
}
