package kv

import (
	"context"
	"maps"
	"path"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/kailas-cloud/fallsearch/internal/db"
)

// fakeStore is an in-memory store for repository tests.
type fakeStore struct {
	mu     sync.Mutex
	kv     map[string][]byte
	hashes map[string]map[string]string

	scanErr error
	getErr  error
	scans   []string
	ttls    map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		kv:     make(map[string][]byte),
		hashes: make(map[string]map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv[key] = value
	return nil
}

func (f *fakeStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range items {
		h, ok := f.hashes[it.Key]
		if !ok {
			h = make(map[string]string)
			f.hashes[it.Key] = h
		}
		maps.Copy(h, it.Fields)
	}
	return nil
}

func (f *fakeStore) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = maps.Clone(f.hashes[k])
	}
	return out, nil
}

func (f *fakeStore) Scan(_ context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = append(f.scans, pattern)
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	var keys []string
	for k := range f.hashes {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (f *fakeStore) IncrBy(_ context.Context, key string, val int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, _ := strconv.ParseInt(string(f.kv[key]), 10, 64)
	f.kv[key] = []byte(strconv.FormatInt(cur+val, 10))
	return nil
}

func (f *fakeStore) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ttls[key]; ok && nx {
		return nil
	}
	f.ttls[key] = ttl
	return nil
}
