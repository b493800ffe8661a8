// Copyright 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/iossifovlab/scoreget/score"
)

// pool holds the idle score files of one ID.  A ScoreFile keeps a query
// window, so each request takes one out and puts it back when done.
type pool struct {
	mu    sync.Mutex
	files []*score.ScoreFile
}

func (p *pool) get() *score.ScoreFile {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.files); n > 0 {
		sf := p.files[n-1]
		p.files = p.files[:n-1]
		return sf
	}
	return nil
}

// put returns sf to the pool, or reports false when the pool is full.
func (p *pool) put(sf *score.ScoreFile, limit int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.files) >= limit {
		return false
	}
	p.files = append(p.files, sf)
	return true
}

func (p *pool) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for _, sf := range p.files {
		errs = append(errs, sf.Close())
	}
	p.files = nil
	return errors.Join(errs...)
}

// acquire returns an open score file for id that the caller owns until it
// calls release.
func (server *Server) acquire(ctx context.Context, id string) (*score.ScoreFile, error) {
	server.mu.Lock()
	p, ok := server.pools[id]
	server.mu.Unlock()
	if ok {
		if sf := p.get(); sf != nil {
			return sf, nil
		}
	}

	// Pooled files outlive the request that opened them.
	sf, err := score.OpenFrom(context.WithoutCancel(ctx), server.opener, id, server.options...)
	if err != nil {
		return nil, err
	}

	server.mu.Lock()
	if _, ok := server.pools[id]; !ok {
		server.pools[id] = &pool{}
		server.opened.ReplaceOrInsert(id)
	}
	server.mu.Unlock()
	return sf, nil
}

func (server *Server) release(id string, sf *score.ScoreFile) {
	server.mu.Lock()
	p, ok := server.pools[id]
	server.mu.Unlock()
	if ok && p.put(sf, server.idle) {
		return
	}
	if err := sf.Close(); err != nil {
		log.Printf("Failed to close %s: %v", id, err)
	}
}
