// Package server serves a directory tree as a Web Bundle over HTTP,
// rebuilding and caching it on demand. It is an adapter over webbundle,
// not a required part of the codec itself.
package server

import (
	"context"
	"fmt"
	"hash/crc32"
	"net/http"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold"

	"github.com/dtn7/go-webbundle/webbundle"
)

// Server builds a bundle from SourceDir on request, caching the result
// until a change is seen in SourceDir. Only SourceDir itself is watched:
// changes inside its subdirectories do not invalidate the cache.
type Server struct {
	router *mux.Router

	sourceDir string
	version   webbundle.Version

	mu       sync.Mutex
	cached   []byte
	cachedAt time.Time

	cache *badgerhold.Store

	upgrader websocket.Upgrader
	clients  sync.Map // *websocket.Conn -> struct{}

	watcher *fsnotify.Watcher
}

// New creates a Server rooted at sourceDir, encoding bundles with version.
// cacheDir, if non-empty, is used for an on-disk badgerhold cache of the
// last-built bundle, keyed by sourceDir alone; an empty cacheDir disables
// the on-disk layer and relies on the in-memory one only. The key carries no
// modification-time fingerprint, so changes made to sourceDir while no
// Server is watching it do not invalidate the on-disk record.
func New(sourceDir string, version webbundle.Version, cacheDir string) (*Server, error) {
	s := &Server{
		router:    mux.NewRouter(),
		sourceDir: sourceDir,
		version:   version,
		upgrader:  websocket.Upgrader{},
	}

	if cacheDir != "" {
		opts := badgerhold.DefaultOptions
		opts.Dir = cacheDir
		opts.ValueDir = cacheDir
		store, err := badgerhold.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("webbundle server: opening build cache: %w", err)
		}
		s.cache = store
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("webbundle server: creating watcher: %w", err)
	}
	if err := watcher.Add(sourceDir); err != nil {
		return nil, fmt.Errorf("webbundle server: watching %s: %w", sourceDir, err)
	}
	s.watcher = watcher
	go s.watchLoop()

	s.router.HandleFunc("/bundle.wbn", s.handleBundle).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebsocket)

	return s, nil
}

// Handler returns the http.Handler serving this Server's routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the watcher and cache.
func (s *Server) Close() error {
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

func (s *Server) log() *log.Entry {
	return log.WithField("sourceDir", s.sourceDir)
}

func (s *Server) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.log().WithField("event", event).Debug("webbundle server: source tree changed")
			s.invalidate()
			s.notifyClients()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log().WithError(err).Warn("webbundle server: watcher error")
		}
	}
}

func (s *Server) invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()

	if s.cache != nil {
		key := cacheKey{Dir: s.sourceDir}
		if err := s.cache.Delete(key.String(), cacheRecord{}); err != nil && err != badgerhold.ErrNotFound {
			s.log().WithError(err).Warn("webbundle server: evicting build cache failed")
		}
	}
}

func (s *Server) notifyClients() {
	s.clients.Range(func(key, _ interface{}) bool {
		conn := key.(*websocket.Conn)
		if err := conn.WriteMessage(websocket.TextMessage, []byte("invalidated")); err != nil {
			s.clients.Delete(conn)
			_ = conn.Close()
		}
		return true
	})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().WithError(err).Warn("webbundle server: websocket upgrade failed")
		return
	}
	s.clients.Store(conn, struct{}{})
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	data, err := s.build(r.Context())
	if err != nil {
		s.log().WithError(err).Error("webbundle server: build failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	etag := fmt.Sprintf(`"%08x"`, crc32.Checksum(data, crc32.MakeTable(crc32.Castagnoli)))
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/webbundle")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	_, _ = w.Write(data)
}

// build returns the cached bundle bytes, rebuilding from sourceDir if the
// in-memory cache was invalidated by a watcher event. On an in-memory miss
// it first consults the on-disk badgerhold cache (populated by a prior
// process) before rebuilding from sourceDir.
func (s *Server) build(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if s.cached != nil {
		data := s.cached
		s.mu.Unlock()
		return data, nil
	}
	s.mu.Unlock()

	if data, ok, err := s.lookupCache(); err != nil {
		s.log().WithError(err).Warn("webbundle server: reading build cache failed")
	} else if ok {
		return data, nil
	}

	bndl, err := webbundle.NewBuilder().
		Version(s.version).
		ExchangesFromDir(ctx, s.sourceDir).
		Build()
	if err != nil {
		return nil, err
	}

	data, err := bndl.Encode()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached = data
	s.cachedAt = time.Now()
	s.mu.Unlock()

	if s.cache != nil {
		key := cacheKey{Dir: s.sourceDir}
		if err := s.cache.Upsert(key.String(), cacheRecord{Data: data, BuiltAt: s.cachedAt}); err != nil {
			s.log().WithError(err).Warn("webbundle server: caching build to disk failed")
		}
	}

	return data, nil
}

// lookupCache consults the on-disk badgerhold cache for a build of
// sourceDir, populating the in-memory cache on a hit. ok is false both when
// the cache is disabled and when no record exists yet.
func (s *Server) lookupCache() (data []byte, ok bool, err error) {
	if s.cache == nil {
		return nil, false, nil
	}

	var rec cacheRecord
	key := cacheKey{Dir: s.sourceDir}
	if err := s.cache.Get(key.String(), &rec); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	s.mu.Lock()
	s.cached = rec.Data
	s.cachedAt = rec.BuiltAt
	s.mu.Unlock()

	return rec.Data, true, nil
}
