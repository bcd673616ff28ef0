package bootstrap2

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/agentmail/bus/internal/cache/readcache"
	"github.com/agentmail/bus/internal/diag"
	"github.com/agentmail/bus/internal/evidence"
	"github.com/agentmail/bus/internal/git"
	"github.com/agentmail/bus/internal/lockorder"
	"github.com/agentmail/bus/internal/mcp"
	"github.com/agentmail/bus/internal/metrics"
	"github.com/agentmail/bus/internal/search"
	"github.com/agentmail/bus/internal/store"
	"github.com/agentmail/bus/internal/wbq"
	"github.com/agentmail/bus/internal/workers"
)

// App bundles every process singleton spec.md §9 calls out: the pool
// (Store), the WBQ, the evidence ledger, the metrics registry, and the
// lock-order registry, plus the MCP server and diagnostics HTTP surface
// built on top of them. Constructed once by Init, torn down once by
// Shutdown; no implicit lazy initialisation beyond that pair.
type App struct {
	Config Config

	Store    *store.Store
	WBQ      *wbq.Queue
	Ledger   *evidence.Ledger
	Metrics  *metrics.Registry
	Locks    *lockorder.Registry
	Notifier workers.Notifier
	Search   *search.Engine
	Touches  *readcache.TouchQueue

	MCP      *mcp.Server
	Presence *mcp.SSEPresenceTracker
	Diag     *diag.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Init constructs every singleton and registers the default tool set,
// but does not yet start background workers or listeners — call Run
// for that, so a caller can use a fully wired App without committing
// to a long-running process.
func Init(cfg Config) (*App, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	disk := wbq.NewDiskPressureMonitor(cfg.ArchiveRoot, cfg.DiskCriticalFreeMB*1024*1024)
	gitCache := newGitCache(cfg.ArchiveRoot)
	queue := wbq.NewQueue(cfg.WBQCapacity, cfg.ArchiveRoot, disk, gitCache.For)

	ledger := evidence.NewLedger(cfg.EvidenceLedgerSize)
	metricsReg := metrics.NewRegistry()
	locks := lockorder.NewRegistry(false)

	notifier := workers.NewToastNotifier("agentmail-bus")

	searchEngine, err := search.NewEngine()
	if err != nil {
		st.Close()
		return nil, err
	}
	if err := reindexMessages(st, searchEngine); err != nil {
		st.Close()
		return nil, err
	}

	mcpServer := mcp.NewServer()
	mcp.RegisterDefaultTools(mcpServer, mcp.Deps{Store: st, Search: searchEngine, Server: mcpServer})

	touches := readcache.NewTouchQueue()
	presence := mcp.NewSSEPresenceTracker(touches, nil, nil)
	mcpServer.SetPresenceTracker(presence)

	diagServer := diag.NewServer(metricsReg, locks)

	return &App{
		Config:   cfg,
		Store:    st,
		WBQ:      queue,
		Ledger:   ledger,
		Metrics:  metricsReg,
		Locks:    locks,
		Notifier: notifier,
		Search:   searchEngine,
		Touches:  touches,
		MCP:      mcpServer,
		Presence: presence,
		Diag:     diagServer,
	}, nil
}

// reindexMessages rebuilds the in-memory search engine from the durable
// store on startup, since the bleve index itself is not persisted.
func reindexMessages(st *store.Store, engine *search.Engine) error {
	projectIDs, err := st.ListProjectIDs()
	if err != nil {
		return err
	}
	for _, pid := range projectIDs {
		rows, err := st.SearchMessagesInProject(pid, "", 1<<30)
		if err != nil {
			return err
		}
		for _, r := range rows {
			doc := search.MessageDoc{
				DocID:     fmt.Sprintf("msg:%d", r.Message.ID),
				ProjectID: r.Message.ProjectID,
				Subject:   r.Message.Subject,
				Body:      r.Message.BodyMD,
			}
			if r.Message.ThreadID != nil {
				doc.ThreadID = *r.Message.ThreadID
			}
			if err := engine.IndexMessage(doc, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// gitCache lazily builds and memoizes one *git.Git handle per project
// slug, rooted under the archive root, so wbq's per-drain gitFor
// callback doesn't re-stat the working tree on every call.
type gitCache struct {
	mu   sync.Mutex
	root string
	byProject map[string]*git.Git
}

func newGitCache(root string) *gitCache {
	return &gitCache{root: root, byProject: make(map[string]*git.Git)}
}

func (c *gitCache) For(slug string) *git.Git {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.byProject[slug]; ok {
		return g
	}
	g := git.New(c.root + "/" + slug)
	c.byProject[slug] = g
	return g
}

// Run starts every background worker and the diagnostics HTTP listener,
// returning once they're launched (they run on their own goroutines
// until ctx is cancelled or Shutdown is called).
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		workers.RunReservationCleanup(ctx, a.Store, a.Config.reservationCleanup())
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		workers.RunAckTTLScan(ctx, a.Store, a.Config.ackTTL(), a.Notifier)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.runWBQDrain(ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		workers.RunTouchFlush(ctx, a.Store, a.Touches)
	}()

	if a.Presence != nil {
		a.Presence.StartStaleMonitor()
	}

	if a.Diag != nil && a.Config.DiagAddr != "" {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			srv := &http.Server{Addr: a.Config.DiagAddr, Handler: a.Diag.Router()}
			go func() {
				<-ctx.Done()
				srv.Close()
			}()
			_ = srv.ListenAndServe()
		}()
	}
}

// wbqDrainInterval is how often the write-back queue is drained; each
// drain also commits its batch to git. Kept short so archive writes land
// promptly without starving the DB connection pool.
const wbqDrainInterval = 2 * time.Second

func (a *App) runWBQDrain(ctx context.Context) {
	log.Printf("[wbq-drain] started interval=%s", wbqDrainInterval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[wbq-drain] shutting down")
			return
		default:
		}
		if errsBySlug := a.WBQ.Drain(); len(errsBySlug) > 0 {
			for slug, err := range errsBySlug {
				log.Printf("[wbq-drain] WARN drain failed for %s: %v", slug, err)
			}
		}
		if !workers.SleepChunked(ctx, wbqDrainInterval) {
			return
		}
	}
}

// Shutdown cancels every background worker and waits for them to
// observe cancellation (each worker's SleepChunked loop checks at least
// once per second, per spec.md §5), then closes the store. In-flight DB
// calls are allowed to complete rather than being forcibly cancelled.
func (a *App) Shutdown() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Presence != nil {
		a.Presence.Stop()
	}
	a.wg.Wait()
	return a.Store.Close()
}
