// Package metrics exposes cache.Stats and arena.Stats as Prometheus
// collectors, following the sink abstraction Voskan-arena-cache's
// pkg/metrics.go uses to make metrics collection optional: a server run
// without a *prometheus.Registry pays nothing beyond the sink's no-op
// method calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cachelot/cachelot-sub000/cache"
	"github.com/cachelot/cachelot-sub000/internal/arena"
)

// Sink receives a snapshot of engine and arena counters. Report is cheap
// to call often - server.Serve calls it from a periodic ticker - since it
// is just a handful of Set calls on already-allocated collectors.
type Sink interface {
	Report(s cache.Stats, a arena.Stats)
}

type noopSink struct{}

func (noopSink) Report(cache.Stats, arena.Stats) {}

// NewNoop returns a Sink that discards every report, for servers started
// without a metrics registry.
func NewNoop() Sink { return noopSink{} }

// promSink mirrors cache.Stats and arena.Stats as gauges rather than
// counters: both structs are already monotonic running totals owned by
// the engine, so Report just re-Sets each gauge to the latest value
// instead of reconstructing a delta to Add.
type promSink struct {
	cmdGet, getHits, getMisses                     prometheus.Gauge
	cmdSet, setNew, setExisting                     prometheus.Gauge
	cmdAdd, addStored, addNotStored                 prometheus.Gauge
	cmdReplace, replaceStored, replaceNotStored     prometheus.Gauge
	cmdCas, casStored, casBadval, casMisses         prometheus.Gauge
	cmdAppend, appendStored, appendMisses           prometheus.Gauge
	cmdPrepend, prependStored, prependMisses        prometheus.Gauge
	cmdDelete, deleteHits, deleteMisses             prometheus.Gauge
	cmdTouch, touchHits, touchMisses                prometheus.Gauge
	cmdFlush                                        prometheus.Gauge
	cmdIncr, incrHits, incrMisses                   prometheus.Gauge
	cmdDecr, decrHits, decrMisses                   prometheus.Gauge
	currItems, evictions, expired                   prometheus.Gauge
	arenaMallocs, arenaFrees, arenaEvictions         prometheus.Gauge
	arenaAllocErrors, arenaExactHits, arenaWeakHits prometheus.Gauge
	bytesRequested, bytesServed                     prometheus.Gauge
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cachelot",
		Name:      name,
		Help:      help,
	})
}

// New builds a Sink registered against reg. Panics if a collector name
// collides with one already registered, the same contract
// prometheus.Registry.MustRegister carries.
func New(reg *prometheus.Registry) Sink {
	s := &promSink{
		cmdGet:           gauge("cmd_get", "get commands received"),
		getHits:          gauge("get_hits", "get commands that found the key"),
		getMisses:        gauge("get_misses", "get commands that did not find the key"),
		cmdSet:           gauge("cmd_set", "set commands received"),
		setNew:           gauge("set_new", "set commands that created a new item"),
		setExisting:      gauge("set_existing", "set commands that overwrote an existing item"),
		cmdAdd:           gauge("cmd_add", "add commands received"),
		addStored:        gauge("add_stored", "add commands that stored"),
		addNotStored:     gauge("add_not_stored", "add commands rejected because the key existed"),
		cmdReplace:       gauge("cmd_replace", "replace commands received"),
		replaceStored:    gauge("replace_stored", "replace commands that stored"),
		replaceNotStored: gauge("replace_not_stored", "replace commands rejected because the key was absent"),
		cmdCas:           gauge("cmd_cas", "cas commands received"),
		casStored:        gauge("cas_stored", "cas commands that stored"),
		casBadval:        gauge("cas_badval", "cas commands rejected for a stale cas token"),
		casMisses:        gauge("cas_misses", "cas commands on a missing key"),
		cmdAppend:        gauge("cmd_append", "append commands received"),
		appendStored:     gauge("append_stored", "append commands that stored"),
		appendMisses:     gauge("append_misses", "append commands on a missing key"),
		cmdPrepend:       gauge("cmd_prepend", "prepend commands received"),
		prependStored:    gauge("prepend_stored", "prepend commands that stored"),
		prependMisses:    gauge("prepend_misses", "prepend commands on a missing key"),
		cmdDelete:        gauge("cmd_delete", "delete commands received"),
		deleteHits:       gauge("delete_hits", "delete commands that removed a key"),
		deleteMisses:     gauge("delete_misses", "delete commands on a missing key"),
		cmdTouch:         gauge("cmd_touch", "touch commands received"),
		touchHits:        gauge("touch_hits", "touch commands that updated a key"),
		touchMisses:      gauge("touch_misses", "touch commands on a missing key"),
		cmdFlush:         gauge("cmd_flush", "flush_all commands received"),
		cmdIncr:          gauge("cmd_incr", "incr commands received"),
		incrHits:         gauge("incr_hits", "incr commands that updated a key"),
		incrMisses:       gauge("incr_misses", "incr commands on a missing key"),
		cmdDecr:          gauge("cmd_decr", "decr commands received"),
		decrHits:         gauge("decr_hits", "decr commands that updated a key"),
		decrMisses:       gauge("decr_misses", "decr commands on a missing key"),
		currItems:        gauge("curr_items", "items currently stored"),
		evictions:        gauge("evictions", "items evicted to make room for new ones"),
		expired:          gauge("expired", "items removed for having expired"),
		arenaMallocs:     gauge("arena_mallocs", "arena allocation attempts, failed ones included"),
		arenaFrees:       gauge("arena_frees", "arena blocks freed"),
		arenaEvictions:   gauge("arena_evictions", "live blocks evicted when the arena's LRU reclaimed their page"),
		arenaAllocErrors: gauge("arena_alloc_errors", "allocations that failed outright"),
		arenaExactHits:   gauge("arena_exact_hits", "allocations satisfied from their own size class"),
		arenaWeakHits:    gauge("arena_weak_hits", "allocations satisfied from a larger size class"),
		bytesRequested:   gauge("arena_bytes_requested", "bytes requested by callers, pre-rounding"),
		bytesServed:      gauge("arena_bytes_served", "bytes actually reserved, post block-size rounding"),
	}
	reg.MustRegister(
		s.cmdGet, s.getHits, s.getMisses,
		s.cmdSet, s.setNew, s.setExisting,
		s.cmdAdd, s.addStored, s.addNotStored,
		s.cmdReplace, s.replaceStored, s.replaceNotStored,
		s.cmdCas, s.casStored, s.casBadval, s.casMisses,
		s.cmdAppend, s.appendStored, s.appendMisses,
		s.cmdPrepend, s.prependStored, s.prependMisses,
		s.cmdDelete, s.deleteHits, s.deleteMisses,
		s.cmdTouch, s.touchHits, s.touchMisses,
		s.cmdFlush,
		s.cmdIncr, s.incrHits, s.incrMisses,
		s.cmdDecr, s.decrHits, s.decrMisses,
		s.currItems, s.evictions, s.expired,
		s.arenaMallocs, s.arenaFrees, s.arenaEvictions,
		s.arenaAllocErrors, s.arenaExactHits, s.arenaWeakHits,
		s.bytesRequested, s.bytesServed,
	)
	return s
}

func (s *promSink) Report(cs cache.Stats, as arena.Stats) {
	s.cmdGet.Set(float64(cs.CmdGet))
	s.getHits.Set(float64(cs.GetHits))
	s.getMisses.Set(float64(cs.GetMisses))
	s.cmdSet.Set(float64(cs.CmdSet))
	s.setNew.Set(float64(cs.SetNew))
	s.setExisting.Set(float64(cs.SetExisting))
	s.cmdAdd.Set(float64(cs.CmdAdd))
	s.addStored.Set(float64(cs.AddStored))
	s.addNotStored.Set(float64(cs.AddNotStored))
	s.cmdReplace.Set(float64(cs.CmdReplace))
	s.replaceStored.Set(float64(cs.ReplaceStored))
	s.replaceNotStored.Set(float64(cs.ReplaceNotStored))
	s.cmdCas.Set(float64(cs.CmdCas))
	s.casStored.Set(float64(cs.CasStored))
	s.casBadval.Set(float64(cs.CasBadval))
	s.casMisses.Set(float64(cs.CasMisses))
	s.cmdAppend.Set(float64(cs.CmdAppend))
	s.appendStored.Set(float64(cs.AppendStored))
	s.appendMisses.Set(float64(cs.AppendMisses))
	s.cmdPrepend.Set(float64(cs.CmdPrepend))
	s.prependStored.Set(float64(cs.PrependStored))
	s.prependMisses.Set(float64(cs.PrependMisses))
	s.cmdDelete.Set(float64(cs.CmdDelete))
	s.deleteHits.Set(float64(cs.DeleteHits))
	s.deleteMisses.Set(float64(cs.DeleteMisses))
	s.cmdTouch.Set(float64(cs.CmdTouch))
	s.touchHits.Set(float64(cs.TouchHits))
	s.touchMisses.Set(float64(cs.TouchMisses))
	s.cmdFlush.Set(float64(cs.CmdFlush))
	s.cmdIncr.Set(float64(cs.CmdIncr))
	s.incrHits.Set(float64(cs.IncrHits))
	s.incrMisses.Set(float64(cs.IncrMisses))
	s.cmdDecr.Set(float64(cs.CmdDecr))
	s.decrHits.Set(float64(cs.DecrHits))
	s.decrMisses.Set(float64(cs.DecrMisses))
	s.currItems.Set(float64(cs.CurrItems))
	s.evictions.Set(float64(cs.Evictions))
	s.expired.Set(float64(cs.Expired))
	s.arenaMallocs.Set(float64(as.Mallocs))
	s.arenaFrees.Set(float64(as.Frees))
	s.arenaEvictions.Set(float64(as.Evictions))
	s.arenaAllocErrors.Set(float64(as.AllocErrors))
	s.arenaExactHits.Set(float64(as.ExactHits))
	s.arenaWeakHits.Set(float64(as.WeakHits))
	s.bytesRequested.Set(float64(as.BytesRequested))
	s.bytesServed.Set(float64(as.BytesServed))
}
