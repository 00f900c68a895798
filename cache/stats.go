package cache

// Stats tracks per-command counters, mirroring stats.h's CACHE_STATS
// X-macro list as a plain struct - the engine is single-threaded
// (spec.md §5) so plain uint64 fields need no atomics.
type Stats struct {
	CmdGet     uint64
	GetHits    uint64
	GetMisses  uint64
	CmdSet     uint64
	SetNew     uint64
	SetExisting uint64
	CmdAdd     uint64
	AddStored     uint64
	AddNotStored  uint64
	CmdReplace       uint64
	ReplaceStored    uint64
	ReplaceNotStored uint64
	CmdCas     uint64
	CasStored  uint64
	CasBadval  uint64
	CasMisses  uint64
	CmdAppend     uint64
	AppendStored  uint64
	AppendMisses  uint64
	CmdPrepend    uint64
	PrependStored uint64
	PrependMisses uint64
	CmdDelete    uint64
	DeleteHits   uint64
	DeleteMisses uint64
	CmdTouch    uint64
	TouchHits   uint64
	TouchMisses uint64
	CmdFlush uint64
	CmdIncr    uint64
	IncrHits   uint64
	IncrMisses uint64
	CmdDecr    uint64
	DecrHits   uint64
	DecrMisses uint64

	CurrItems  uint64
	Evictions  uint64
	Expired    uint64
}
