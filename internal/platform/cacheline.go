package platform

// CacheLineSize is the assumed false-sharing boundary on the target
// architectures the scheduler runs on. There is no portable way to query
// this at runtime in pure Go, so (like the rest of the ecosystem) a fixed
// constant is used.
const CacheLineSize = 64

// CacheLinePad is embedded after hot, frequently-written fields (group
// outstanding counters, per-worker task counters) to keep them from sharing
// a cache line with neighboring fields that other goroutines write
// independently. Grounded on joeycumines-go-utilpkg/eventloop's documented
// "cache-line padding for hot fields" design.
type CacheLinePad [CacheLineSize]byte
