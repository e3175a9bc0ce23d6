package constants

const AppName = "embytoalist"

const (
	ProtocolRequestIDKey   = "X-Request-ID"
	ProtocolCacheStatusKey = "X-EmbyToAList-Cache"
)

// ChunkSize is the streaming unit for cache reads and client copies.
const ChunkSize = 1 << 20

// TailWindow is the trailing region that is always cache-eligible; media
// containers keep their index/trailer inside it.
const TailWindow = 2 << 20

// ReconnectSlack bounds the bytes a response may proxy past the cache
// frontier when forced reconnects are enabled.
const ReconnectSlack = 1 << 20
