package pool

// DefaultBufferSize is the read scratch size used when none is configured.
const DefaultBufferSize = 4096
