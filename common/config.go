package common

// Buffer pool and hash index sizing.
const (
	// DefaultPoolSize is the number of frames a buffer pool instance holds
	// when the caller does not specify one.
	DefaultPoolSize = 64

	// MaxHashDepth bounds the global depth of an extendible hash directory.
	// With 9 bits the directory holds at most 512 slots, which is what fits
	// in a single 4KB directory page alongside the depth array.
	MaxHashDepth = 9

	// DirectoryArraySize is the fixed capacity of the directory page's
	// local-depth and bucket-page-id arrays (1 << MaxHashDepth).
	DirectoryArraySize = 1 << MaxHashDepth
)
