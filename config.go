package gol

// Options holds the store's open-time configuration. Grounded on the
// teacher's Env.SetPageSize/SetGeometry/SetMaxDBs functional setters;
// expressed here as the idiomatic Go functional-option variant.
type Options struct {
	pageSize       uint32
	multiThreaded  bool
	taskQueueSize  int
	workerCount    int
}

// Option configures a Store at Open time.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		pageSize:      4096,
		multiThreaded: false,
		taskQueueSize: 64,
		workerCount:   4,
	}
}

// WithPageSize sets the store's page size for a new file (ignored when
// opening an existing one, whose page size is read from the header).
func WithPageSize(n uint32) Option {
	return func(o *Options) { o.pageSize = n }
}

// WithMultiThreaded selects the multi-threaded scheduling mode of spec.md
// §5/§6 ("One compile-time option: multi-threaded mode"); Go has no true
// compile-time switch, so this is fixed once at Open and never changed
// for the Store's lifetime, preserving that spirit.
func WithMultiThreaded(enabled bool) Option {
	return func(o *Options) { o.multiThreaded = enabled }
}

// WithTaskQueueSize sets the bounded capacity of the query executor's
// task queue, used only when multi-threaded mode is enabled.
func WithTaskQueueSize(n int) Option {
	return func(o *Options) { o.taskQueueSize = n }
}

// WithWorkerCount sets how many worker goroutines the executor starts in
// multi-threaded mode.
func WithWorkerCount(n int) Option {
	return func(o *Options) { o.workerCount = n }
}
