package domain

// SaveOptions describes which downstream side effects a customer save should
// suppress. It is an immutable value: construct it once and pass it along,
// never mutate a shared instance.
type SaveOptions struct {
	// DisableQueue suppresses re-enqueueing the customer on the newsletter
	// queue. Required for saves triggered by the sync itself, otherwise the
	// status write-back would enqueue a new update and loop forever.
	DisableQueue bool

	// DisableSegmentBuilders suppresses on-save segment recalculation.
	DisableSegmentBuilders bool

	// DisableValidator suppresses customer validation on save.
	DisableValidator bool

	// DisableDuplicatesIndex suppresses duplicate-index maintenance.
	DisableDuplicatesIndex bool
}

// SyncSaveOptions returns the options used for saves performed by the sync
// engine itself: everything that could observe the save as a fresh change
// is turned off.
func SyncSaveOptions() SaveOptions {
	return SaveOptions{
		DisableQueue:           true,
		DisableSegmentBuilders: true,
		DisableValidator:       true,
		DisableDuplicatesIndex: true,
	}
}
