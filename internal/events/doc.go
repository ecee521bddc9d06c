// Package events carries auth state transitions from the engine to an
// observer sink through a bounded asynchronous dispatcher.
package events
