// Package mongostore implements queue.Store on MongoDB with the v2 driver.
//
// Records are documents in queue_jobs keyed by an int64 _id drawn from a
// counter document in queue_counters. Reservation is one FindOneAndUpdate
// guarded by status and available_at, so concurrent sweeps never claim the
// same record. Timestamps come from the store's clock; MongoDB keeps them at
// millisecond precision.
package mongostore
