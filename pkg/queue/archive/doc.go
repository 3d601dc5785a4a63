// Package archive keeps failed job records outside the queue store.
//
// The worker calls an Archiver for every queue with failed records past the
// retention window, right before PurgeOldJobs deletes them. S3Archiver writes
// each batch as one JSON Document under <prefix>/<queue>/<timestamp>.json:
//
//	a, err := archive.NewS3Archiver(ctx, cfg.S3Config(), archive.WithUploadTimeout(cfg.UploadTimeout))
//	w, err := queue.NewWorker(manager, queue.WithArchiver(a))
package archive
