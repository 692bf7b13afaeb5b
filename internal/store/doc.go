// Package store publishes the files of a finished restoration run.
//
// Two stores are provided: LocalStore copies into a directory, S3Store uploads
// to a bucket through the AWS upload manager. Publish walks a run directory
// and sends its files concurrently with a bounded number of uploads in flight.
package store
