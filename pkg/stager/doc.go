// Package stager uploads the day's dataset to S3 (or any S3-compatible
// store) under the key YYYYMMDD.csv, creating the bucket on first use.
package stager
