// Package warehouse merges a staged dataset CSV into the permanent table.
//
// A load creates the table if needed, bulk-copies the CSV into a temporary
// staging table, deletes rows whose id is staged, inserts the staged rows
// and drops the staging table, all in one transaction.
//
// Two dialects are provided. Redshift issues a server-side COPY from S3
// using an IAM role. SQLite parses the CSV client-side with the same
// relaxed rules and is used for local runs and tests.
package warehouse
