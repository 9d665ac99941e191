// Package storage manages the local directory of extracted datasets.
//
// Each run date has one CSV file named YYYYMMDD.csv. Files are written to a
// temporary name and renamed into place so readers never see a partial
// dataset.
package storage
