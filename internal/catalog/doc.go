// Package catalog is the feature schema registry for the survey catalogs the
// service can classify.
//
// Responsibilities: the ordered raw column lists each trained model expects,
// the per-catalog preprocessing policies (absent-column handling, imputation
// source, log1p subset), identifier derivation and the display fields that are
// echoed back with every prediction.
//
// The set of catalogs is closed. Every behavioural difference between catalogs
// is expressed as data on Schema so that no other package branches on a
// catalog name.
package catalog
