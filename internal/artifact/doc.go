// Package artifact loads, validates and stores the fitted transform and
// classifier artifacts for a catalog.
//
// A catalog's artifact set lives under a source as
//
//	<catalog>_model.json    random forest (see package forest)
//	<catalog>_scaler.json   Scaler
//	<catalog>_medians.json  Medians (catalogs imputing from artifacts)
//	<catalog>_encoder.json  Encoder (catalogs with categorical columns)
//
// Artifacts are immutable once loaded and are shared read-only between
// requests.
package artifact
