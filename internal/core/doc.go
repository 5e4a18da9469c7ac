// Package core implements the catalog import pipeline.
//
// An import runs six stages in order, each a plain function or small type
// that can be used on its own:
//
//  1. [Parser] tokenizes delimited text into header-keyed [RawRow] values.
//  2. [Normalizer] resolves English and Korean header aliases and coerces
//     cells (enumerations, lists, booleans, numbers, contact fields).
//  3. [Validator] reports errors and warnings per row against a [Snapshot]
//     of the store.
//  4. [DetectDuplicates] matches incoming names against existing records.
//  5. [Importer] decides insert, update, skip or fail per row and writes in
//     batches through a store.Store.
//  6. [BuildReport] aggregates counts, timings and suggestions.
//
// [Importer.ImportWithValidation] is the entry point and never returns an
// error: every failure is reported inside the [ImportResult].
//
// # Error Codes
//
// Technical errors are mapped to user messages by [MapError]. Each category
// carries a code for support reference:
//
//   - DB001-DB007: store errors (uniqueness, connections, locks)
//   - VAL001-VAL004: row validation
//   - FILE001-FILE005: input size and format
//   - IMP001-IMP003: run control (unknown kind, busy, cancelled)
//   - INT001: recovered panic
package core
