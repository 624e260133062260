// Package core provides the business logic for tender BoQ reconciliation.
//
// This package holds all domain logic independent of any transport or
// storage layer. It can be used by the HTTP server, the boqctl CLI, or tests
// without modification; persistence is reached only through the [Store]
// interface.
//
// # Architecture
//
// The package is organized around the flow of BoQ data:
//
//   - Codec: [DecodeBoQ] and [EncodeBoQ] convert line items to and from the
//     flat CSV exchange format. [DecodeBoQXLSX] and [EncodeBoQXLSX] do the
//     same for spreadsheets.
//   - Validation: [ValidateBoQ] enforces required fields, non-negative
//     numbers and item_code uniqueness. Validation is all-or-nothing.
//   - Import: [Service.ImportBoQ] replaces a tender's line items atomically
//     and drops rate entries that reference removed items.
//   - Comparison: [Service.BuildMatrix] joins line items with eligible bids,
//     [ComputeVariance] derives per-bid variance against a baseline, and
//     [ExportComparison] writes the grid back out through the codec.
//
// # Exchange Format
//
// The BoQ file is RFC 4180 CSV with the header
//
//	item_code,description,quantity,uom,estimated_unit_rate
//
// Columns are matched by name (case-insensitive, spaces and hyphens read as
// underscores), so order is free. Numbers are written in canonical form:
// plain decimal, no exponent, no thousands separators, minimal decimal
// places. Row numbers in errors count records, with the header as row 1.
//
// # Error Handling
//
// Errors are typed ([ValidationError], [NotFoundError], [ConflictError],
// [IOError]) and match the sentinels [ErrValidation], [ErrNotFound],
// [ErrConflict] and [ErrIO] with errors.Is. [MapError] turns any error into
// a user-facing message with a support code:
//
//   - BOQ001-BOQ004: validation, not found, conflict, I/O
//   - DB001-DB007: database errors (constraints, connections)
//   - FILE001-FILE005: file errors (size, encoding, format)
//   - IMP001-IMP004: import process errors (busy, cancelled, timeout)
package core
