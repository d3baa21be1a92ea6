// Package importsource turns CSV and XLSX debt feeds, local or in S3, into a
// stream of header-mapped rows.
//
// Headers are matched case-insensitively against a small synonym table so
// "Debt Subject", "debt_subject" and "debtSubject" all land on the same
// field. A source missing a required column is rejected as a whole; a
// single malformed record is reported as a *RowError and reading continues.
package importsource
