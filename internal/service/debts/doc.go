// Package debts defines the debt store contract and the read-side service
// used by the API and the CLI.
//
// Every mutation the store offers is a single conditional write, so the
// PENDING to PAID transition stays monotonic no matter how many importers,
// webhook deliveries or retries race on the same row.
package debts
