// Package confirmation applies provider payment events to the debt store.
//
// Delivery is at-least-once and unordered, so every event may arrive more
// than once. Processing is safe to repeat: the store transition only fires
// for PENDING debts and payment records are keyed by the provider
// reference.
//
// Two event shapes are understood. A completed checkout session carries
// the debt id in its metadata and is the primary signal. A succeeded
// payment intent is a weaker fallback that may only carry the debtor's
// email.
package confirmation
