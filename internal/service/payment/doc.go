// Package payment gates checkout attempts against a debt's current status
// and asks the payment provider for a hosted checkout session.
//
// Creating an intent never changes the debt. Only a verified confirmation
// event settles it.
package payment
