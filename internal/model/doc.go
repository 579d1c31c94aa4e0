// Package model defines the StellarSave data model shared by every layer:
// challenges, contributions, derived progress and stats, notifications, the
// cross-border yield entities, mutation requests, and the structured Error.
//
// Amounts are decimal.Decimal in human currency units. Conversion to integer
// ledger units happens only at the gateway boundary (see package amount).
package model
