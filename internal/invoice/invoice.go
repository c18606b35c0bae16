// Package invoice builds deterministic invoice numbers for gateway charges.
//
// The number is stable for a given community, transaction, and purpose, so a
// retried or duplicated charge carries the same invoice number to the gateway.
package invoice

import "fmt"

// PurposeCommission marks invoices raised for marketplace commission charges.
const PurposeCommission = "commission"

// Create returns the invoice number for a charge against the given
// transaction, in the form "<communityID>-<transactionID>-<purpose>".
func Create(communityID, transactionID int64, purpose string) string {
	return fmt.Sprintf("%d-%d-%s", communityID, transactionID, purpose)
}
