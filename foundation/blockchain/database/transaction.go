package database

import (
	"fmt"
)

// =============================================================================

// Tx is the transfer information between two parties. A Tx is trusted at
// face value, there is no signature or balance check.
type Tx struct {
	From   string `json:"from"`   // Name of the party sending the amount.
	To     string `json:"to"`     // Name of the party receiving the amount.
	Amount uint64 `json:"amount"` // Amount being transferred.
}

// NewTx constructs a new transaction.
func NewTx(from string, to string, amount uint64) Tx {
	return Tx{
		From:   from,
		To:     to,
		Amount: amount,
	}
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s->%s:%d", tx.From, tx.To, tx.Amount)
}
