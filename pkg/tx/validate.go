package tx

import "errors"

// Structural validation errors.
var (
	ErrZeroTimestamp  = errors.New("transaction timestamp is zero")
	ErrNonPositiveAmt = errors.New("non-coinbase amount must be > 0")
	ErrNegativeAmt    = errors.New("coinbase amount must be >= 0")
	ErrBadID          = errors.New("id does not match content")
	ErrBadSignature   = errors.New("signature does not verify")
	ErrMissingSig     = errors.New("non-coinbase transaction missing signature")
)

// Validate checks t's structural well-formedness: a non-zero timestamp,
// an amount consistent with its coinbase/non-coinbase kind, and that its
// id and signature verify against its content. It does not check
// against chain state (balances, coinbase reward caps) — see the
// consensus package for those rules.
func (t *Transaction) Validate() error {
	if t.Timestamp == 0 {
		return ErrZeroTimestamp
	}
	if t.IsCoinbase() {
		if t.Amount < 0 {
			return ErrNegativeAmt
		}
	} else {
		if t.Amount <= 0 {
			return ErrNonPositiveAmt
		}
		if t.Signature == nil {
			return ErrMissingSig
		}
	}
	if t.computeID() != t.ID {
		return ErrBadID
	}
	if !t.ValidateSignature() {
		return ErrBadSignature
	}
	return nil
}
