package wallet

import (
	"errors"
	"fmt"
)

// NetworkMismatchError is returned by Load when the stored wallet belongs to
// another network than the one requested.
type NetworkMismatchError struct {
	Stored    string
	Requested string
}

func (e *NetworkMismatchError) Error() string {
	return fmt.Sprintf("wallet was created for network %q, not %q", e.Stored, e.Requested)
}

// IsNetworkMismatch checks if an error is a network mismatch error
func IsNetworkMismatch(err error) bool {
	var target *NetworkMismatchError
	return errors.As(err, &target)
}

// DescriptorMismatchError is returned when a wallet already bound to a
// descriptor is asked to use a different one.
type DescriptorMismatchError struct {
	Keychain string
	Stored   string
	Given    string
}

func (e *DescriptorMismatchError) Error() string {
	return fmt.Sprintf("%s descriptor mismatch: stored %q, given %q", e.Keychain, e.Stored, e.Given)
}

// IsDescriptorMismatch checks if an error is a descriptor mismatch error
func IsDescriptorMismatch(err error) bool {
	var target *DescriptorMismatchError
	return errors.As(err, &target)
}

// UnknownTxError is returned when an operation refers to a transaction the
// wallet does not hold.
type UnknownTxError struct {
	Txid string
}

func (e *UnknownTxError) Error() string {
	return fmt.Sprintf("transaction '%s' not found", e.Txid)
}

// IsUnknownTx checks if an error is an unknown transaction error
func IsUnknownTx(err error) bool {
	var target *UnknownTxError
	return errors.As(err, &target)
}
