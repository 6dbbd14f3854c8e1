package keypool

import "fmt"

// KeyNotFoundError is returned when an operation references a key ID that
// is not present in the pool.
type KeyNotFoundError struct {
	KeyID string
}

// Error implements the error interface.
func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("key %q not found in pool", e.KeyID)
}

// NewKeyNotFoundError creates a new KeyNotFoundError.
func NewKeyNotFoundError(keyID string) *KeyNotFoundError {
	return &KeyNotFoundError{KeyID: keyID}
}

// DuplicateKeyError is returned when a key is added with an ID that is
// already present in the pool.
type DuplicateKeyError struct {
	KeyID string
}

// Error implements the error interface.
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("key %q already exists in pool", e.KeyID)
}

// NewDuplicateKeyError creates a new DuplicateKeyError.
func NewDuplicateKeyError(keyID string) *DuplicateKeyError {
	return &DuplicateKeyError{KeyID: keyID}
}

// InvalidKeyError is returned when a key fails validation on add.
type InvalidKeyError struct {
	KeyID  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key %q: %s", e.KeyID, e.Reason)
}

// NewInvalidKeyError creates a new InvalidKeyError.
func NewInvalidKeyError(keyID, reason string) *InvalidKeyError {
	return &InvalidKeyError{KeyID: keyID, Reason: reason}
}
