package security

import (
	"crypto/rand"
)

// WipeBytes overwrites a byte slice with random data and then zeros.
func WipeBytes(data []byte) {
	if len(data) == 0 {
		return
	}

	rand.Read(data)
	for i := range data {
		data[i] = 0
	}
}

// SecureBytes wraps a byte slice and ensures it gets wiped when done.
type SecureBytes struct {
	data []byte
}

// NewSecureBytes creates a new SecureBytes with a copy of the data.
func NewSecureBytes(data []byte) *SecureBytes {
	d := make([]byte, len(data))
	copy(d, data)
	return &SecureBytes{data: d}
}

// Data returns the underlying byte slice.
func (sb *SecureBytes) Data() []byte {
	return sb.data
}

// Len returns the length of the data.
func (sb *SecureBytes) Len() int {
	return len(sb.data)
}

// Wipe securely wipes the data.
func (sb *SecureBytes) Wipe() {
	WipeBytes(sb.data)
	sb.data = nil
}
