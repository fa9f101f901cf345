package security

import (
	"testing"
)

func TestWipeBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"non-empty", []byte("sensitive-data-1234")},
		{"single byte", []byte{0xFF}},
		{"empty", []byte{}},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			WipeBytes(tt.data)
			for i, b := range tt.data {
				if b != 0 {
					t.Errorf("byte %d = %d, want 0", i, b)
				}
			}
		})
	}
}

func TestSecureBytes_CopiesInput(t *testing.T) {
	data := []byte("hunter2")
	sb := NewSecureBytes(data)

	data[0] = 'X'
	if string(sb.Data()) != "hunter2" {
		t.Errorf("Data() = %q, want %q", sb.Data(), "hunter2")
	}
	if sb.Len() != 7 {
		t.Errorf("Len() = %d, want 7", sb.Len())
	}
}

func TestSecureBytes_Wipe(t *testing.T) {
	sb := NewSecureBytes([]byte("hunter2"))
	backing := sb.Data()

	sb.Wipe()

	if sb.Data() != nil || sb.Len() != 0 {
		t.Error("expected data to be cleared after Wipe")
	}
	for i, b := range backing {
		if b != 0 {
			t.Errorf("backing byte %d = %d, want 0", i, b)
		}
	}
}
