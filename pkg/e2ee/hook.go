// Package e2ee implements the E2EE-Hook of spec.md §4.I: optional per-frame
// encrypt/decrypt interception on the data-track pipeline. Transparent when
// no hook is installed.
package e2ee

// EncryptResult is the outcome of encrypting one data-track frame payload.
type EncryptResult struct {
	Payload  []byte
	KeyIndex uint8
	IV       [12]byte
}

// Hook intercepts data-track frame payloads on their way to and from the
// wire. Media tracks are not covered here: those are installed directly on
// the external RTC stack's RTP sender/receiver frame transformers by the
// caller that constructs a Hook, not by this package.
type Hook interface {
	Encrypt(payload []byte) (EncryptResult, error)
	Decrypt(payload []byte, keyIndex uint8, iv [12]byte) ([]byte, error)
}

// passthrough is the transparent no-op Hook used when E2EE is disabled.
type passthrough struct{}

// Passthrough is the default Hook: Encrypt returns payload unchanged with a
// zero key index and IV, and Decrypt returns payload unchanged.
var Passthrough Hook = passthrough{}

func (passthrough) Encrypt(payload []byte) (EncryptResult, error) {
	return EncryptResult{Payload: payload}, nil
}

func (passthrough) Decrypt(payload []byte, _ uint8, _ [12]byte) ([]byte, error) {
	return payload, nil
}
