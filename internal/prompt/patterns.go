// Package prompt detects the interactive prompts git svn prints on stderr.
package prompt

// Kind identifies the prompt found by a scan.
type Kind int

const (
	// None means the stream ended without a prompt.
	None Kind = iota
	// PasswordRequest is the SVN credential prompt.
	PasswordRequest
	// CertificateTrustFull is the certificate prompt that offers permanent acceptance.
	CertificateTrustFull
	// CertificateTrustLimited is the certificate prompt that only offers temporary acceptance.
	CertificateTrustLimited
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case PasswordRequest:
		return "password"
	case CertificateTrustFull:
		return "certificate-full"
	case CertificateTrustLimited:
		return "certificate-limited"
	default:
		return "unknown"
	}
}

// Pattern is a literal phrase that identifies a prompt.
type Pattern struct {
	Phrase            string
	Kind              Kind
	SuggestedResponse string
}

// DefaultPatterns returns the recognized prompts in priority order.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Phrase: "Password for",
			Kind:   PasswordRequest,
		},
		{
			Phrase:            "(R)eject, accept (t)emporarily or accept (p)ermanently?",
			Kind:              CertificateTrustFull,
			SuggestedResponse: "p",
		},
		{
			Phrase:            "(R)eject or accept (t)emporarily?",
			Kind:              CertificateTrustLimited,
			SuggestedResponse: "t",
		},
	}
}

// SuggestedResponse returns the canned answer for a certificate prompt.
// Password prompts have no canned answer.
func SuggestedResponse(k Kind) string {
	for _, p := range DefaultPatterns() {
		if p.Kind == k {
			return p.SuggestedResponse
		}
	}
	return ""
}
