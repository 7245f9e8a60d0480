package oauth

import "testing"

func TestVerifyS256(t *testing.T) {
	verifier, err := GenerateVerifier()
	if err != nil {
		t.Fatal(err)
	}
	challenge := ChallengeS256(verifier)

	if !VerifyS256(verifier, challenge) {
		t.Error("matching verifier rejected")
	}
	if VerifyS256("some-other-verifier", challenge) {
		t.Error("mismatched verifier accepted")
	}
	if VerifyS256("", challenge) {
		t.Error("empty verifier accepted")
	}
	if VerifyS256(verifier, "") {
		t.Error("empty challenge accepted")
	}
}

func TestChallengeS256KnownVector(t *testing.T) {
	// Appendix B of RFC 7636.
	const verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	const challenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	if got := ChallengeS256(verifier); got != challenge {
		t.Errorf("ChallengeS256 = %q, want %q", got, challenge)
	}
}

func TestGenerateVerifierIsRandom(t *testing.T) {
	a, err := GenerateVerifier()
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateVerifier()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two verifiers are identical")
	}
	if len(a) != 43 {
		t.Errorf("verifier length = %d, want 43", len(a))
	}
}
