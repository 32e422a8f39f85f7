package compliance

import (
	"bytes"
	"context"
	"errors"

	"github.com/go-jose/go-jose/v4"
)

// SignatureVerifier checks that claim.Signature is a compact JWS over claim.Payload().
type SignatureVerifier struct {
	key        []byte
	algorithms []jose.SignatureAlgorithm
}

func NewSignatureVerifier(key []byte, algorithms ...string) (*SignatureVerifier, error) {
	if len(key) == 0 {
		return nil, errors.New("signature verifier requires a signing key")
	}

	algs := make([]jose.SignatureAlgorithm, 0, len(algorithms))
	for _, a := range algorithms {
		algs = append(algs, jose.SignatureAlgorithm(a))
	}
	if len(algs) == 0 {
		algs = append(algs, jose.HS256)
	}

	return &SignatureVerifier{key: key, algorithms: algs}, nil
}

func (v *SignatureVerifier) Name() string { return "signature" }

func (v *SignatureVerifier) Verify(_ context.Context, claim Claim) (Decision, error) {
	if claim.Signature == "" {
		return Decision{Valid: false, Reason: "missing signature"}, nil
	}

	jws, err := jose.ParseSigned(claim.Signature, v.algorithms)
	if err != nil {
		return Decision{Valid: false, Reason: "malformed signature"}, nil
	}

	payload, err := jws.Verify(v.key)
	if err != nil {
		return Decision{Valid: false, Reason: "invalid signature"}, nil
	}

	if !bytes.Equal(payload, claim.Payload()) {
		return Decision{Valid: false, Reason: "signature does not match claim"}, nil
	}

	return Decision{Valid: true}, nil
}

// Sign produces the compact JWS a client attaches to a claim. Used by tooling and tests.
func Sign(key []byte, alg jose.SignatureAlgorithm, claim Claim) (string, error) {
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: alg, Key: key}, nil)
	if err != nil {
		return "", err
	}

	obj, err := signer.Sign(claim.Payload())
	if err != nil {
		return "", err
	}

	return obj.CompactSerialize()
}
