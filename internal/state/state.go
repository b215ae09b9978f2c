// Package state generates and parses the CSRF state tokens that bind a
// login redirect to its callback. A token is "<hex nonce>:<project id>";
// the nonce half is cryptographically random and the project half selects
// which registered frontend the flow belongs to.
package state

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Separator joins the nonce and project components. Project ids are
// validated against projectIDPattern so the separator can never appear
// inside a component.
const Separator = ":"

// MinNonceBytes is the entropy floor for the random component.
const MinNonceBytes = 16

var projectIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ValidProjectID reports whether id is safe to embed in a state token.
func ValidProjectID(id string) bool {
	return projectIDPattern.MatchString(id)
}

// Generator mints state tokens with a configurable nonce size.
type Generator struct {
	nonceBytes int
}

// NewGenerator creates a Generator. Sizes below MinNonceBytes are raised
// to the floor rather than rejected.
func NewGenerator(nonceBytes int) Generator {
	if nonceBytes < MinNonceBytes {
		nonceBytes = MinNonceBytes
	}
	return Generator{nonceBytes: nonceBytes}
}

// Generate mints a fresh state token bound to projectID.
func (g Generator) Generate(projectID string) (string, error) {
	b := make([]byte, g.nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}
	return hex.EncodeToString(b) + Separator + projectID, nil
}

// Split separates a state token into its nonce and project components.
// The split happens at the first separator only, so a token with no
// separator yields an empty project id.
func Split(token string) (nonce, projectID string) {
	nonce, projectID, found := strings.Cut(token, Separator)
	if !found {
		return token, ""
	}
	return nonce, projectID
}
