// Package fingerprint derives cache keys from request descriptors. A fingerprint covers every
// field that affects a response, including the session that selects cumulative state.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
)

// Size is the length of every fingerprint in characters.
const Size = sha256.Size * 2

var ErrMissingSocketID = errors.New("socket_id is required to derive a grading fingerprint")

// Canonical encodes v as JSON with object keys sorted at every depth.
func Canonical(v any) ([]byte, error) {
	normalized, err := xjson.Normalize(v)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize descriptor: %w", err)
	}

	return xjson.Marshal(normalized)
}

// Derive returns the hex SHA-256 of the canonical encoding of descriptor.
func Derive(descriptor any) (string, error) {
	canonical, err := Canonical(descriptor)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)

	return hex.EncodeToString(sum[:]), nil
}

// GradeDescriptor is the field set of the cumulative grading endpoint. Optional fields are
// omitted when empty so that absent and empty hash the same.
type GradeDescriptor struct {
	SocketID    string             `json:"socket_id"`
	QuestionRef string             `json:"question_reference"`
	SolutionRef string             `json:"solution_reference"`
	Region      models.BoundingBox `json:"bounding_region"`
	UserID      string             `json:"user_id,omitempty"`
	AttemptRef  string             `json:"attempt_reference,omitempty"`
}

// DeriveGrade fingerprints a grading request. A missing socket_id is rejected: without it two
// sessions would share cumulative responses.
func DeriveGrade(d GradeDescriptor) (string, error) {
	if d.SocketID == "" {
		return "", ErrMissingSocketID
	}

	return Derive(struct {
		Endpoint string `json:"endpoint"`
		GradeDescriptor
	}{Endpoint: "detect-error", GradeDescriptor: d})
}

// Namespaced fingerprints a read query under name, e.g. ("workflow-errors", id).
func Namespaced(name string, fields map[string]any) (string, error) {
	return Derive(map[string]any{"endpoint": name, "fields": fields})
}
