package messagequeue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Strob0t/licensed/internal/domain/event"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation
// (future-proof for new message types).
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	var target interface{ eventType() event.Type }
	switch {
	case strings.HasPrefix(subject, "licenses."):
		target = &licenseEnvelope{}
	case strings.HasPrefix(subject, "activations."):
		target = &activationEnvelope{}
	default:
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	if t := target.eventType(); t != "" && string(t) != subject {
		return fmt.Errorf("schema validation failed for %s: type %q does not match subject", subject, t)
	}
	return nil
}

type licenseEnvelope struct{ event.LicenseEvent }

func (e *licenseEnvelope) eventType() event.Type { return e.Type }

type activationEnvelope struct{ event.ActivationEvent }

func (e *activationEnvelope) eventType() event.Type { return e.Type }
