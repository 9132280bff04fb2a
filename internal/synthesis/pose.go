package synthesis

import (
	"strings"

	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/port"
)

// PoseChange names one body part whose description differs between two pose
// descriptors.
type PoseChange struct {
	Part string
	From string
	To   string
}

var poseParts = []struct {
	name  string
	field func(port.PoseDescriptor) string
}{
	{"head", func(p port.PoseDescriptor) string { return p.Head }},
	{"torso", func(p port.PoseDescriptor) string { return p.Torso }},
	{"left_arm", func(p port.PoseDescriptor) string { return p.LeftArm }},
	{"right_arm", func(p port.PoseDescriptor) string { return p.RightArm }},
	{"left_leg", func(p port.PoseDescriptor) string { return p.LeftLeg }},
	{"right_leg", func(p port.PoseDescriptor) string { return p.RightLeg }},
	{"facial_expression", func(p port.PoseDescriptor) string { return p.FacialExpression }},
}

// PoseDelta diffs two descriptors part by part and returns the parts that
// must change, in the fixed vocabulary order. Notes are not diffed; they are
// free text, not a body part.
func PoseDelta(from, to port.PoseDescriptor) []PoseChange {
	var changes []PoseChange
	for _, part := range poseParts {
		a := strings.TrimSpace(part.field(from))
		b := strings.TrimSpace(part.field(to))
		if !strings.EqualFold(a, b) {
			changes = append(changes, PoseChange{Part: part.name, From: a, To: b})
		}
	}
	return changes
}

// UnchangedParts returns the body parts not named in changes, used to declare
// what must stay pixel-identical to the start frame.
func UnchangedParts(changes []PoseChange) []string {
	changed := make(map[string]bool, len(changes))
	for _, c := range changes {
		changed[c.Part] = true
	}
	var out []string
	for _, part := range poseParts {
		if !changed[part.name] {
			out = append(out, part.name)
		}
	}
	return out
}

// validatePose reports whether every body-part field is present. Notes may be
// empty.
func validatePose(p port.PoseDescriptor) bool {
	for _, part := range poseParts {
		if strings.TrimSpace(part.field(p)) == "" {
			return false
		}
	}
	return true
}
