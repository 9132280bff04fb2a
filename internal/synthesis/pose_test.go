package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/port"
)

func TestPoseDeltaNamesOnlyChangedParts(t *testing.T) {
	from := fullPose("hanging at the side")
	to := fullPose("raised above the head")
	to.FacialExpression = "grinning"

	changes := PoseDelta(from, to)
	require.Len(t, changes, 2)
	assert.Equal(t, "left_arm", changes[0].Part)
	assert.Equal(t, "hanging at the side", changes[0].From)
	assert.Equal(t, "raised above the head", changes[0].To)
	assert.Equal(t, "facial_expression", changes[1].Part)

	unchanged := UnchangedParts(changes)
	assert.ElementsMatch(t, []string{"head", "torso", "right_arm", "left_leg", "right_leg"}, unchanged)
}

func TestPoseDeltaIgnoresWhitespaceAndCase(t *testing.T) {
	from := fullPose("Raised")
	to := fullPose("  raised ")
	assert.Empty(t, PoseDelta(from, to))
}

func TestMidpointInstructionWithDelta(t *testing.T) {
	poses := make([]port.PoseDescriptor, 5)
	for i := range poses {
		poses[i] = fullPose("at the side")
	}
	poses[2].LeftArm = "halfway up"
	poses[2].Notes = "weight shifts to the right foot"

	inst := midpointInstruction(0, 2, 4, poses)
	assert.Contains(t, inst, "left_arm")
	assert.Contains(t, inst, "halfway up")
	assert.Contains(t, inst, "pixel-identical")
	assert.Contains(t, inst, "right_leg", "unchanged parts are pinned by name")
	assert.Contains(t, inst, "weight shifts to the right foot")
}

func TestMidpointInstructionWithoutPlanIsGeneric(t *testing.T) {
	inst := midpointInstruction(0, 4, 8, nil)
	assert.Contains(t, inst, "temporally centered")
	assert.NotContains(t, inst, "left_arm")
}
