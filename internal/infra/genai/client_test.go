package genai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/port"
)

func TestParsePlanAcceptsExactLength(t *testing.T) {
	data := []byte(`[
		{"head":"h","torso":"t","left_arm":"la","right_arm":"ra","left_leg":"ll","right_leg":"rl","facial_expression":"fe","notes":""},
		{"head":"h2","torso":"t2","left_arm":"la2","right_arm":"ra2","left_leg":"ll2","right_leg":"rl2","facial_expression":"fe2","notes":"lean forward"}
	]`)

	poses, err := parsePlan(data, 2)
	require.NoError(t, err)
	require.Len(t, poses, 2)
	assert.Equal(t, "h2", poses[1].Head)
	assert.Equal(t, "lean forward", poses[1].Notes)
}

func TestParsePlanRejectsWrongLength(t *testing.T) {
	data := []byte(`[{"head":"h","torso":"t","left_arm":"la","right_arm":"ra","left_leg":"ll","right_leg":"rl","facial_expression":"fe","notes":""}]`)
	_, err := parsePlan(data, 2)
	assert.ErrorIs(t, err, port.ErrInvalidPlan)
}

func TestParsePlanRejectsNonArray(t *testing.T) {
	for _, data := range []string{
		`{"frames": []}`,
		`"not a plan"`,
		`not json at all`,
		``,
		`   `,
	} {
		_, err := parsePlan([]byte(data), 2)
		assert.ErrorIs(t, err, port.ErrInvalidPlan, "input %q", data)
	}
}
