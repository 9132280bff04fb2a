package synthesis

import (
	"fmt"
	"strings"

	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/port"
)

// planInstruction asks the text model for exactly n pose records. The JSON
// contract is enforced again by the adapter; spelling it out in the prompt
// keeps the model honest.
func planInstruction(motion string, n int, cyclic bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan a %d-frame character animation for the motion: %q.\n", n, motion)
	b.WriteString("Respond with a JSON array of exactly ")
	fmt.Fprintf(&b, "%d objects, one per frame in order. ", n)
	b.WriteString("Each object must have the string fields head, torso, left_arm, right_arm, left_leg, right_leg, facial_expression and notes, ")
	b.WriteString("describing the target position of that body part in that frame.\n")
	b.WriteString("Vary only pose and expression between frames. Character identity, art style, proportions, clothing and accessories stay fixed unless the motion itself demands otherwise.\n")
	if cyclic {
		b.WriteString("The animation loops: the final frame must flow seamlessly back into the first.\n")
	} else {
		b.WriteString("The first frame is the neutral starting pose and the final frame is the end of the motion.\n")
	}
	return b.String()
}

// firstFrameInstruction canonicalizes the upload through the image model so
// every later frame is conditioned on model output, not the raw upload.
func firstFrameInstruction(pose *port.PoseDescriptor) string {
	var b strings.Builder
	b.WriteString("Redraw this character faithfully with a transparent background. ")
	b.WriteString("Keep the art style, proportions, colors and accessories exactly as in the reference image.")
	if pose != nil {
		b.WriteString("\nTarget pose for this first frame:\n")
		writePose(&b, *pose)
	}
	return b.String()
}

func lastFrameInstruction(motion string, pose *port.PoseDescriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate the final frame of this character performing the motion: %q. ", motion)
	b.WriteString("The first reference image is the first frame of the animation; the second is the original character for style anchoring. ")
	b.WriteString("Keep identity, style and accessories identical; transparent background.")
	if pose != nil {
		b.WriteString("\nTarget pose for this final frame:\n")
		writePose(&b, *pose)
	}
	return b.String()
}

// midpointInstruction builds the bisection prompt. With a pose plan it names
// exactly which parts change between the start frame and the midpoint and
// pins everything else to the start frame.
func midpointInstruction(start, mid, end int, poses []port.PoseDescriptor) string {
	var b strings.Builder
	b.WriteString("The two reference images are frames of the same character animation. ")
	b.WriteString("Generate the single frame temporally centered between them. ")
	b.WriteString("Keep identity, style and accessories identical; transparent background.")
	if len(poses) == 0 {
		return b.String()
	}

	changes := PoseDelta(poses[start], poses[mid])
	if len(changes) == 0 {
		fmt.Fprintf(&b, "\nThe pose barely changes between frame %d and frame %d; stay as close to the first reference as possible.", start, mid)
		return b.String()
	}

	fmt.Fprintf(&b, "\nRelative to the first reference (frame %d), change only these body parts to reach frame %d:\n", start, mid)
	for _, c := range changes {
		fmt.Fprintf(&b, "- %s: from %q to %q\n", c.Part, c.From, c.To)
	}
	if unchanged := UnchangedParts(changes); len(unchanged) > 0 {
		fmt.Fprintf(&b, "These parts must remain pixel-identical to the first reference: %s.\n", strings.Join(unchanged, ", "))
	}
	if notes := strings.TrimSpace(poses[mid].Notes); notes != "" {
		fmt.Fprintf(&b, "Frame notes: %s\n", notes)
	}
	return b.String()
}

func writePose(b *strings.Builder, p port.PoseDescriptor) {
	fmt.Fprintf(b, "- head: %s\n", p.Head)
	fmt.Fprintf(b, "- torso: %s\n", p.Torso)
	fmt.Fprintf(b, "- left_arm: %s\n", p.LeftArm)
	fmt.Fprintf(b, "- right_arm: %s\n", p.RightArm)
	fmt.Fprintf(b, "- left_leg: %s\n", p.LeftLeg)
	fmt.Fprintf(b, "- right_leg: %s\n", p.RightLeg)
	fmt.Fprintf(b, "- facial_expression: %s\n", p.FacialExpression)
	if strings.TrimSpace(p.Notes) != "" {
		fmt.Fprintf(b, "- notes: %s\n", p.Notes)
	}
}
