package entity

type PoseID string

const (
	PoseCenter PoseID = "center"
	PoseLeft   PoseID = "left"
	PoseRight  PoseID = "right"
	PoseUp     PoseID = "up"
	PoseDown   PoseID = "down"
)

func (p PoseID) String() string {
	return string(p)
}

func IsValidPose(pose string) bool {
	switch PoseID(pose) {
	case PoseCenter, PoseLeft, PoseRight, PoseUp, PoseDown:
		return true
	default:
		return false
	}
}

// PoseStep is one entry of the capture protocol. Description is the wording
// sent to the oracle, Instruction is what the user is shown.
type PoseStep struct {
	Name        string `json:"name"`
	Pose        PoseID `json:"pose"`
	Progress    int    `json:"progress"`
	Instruction string `json:"instruction"`
	Description string `json:"-"`
}

// center is captured twice so the sweep starts and ends on the same reference frame.
var poseProtocol = [...]PoseStep{
	{
		Name:        "Look Straight",
		Pose:        PoseCenter,
		Progress:    0,
		Instruction: "Look straight at the camera",
		Description: "front-facing, looking straight at the camera",
	},
	{
		Name:        "Turn Left",
		Pose:        PoseLeft,
		Progress:    20,
		Instruction: "Slowly turn your head to the left",
		Description: "head turned to the left, showing the right side of the face",
	},
	{
		Name:        "Turn Right",
		Pose:        PoseRight,
		Progress:    40,
		Instruction: "Slowly turn your head to the right",
		Description: "head turned to the right, showing the left side of the face",
	},
	{
		Name:        "Look Up",
		Pose:        PoseUp,
		Progress:    60,
		Instruction: "Tilt your chin up slightly",
		Description: "chin raised, looking up, showing the jawline and under-chin area",
	},
	{
		Name:        "Look Down",
		Pose:        PoseDown,
		Progress:    80,
		Instruction: "Tilt your chin down slightly",
		Description: "chin lowered, looking down, showing the forehead and upper eyelids",
	},
	{
		Name:        "Look Straight Again",
		Pose:        PoseCenter,
		Progress:    100,
		Instruction: "Look straight at the camera one last time",
		Description: "front-facing, looking straight at the camera",
	},
}

// PoseProtocol returns a copy of the fixed capture sequence.
func PoseProtocol() []PoseStep {
	steps := make([]PoseStep, len(poseProtocol))
	copy(steps, poseProtocol[:])
	return steps
}

func PoseCount() int {
	return len(poseProtocol)
}

func StepAt(index int) (PoseStep, bool) {
	if index < 0 || index >= len(poseProtocol) {
		return PoseStep{}, false
	}
	return poseProtocol[index], true
}

// StepsFor returns the protocol indexes that require the given pose.
func StepsFor(pose PoseID) []int {
	var indexes []int
	for i, step := range poseProtocol {
		if step.Pose == pose {
			indexes = append(indexes, i)
		}
	}
	return indexes
}

// DescribePose returns the oracle-facing wording for a pose id.
func DescribePose(pose PoseID) string {
	for _, step := range poseProtocol {
		if step.Pose == pose {
			return step.Description
		}
	}
	return string(pose)
}
