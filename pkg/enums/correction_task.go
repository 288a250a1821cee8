package enums

import "fmt"

// CorrectionTask selects the transformation applied to submitted text.
type CorrectionTask string

const (
	CorrectionTaskFix     CorrectionTask = "fix"
	CorrectionTaskRewrite CorrectionTask = "rewrite"
)

var validCorrectionTasks = []CorrectionTask{
	CorrectionTaskFix,
	CorrectionTaskRewrite,
}

// String implements fmt.Stringer.
func (t CorrectionTask) String() string {
	return string(t)
}

// IsValid reports whether the value is a known CorrectionTask.
func (t CorrectionTask) IsValid() bool {
	for _, candidate := range validCorrectionTasks {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseCorrectionTask converts raw input into a CorrectionTask.
func ParseCorrectionTask(value string) (CorrectionTask, error) {
	for _, candidate := range validCorrectionTasks {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid correction task %q", value)
}
