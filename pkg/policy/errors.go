package policy

import "errors"

var (
	// ErrPolicyNotFound is returned when a named policy does not exist.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrPolicyExists is returned when creating a policy whose name is taken.
	ErrPolicyExists = errors.New("policy already exists")

	// ErrDanglingReference is returned when deleting a policy whose tables
	// other policies still reference.
	ErrDanglingReference = errors.New("policy tables are referenced by other policies")

	// ErrRecursion is returned when a rule change would make the global rule
	// set recursive.
	ErrRecursion = errors.New("rules must be nonrecursive")

	// ErrUnstratified is returned when a rule change would put negation
	// inside a dependency cycle.
	ErrUnstratified = errors.New("negation must be stratified")

	// ErrDepthLimit is returned when evaluation exceeds the goal depth cap.
	ErrDepthLimit = errors.New("evaluation depth limit exceeded")
)
