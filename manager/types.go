package manager

// RunConfig is the ephemeral input for one orchestrated session run. It is
// consumed once by the run's goroutine and never shared.
type RunConfig struct {
	// GitDirectory is the caller's source repository path.
	GitDirectory string
	// Instructions is the base natural-language task description.
	Instructions string
	// AdditionalInstructions is an optional extra section; blank means no
	// section is emitted.
	AdditionalInstructions string
	// InstructionsFile is the content of an optional instructions file
	// (already read), not a path.
	InstructionsFile string
	// BaseBranch is the branch the pull request targets. Empty falls back
	// to the configured default, then "main".
	BaseBranch string
}
