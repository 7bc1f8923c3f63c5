package cli

// TabWidth is the width of tabs in formatted output.
const TabWidth = 2

// Output formats accepted by commands that print structured results.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)
