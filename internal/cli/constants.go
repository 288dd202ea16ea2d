package cli

// Default values for CLI flags and formatted output.
const (
	// TabWidth is the width of tabs in formatted output.
	TabWidth = 2
	// MaxItemSize bounds a single JSON item read from the input.
	MaxItemSize = 16 << 20
	// PathScriptFile is written next to the configuration by config init.
	PathScriptFile = "path.tengo"
)
