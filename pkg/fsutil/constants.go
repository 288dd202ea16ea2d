package fsutil

// File and directory permission constants.
const (
	FileModeDefault = 0o644 // -rw-r--r--: media files and exported archives
	FileModeSecure  = 0o640 // -rw-r-----: config files

	DirModeDefault = 0o755 // drwxr-xr-x: store directories
	DirModeSecure  = 0o750 // drwxr-x---: config directories

	// AppName is the name of the application used in default paths.
	AppName = "mediafetch"
)
