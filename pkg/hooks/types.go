package hooks

// Kind names the derivative a path is computed for.
type Kind string

// Supported kinds.
const (
	KindFile  Kind = "file"
	KindImage Kind = "image"
	KindThumb Kind = "thumb"
)

// PathContext contains the variables passed to a path script.
type PathContext struct {
	URL   string
	Key   string
	Ext   string
	Kind  Kind
	Thumb string // thumbnail name, empty unless Kind is KindThumb
	Vars  map[string]interface{}
}
