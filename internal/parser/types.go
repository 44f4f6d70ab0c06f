package parser

// TrackRequest is a parsed :TRACK:LOAD: command. Exactly one of Course and
// Inline is set: Course names a file under the configured course directory,
// Inline carries a complete course definition pushed by the host. The
// handler layer resolves either form into track geometry.
type TrackRequest struct {
	Course    string
	Inline    []byte
	AutoStart bool
}
