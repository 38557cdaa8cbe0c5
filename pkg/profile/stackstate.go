package profile

// stackState tracks, while walking one trace, whether the previously emitted
// frame was native and which native function it named. Consecutive native
// frames resolving to the same non-empty name collapse into the first one,
// so a run of identical dispatch trampolines keeps a single profile entry.
// Unnamed native frames never coalesce.
type stackState struct {
	prevNative bool
	prevName   string
}

func (s *stackState) javaFrame() {
	s.prevNative = false
	s.prevName = ""
}

// nativeFrame records a native frame and reports whether it repeats the
// immediately preceding native function and must be skipped.
func (s *stackState) nativeFrame(name string) (skip bool) {
	skip = s.prevNative && name != "" && name == s.prevName
	s.prevNative = true
	s.prevName = name
	return skip
}
