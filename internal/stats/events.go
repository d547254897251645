package stats

// GapOpen is the flag value of an open nozzle gap. Anything else counts as closed.
const GapOpen = 1.0

// Segment splits an ordered flag sequence into events and returns the duration
// of each one in seconds, in the order the events occur. An event still open
// at the end of the input is reported with the length observed so far.
func Segment(flags []float64, period float64) []float64 {
	var (
		durations []float64
		inEvent   bool
		run       int
	)
	for _, f := range flags {
		if f == GapOpen {
			if !inEvent {
				inEvent = true
				run = 0
			}
			run++
			continue
		}
		if inEvent {
			durations = append(durations, float64(run)*period)
			inEvent = false
			run = 0
		}
	}
	if inEvent {
		durations = append(durations, float64(run)*period)
	}
	return durations
}
