// internal/discovery/traffic.go
package discovery

import (
	"strings"

	"telemetry-service/internal/codec"
)

// TrafficGrade summarizes one probe capture: how many well-formed hex
// lines it held and which configured sensor tags appeared in them.
type TrafficGrade struct {
	HexLines    int
	MatchedTags []string
}

// GradeTraffic inspects captured line-oriented traffic for receiver
// frames. A line counts as hex when it is all uppercase hex digits of at
// least header length; its leading tag characters are matched against the
// configured tags, each tag reported once.
func GradeTraffic(data []byte, tags []string) *TrafficGrade {
	grade := &TrafficGrade{}
	seen := make(map[string]bool)

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if len(line) < codec.HeaderChars || !isHexLine(line) {
			continue
		}
		grade.HexLines++

		tag := line[:codec.TagChars]
		if seen[tag] {
			continue
		}
		for _, t := range tags {
			if t == tag {
				seen[tag] = true
				grade.MatchedTags = append(grade.MatchedTags, tag)
				break
			}
		}
	}

	return grade
}

func isHexLine(line string) bool {
	for _, c := range line {
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
