package roadmap

import (
	"fmt"
	"strings"
)

// statusMarks are the checkbox glyphs shown next to each topic.
var statusMarks = map[TopicStatus]string{
	TopicNotStarted: "[ ]",
	TopicInProgress: "[~]",
	TopicCompleted:  "[x]",
}

// Outline renders r as an indented text tree: the course header, then each
// section, then its topics. A nil roadmap renders as the empty string.
func Outline(r *CourseRoadmap) string {
	if r == nil {
		return ""
	}

	var b strings.Builder

	b.WriteString(r.Title)
	if r.Level != "" {
		fmt.Fprintf(&b, " (%s)", r.Level)
	}
	b.WriteString("\n")
	if r.Objective != "" {
		fmt.Fprintf(&b, "Objective: %s\n", r.Objective)
	}
	if r.TotalEstimatedDuration != "" {
		fmt.Fprintf(&b, "Estimated: %s\n", r.TotalEstimatedDuration)
	}

	for i, s := range r.Sections {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Title)
		for _, t := range s.Topics {
			mark, ok := statusMarks[t.Status]
			if !ok {
				mark = statusMarks[TopicNotStarted]
			}
			fmt.Fprintf(&b, "   %s %s", mark, t.Title)
			if t.EstimatedDuration != "" {
				fmt.Fprintf(&b, " - %s", t.EstimatedDuration)
			}
			b.WriteString("\n")
			for _, link := range t.Links {
				fmt.Fprintf(&b, "       %s\n", link)
			}
		}
	}

	return b.String()
}
