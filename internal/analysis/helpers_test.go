package analysis

import "strings"

// taleOfTwoCities is long enough for stable letter statistics.
var taleOfTwoCities = strings.Join([]string{
	"IT WAS THE BEST OF TIMES IT WAS THE WORST OF TIMES",
	"IT WAS THE AGE OF WISDOM IT WAS THE AGE OF FOOLISHNESS",
	"IT WAS THE EPOCH OF BELIEF IT WAS THE EPOCH OF INCREDULITY",
	"IT WAS THE SEASON OF LIGHT IT WAS THE SEASON OF DARKNESS",
	"IT WAS THE SPRING OF HOPE IT WAS THE WINTER OF DESPAIR",
	"WE HAD EVERYTHING BEFORE US WE HAD NOTHING BEFORE US",
	"WE WERE ALL GOING DIRECT TO HEAVEN WE WERE ALL GOING DIRECT THE OTHER WAY",
}, " ")

// whitespaceLayout returns the positions of whitespace runes in s.
func whitespaceLayout(s string) []int {
	var layout []int
	for i, r := range []rune(s) {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			layout = append(layout, i)
		}
	}
	return layout
}
