package battle

import "strings"

// Problem generation is outside the session protocol (the reference system
// asks an LLM). PickProblem is a var so callers and tests can swap in their
// own source; the default is a small static bank keyed by difficulty. The
// returned int is the submission window in seconds.
var PickProblem = func(language, difficulty string) (Problem, int) {
	switch strings.ToLower(difficulty) {
	case "easy":
		return Problem{
			Title:        "Sum of Arrays",
			Description:  "Given an array of integers, calculate the sum of its elements.",
			InputFormat:  "First line: n. Second line: n space-separated integers.",
			OutputFormat: "A single integer, the sum.",
		}, 600
	case "hard":
		return Problem{
			Title:        "Longest Palindromic Substring",
			Description:  "Given a string s, return the longest substring of s that reads the same forwards and backwards.",
			InputFormat:  "A single line containing s (1 <= len(s) <= 2000).",
			OutputFormat: "The longest palindromic substring. If several have the same length, output the first.",
		}, 1200
	default:
		return Problem{
			Title:        "Two Sum",
			Description:  "Given an array of integers and a target, return the indices of the two numbers that add up to the target.",
			InputFormat:  "First line: n and target. Second line: n space-separated integers.",
			OutputFormat: "Two zero-based indices, space-separated, smaller first.",
		}, 900
	}
}
