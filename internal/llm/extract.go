package llm

import (
	"encoding/json"
	"regexp"
)

// fencePattern matches a markdown code block (```json ... ``` or ``` ... ```)
// whose content starts and ends with a JSON delimiter.
var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*([\\[{].*?[\\]}])\\s*```")

// openers maps each opening delimiter to its closer. Parentheses are included
// so that prose like "(see below)" advances the scan instead of derailing it.
var openers = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// Extract pulls a well-formed JSON value out of free-form model text.
// Two stages, in order:
//
//  1. The first markdown-fenced block whose content parses as JSON.
//  2. A delimiter-stack scan over the raw text: from each opening delimiter,
//     find the span where the stack empties and try to parse it; a failed
//     span does not abandon the text, the scan resumes at the next opening
//     delimiter.
//
// Returns ok=false when neither stage yields parseable JSON. That is "no data
// produced", not an error condition.
func Extract(text string) (json.RawMessage, bool) {
	for _, match := range fencePattern.FindAllStringSubmatch(text, -1) {
		candidate := match[1]
		if isValidJSON(candidate) {
			return json.RawMessage(candidate), true
		}
	}

	return extractBalanced(text)
}

// extractBalanced is the stage-2 scanner. The stack holds open delimiters and
// pops only when the current byte closes the top of the stack, which tolerates
// nested but unrelated punctuation in the surrounding prose.
func extractBalanced(text string) (json.RawMessage, bool) {
	for i := 0; i < len(text); i++ {
		if _, ok := openers[text[i]]; !ok {
			continue
		}

		stack := []byte{text[i]}
		for j := i + 1; j < len(text); j++ {
			c := text[j]
			if _, ok := openers[c]; ok {
				stack = append(stack, c)
				continue
			}
			if c == openers[stack[len(stack)-1]] {
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					span := text[i : j+1]
					if isValidJSON(span) {
						return json.RawMessage(span), true
					}
					break // resume from the next opening delimiter
				}
			}
		}
	}
	return nil, false
}

func isValidJSON(s string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(s), &js) == nil
}
