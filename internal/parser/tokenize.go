package parser

import "strings"

// tokenize splits a line on runs of ASCII whitespace, ignoring leading
// and trailing whitespace. A token opened by an unescaped '"' consumes
// everything up to the matching '"' as a single token (quotes stripped),
// which is how request/request_header columns receive their
// "METHOD PATH PROTO" group as one field.
func tokenize(line string) []string {
	tokens := make([]string, 0, 16)

	i, n := 0, len(line)
	for i < n {
		for i < n && isSpace(line[i]) {
			i++
		}

		if i >= n {
			break
		}

		if line[i] == '"' {
			start := i + 1
			j := start

			for j < n && line[j] != '"' {
				if line[j] == '\\' && j+1 < n {
					j++
				}

				j++
			}

			tokens = append(tokens, line[start:min(j, n)])

			if j < n {
				j++ // skip closing quote
			}

			i = j

			continue
		}

		start := i
		for i < n && !isSpace(line[i]) {
			i++
		}

		tokens = append(tokens, line[start:i])
	}

	return tokens
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

// splitFields splits a merged token like "GET /foo HTTP/1.1" on
// whitespace runs, used by request/request_header after tokenize has
// already pulled the quoted group into one token.
func splitFields(s string) []string {
	return strings.Fields(s)
}
