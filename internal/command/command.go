package command

// Command is one parsed protocol line: a name plus ordered string arguments.
// It is built fresh per received line and discarded after dispatch.
type Command struct {
	Name string
	Args []string
}

// Parse splits a protocol line into a command. Unquoted runs split on
// whitespace; a double-quoted run is a single token with the quotes stripped.
// An unterminated quote keeps the rest of the line as one final token rather
// than failing.
func Parse(line string) Command {
	tokens := tokenize(line)
	if len(tokens) == 0 {
		return Command{}
	}
	return Command{Name: tokens[0], Args: tokens[1:]}
}

func tokenize(line string) []string {
	var tokens []string
	i := 0
	for i < len(line) {
		for i < len(line) && isSpace(line[i]) {
			i++
		}
		if i >= len(line) {
			break
		}
		if line[i] == '"' {
			j := i + 1
			for j < len(line) && line[j] != '"' {
				j++
			}
			tokens = append(tokens, line[i+1:j])
			if j < len(line) {
				j++ // skip closing quote
			}
			i = j
			continue
		}
		j := i
		for j < len(line) && !isSpace(line[j]) && line[j] != '"' {
			j++
		}
		tokens = append(tokens, line[i:j])
		i = j
	}
	return tokens
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}
