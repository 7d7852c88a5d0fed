package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// bodyTerminator ends a document body. Blank lines are part of Markdown
// content, so they cannot end input.
const bodyTerminator = "."

var readPassword = term.ReadPassword

// Prompt seams, replaced by scripted answers in tests.
var (
	askLine     = AskLine
	askPassword = AskPassword
	askBody     = AskBody
)

// AskLine prints prompt and reads one trimmed line. A final line without a
// newline is accepted.
func AskLine(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// AskWithDefault is AskLine that shows current and returns it for an empty answer.
func AskWithDefault(reader *bufio.Reader, prompt, current string, w io.Writer) (string, error) {
	answer, err := askLine(reader, fmt.Sprintf("%s [%s]", prompt, current), w)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return current, nil
	}
	return answer, nil
}

// AskPassword reads a password without echo. Callers wipe the result.
func AskPassword(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Enter password: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// AskBody reads a document body up to a line holding only "." or EOF.
// Line endings are normalized to '\n' and outer blank lines are dropped.
func AskBody(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprintf(w, "%s\n(finish with a line containing only %q)\n", prompt, bodyTerminator); err != nil {
		return "", err
	}

	var b strings.Builder
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == bodyTerminator {
			break
		}
		if line != "" || err == nil {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
	}

	return strings.Trim(b.String(), "\n"), nil
}
