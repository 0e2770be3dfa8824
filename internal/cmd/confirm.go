package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// confirm prints a prompt and reads one answer line from r. Only an
// explicit "y" or "yes" counts; anything else declines.
func confirm(r io.Reader, prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	answer, _ := bufio.NewReader(r).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
