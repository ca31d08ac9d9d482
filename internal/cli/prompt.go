package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/teslashibe/go-pathsense/pkg/audioio"
)

// Prompter asks for values on an interactive terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Int asks for an integer. An empty answer returns def; an invalid one
// asks again, or returns def when input has ended. lowest is the
// smallest accepted value.
func (p *Prompter) Int(question string, def, lowest int) (int, error) {
	for {
		fmt.Fprintf(p.out, "%s [%d]: ", question, def)
		line, err := p.in.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			if err != nil && err != io.EOF {
				return def, err
			}
			return def, nil
		}

		n, convErr := strconv.Atoi(line)
		if convErr == nil && n >= lowest {
			return n, nil
		}
		fmt.Fprintf(p.out, "  %q is not a valid choice\n", line)
		if err == io.EOF {
			fmt.Fprintf(p.out, "  using %d\n", def)
			return def, nil
		}
		if err != nil {
			return def, err
		}
	}
}

// ListInputs prints the capture devices.
func ListInputs(w io.Writer, devs []audioio.DeviceInfo) {
	fmt.Fprintln(w, "Microphones:")
	n := 0
	for _, d := range devs {
		if !d.IsInput() {
			continue
		}
		n++
		fmt.Fprintf(w, "  %2d  %s", d.Index, d.Name)
		if d.HostAPI != "" {
			fmt.Fprintf(w, " (%s)", d.HostAPI)
		}
		fmt.Fprintln(w)
	}
	if n == 0 {
		fmt.Fprintln(w, "  none found")
	}
}
