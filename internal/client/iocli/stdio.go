package iocli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio reads from os.Stdin and writes prompts and results to out.
type Stdio struct {
	in  *bufio.Reader
	out io.Writer
}

// NewStdio creates a terminal bound to stdin and stdout.
func NewStdio() IO {
	return NewStdioWriter(os.Stdout)
}

// NewStdioWriter creates a terminal reading stdin and writing to out.
func NewStdioWriter(out io.Writer) IO {
	return &Stdio{
		in:  bufio.NewReader(os.Stdin),
		out: out,
	}
}

func (s *Stdio) Println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	input, err := s.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// ReadPassword читает без эха, если stdin - терминал; иначе читает строку
func (s *Stdio) ReadPassword(prompt string) (string, error) {
	s.Printf("%s", prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		input, err := s.in.ReadString('\n')
		s.Println("")
		if err != nil && (err != io.EOF || input == "") {
			return "", err
		}
		return strings.TrimRight(input, "\r\n"), nil
	}

	pwBytes, err := term.ReadPassword(fd)
	s.Println("")
	if err != nil {
		return "", err
	}
	return string(pwBytes), nil
}
