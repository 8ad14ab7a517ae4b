package domain

import "strings"

// Collaborator names an external tool the dispatcher drives.
type Collaborator string

const (
	CollaboratorPostprocess Collaborator = "postprocess"
	CollaboratorPlot        Collaborator = "plot"
)

// Invocation is one external command line.
type Invocation struct {
	Collaborator Collaborator
	Program      string
	Args         []string
	// Dir is the working directory; empty means the caller's.
	Dir string
	// Output is the artifact the invocation is expected to produce.
	Output string
}

// String renders the command line as an operator would type it.
func (i Invocation) String() string {
	parts := make([]string, 0, len(i.Args)+1)
	parts = append(parts, shellQuote(i.Program))
	for _, a := range i.Args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./:=,+@%", r)
}
