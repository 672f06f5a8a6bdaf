// AWK interpreter command-line host: binds the interp core to files,
// stdin, and an interactive prompt.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/meefbo/AWK-Interpreter/interp"
	"github.com/meefbo/AWK-Interpreter/parser"
)

type assignFlags []string

func (a *assignFlags) String() string {
	return strings.Join(*a, " ")
}

func (a *assignFlags) Set(value string) error {
	if !strings.Contains(value, "=") {
		return fmt.Errorf("expected var=value, got %q", value)
	}
	*a = append(*a, value)
	return nil
}

func main() {
	progFile := flag.String("f", "", "read program source from `file`")
	fieldSep := flag.String("F", "", "field separator")
	var assigns assignFlags
	flag.Var(&assigns, "v", "assign `var=value` before execution (repeatable)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: awk [-F fs] [-v var=value] [-f progfile | 'prog'] [file ...]\n")
	}
	flag.Parse()

	vars := make(map[string]string)
	for _, assign := range assigns {
		parts := strings.SplitN(assign, "=", 2)
		vars[parts[0]] = parts[1]
	}
	if *fieldSep != "" {
		vars["FS"] = *fieldSep
	}

	args := flag.Args()
	var src []byte
	switch {
	case *progFile != "":
		var err error
		src, err = os.ReadFile(*progFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "can't read program file %q\n", *progFile)
			os.Exit(2)
		}
	case len(args) > 0:
		src = []byte(args[0])
		args = args[1:]
	default:
		if term.IsTerminal(int(os.Stdin.Fd())) {
			repl(vars)
			return
		}
		flag.Usage()
		os.Exit(4)
	}

	prog, err := parser.ParseProgram(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(3)
	}

	var inputs []interp.InputFile
	var opened []*os.File
	for _, filename := range args {
		if filename == "-" {
			inputs = append(inputs, interp.InputFile{Name: "", Reader: os.Stdin})
			continue
		}
		f, err := os.Open(filename)
		if err != nil {
			fmt.Fprintf(os.Stderr, "can't open file %q\n", filename)
			os.Exit(2)
		}
		opened = append(opened, f)
		inputs = append(inputs, interp.InputFile{Name: filename, Reader: f})
	}
	if len(args) == 0 && !term.IsTerminal(int(os.Stdin.Fd())) {
		inputs = append(inputs, interp.InputFile{Name: "", Reader: os.Stdin})
	}

	p := interp.New(nil)
	err = p.Exec(prog, inputs, vars)
	for _, f := range opened {
		f.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// repl runs programs interactively: each entered line is parsed and
// executed as a complete program with no input records, so BEGIN
// blocks are the natural way to experiment.
func repl(vars map[string]string) {
	fmt.Fprintf(os.Stderr, "awk interactive mode, ctrl-D to exit\n")
	prompt := liner.NewLiner()
	defer prompt.Close()
	prompt.SetCtrlCAborts(true)
	for {
		src, err := prompt.Prompt("awk> ")
		if err != nil {
			// io.EOF or prompt aborted
			fmt.Fprintln(os.Stderr)
			return
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		prompt.AppendHistory(src)
		prog, err := parser.ParseProgram([]byte(src))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			continue
		}
		p := interp.New(os.Stdout)
		if err := p.Exec(prog, nil, vars); err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
		}
	}
}
