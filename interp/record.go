// Record/field manager: current record, fields, and input position.

package interp

import (
	"bufio"
	"io"
	"strings"

	. "github.com/meefbo/AWK-Interpreter/lexer"
)

// InputFile is one named input source for Exec. Name becomes the
// FILENAME variable while the file's records are being read.
type InputFile struct {
	Name   string
	Reader io.Reader
}

// lineManager owns the record state: the queue of input files, the
// current record and its fields, and the NR/FNR/FILENAME counters.
// Splitting and field editing live on Interp because they depend on
// FS, OFS, and the regex cache.
type lineManager struct {
	files    []InputFile
	scanner  *bufio.Scanner
	filename string

	line   string // $0
	fields []string

	lineNum     int // NR
	fileLineNum int // FNR
}

func (m *lineManager) open(files []InputFile) {
	m.files = files
	m.scanner = nil
	m.filename = ""
	m.line = ""
	m.fields = nil
	m.lineNum = 0
	m.fileLineNum = 0
}

// switchFile points the manager at a new source: FNR resets, FILENAME
// updates. Any records remaining in the current source are dropped.
func (m *lineManager) switchFile(name string, r io.Reader) {
	m.files = nil
	m.scanner = bufio.NewScanner(r)
	m.filename = name
	m.fileLineNum = 0
}

// nextRaw pops the next input line, moving on to the next file as
// sources drain. NR and FNR are counted here; the record itself is
// not touched (getline var wants the raw line without re-splitting).
func (m *lineManager) nextRaw() (string, bool) {
	for {
		if m.scanner == nil {
			if len(m.files) == 0 {
				return "", false
			}
			file := m.files[0]
			m.files = m.files[1:]
			m.scanner = bufio.NewScanner(file.Reader)
			m.filename = file.Name
			m.fileLineNum = 0
		}
		if m.scanner.Scan() {
			break
		}
		m.scanner = nil
	}
	m.lineNum++
	m.fileLineNum++
	return m.scanner.Text(), true
}

// setLine replaces $0 and re-splits it into fields on the current FS.
// FS is a regex, except that the single-space default means "split on
// runs of whitespace with surrounding whitespace stripped".
func (p *Interp) setLine(line string) {
	m := &p.man
	m.line = line
	if p.fieldSep == " " {
		m.fields = strings.Fields(line)
	} else if line == "" {
		m.fields = nil
	} else {
		re := p.mustCompile(p.fieldSep, Position{})
		m.fields = re.Split(line, -1)
	}
}

// nextRecord advances to the next record: NR and FNR increment, $0 is
// replaced and split, NF updates. Reports whether a record was
// available; on exhaustion the last record stays latched for END.
func (p *Interp) nextRecord() bool {
	line, ok := p.man.nextRaw()
	if !ok {
		return false
	}
	p.setLine(line)
	return true
}

// getField returns $index. Reading beyond NF is an index error
// (growth happens only on write).
func (p *Interp) getField(index int, pos Position) value {
	m := &p.man
	if index < 0 {
		panic(newError(IndexError, pos, "field index negative: %d", index))
	}
	if index == 0 {
		return str(m.line)
	}
	if index > len(m.fields) {
		panic(newError(IndexError, pos, "field index %d out of bounds for %d fields", index, len(m.fields)))
	}
	return str(m.fields[index-1])
}

// editField sets $index. Index 0 replaces and re-splits the whole
// record; an index beyond NF grows the field list with empty fields.
// Any other edit rebuilds $0 from the fields joined on OFS.
func (p *Interp) editField(index int, v string, pos Position) {
	m := &p.man
	if index < 0 {
		panic(newError(IndexError, pos, "field index negative: %d", index))
	}
	if index == 0 {
		p.setLine(v)
		return
	}
	for i := len(m.fields); i < index; i++ {
		m.fields = append(m.fields, "")
	}
	m.fields[index-1] = v
	m.line = strings.Join(m.fields, p.outputFieldSep)
}

// setNumFields implements assignment to NF: shrinking drops fields,
// growing pads with empty ones, and $0 is rebuilt either way.
func (p *Interp) setNumFields(n int, pos Position) {
	m := &p.man
	if n < 0 {
		panic(newError(IndexError, pos, "NF set to negative value: %d", n))
	}
	if n < len(m.fields) {
		m.fields = m.fields[:n]
	}
	for i := len(m.fields); i < n; i++ {
		m.fields = append(m.fields, "")
	}
	m.line = strings.Join(m.fields, p.outputFieldSep)
}
