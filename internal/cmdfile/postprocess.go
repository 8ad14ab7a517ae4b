package cmdfile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/wrf-postprocess/internal/domain"
)

// PostprocessFileName is the per-year post-processing command file.
const PostprocessFileName = "cmdfile"

// derivedVariables are written by the collaborator next to the requested
// variable and need their own log directories.
var derivedVariables = map[string][]string{
	"tas":     {"tasmax", "tasmin"},
	"sfcWind": {"uas", "vas"},
}

// PostprocessOptions describe a per-year post-processing command file.
type PostprocessOptions struct {
	Python    string
	Script    string
	Root      string
	Span      domain.SimulationSpan
	Years     domain.YearRange
	Variables []string
}

// PostprocessFile emits "<python> <script> <chunk_dir>/ <year> <variable>
// > <variable>/out.${step}.log 2>&1" for every variable and year. ${step}
// is left for the batch launcher to expand. Years no chunk counts are
// returned instead of emitted.
func PostprocessFile(o PostprocessOptions) (File, []int, error) {
	if len(o.Variables) == 0 {
		return File{}, nil, errors.New("no variables")
	}
	if o.Years.Len() == 0 {
		return File{}, nil, fmt.Errorf("empty year range %s", o.Years)
	}

	chunks := make(map[int]int, o.Years.Len())
	var skipped []int
	for y := o.Years.Start; y <= o.Years.End; y++ {
		start, ok := o.Span.ChunkFor(y)
		if !ok {
			skipped = append(skipped, y)
			continue
		}
		chunks[y] = start
	}

	f := File{Name: PostprocessFileName}
	for _, v := range o.Variables {
		for y := o.Years.Start; y <= o.Years.End; y++ {
			start, ok := chunks[y]
			if !ok {
				continue
			}
			dir := domain.ChunkDirectory{Root: o.Root, StartYear: start}.Path() + "/"
			cmd := strings.Join([]string{o.Python, o.Script, dir, strconv.Itoa(y), v}, " ")
			f.Lines = append(f.Lines, cmd+" > "+v+"/out.${step}.log 2>&1")
		}
	}
	return f, skipped, nil
}

// LogDirs lists the per-variable log directories the command file writes
// into, derived variables included.
func LogDirs(variables []string) []string {
	var out []string
	for _, v := range variables {
		out = append(out, v)
		out = append(out, derivedVariables[v]...)
	}
	return out
}
