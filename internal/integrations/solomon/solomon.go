// Package solomon reads instances in the Solomon benchmark layout: the
// vehicle count and capacity on the third line, the depot on the eighth
// and one customer per line after it, fields separated by whitespace:
//
//	id x y demand ready due service
package solomon

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"vrptw/internal/integrations"
	"vrptw/internal/model"
)

const (
	fleetLine    = 2
	depotLine    = 7
	customerLine = 8
)

// Parse reads one instance from r. name becomes Instance.Name.
func Parse(r io.Reader, name string) (*model.Instance, error) {
	var lines [][]string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.Fields(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("solomon: read: %w", err)
	}
	for len(lines) > customerLine && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	if len(lines) <= depotLine {
		return nil, fmt.Errorf("solomon: %d lines, need at least %d", len(lines), depotLine+1)
	}

	fleet := lines[fleetLine]
	if len(fleet) < 2 {
		return nil, lineErr(fleetLine, "want vehicles and capacity, got %q", fleet)
	}
	vehicles, err := strconv.Atoi(fleet[0])
	if err != nil {
		return nil, lineErr(fleetLine, "vehicles: %v", err)
	}
	capacity, err := strconv.Atoi(fleet[1])
	if err != nil {
		return nil, lineErr(fleetLine, "capacity: %v", err)
	}

	inst := &model.Instance{Name: name, Vehicles: vehicles, Capacity: capacity}
	if inst.Depot, err = parseCustomer(depotLine, lines[depotLine]); err != nil {
		return nil, err
	}
	for i := customerLine; i < len(lines); i++ {
		c, err := parseCustomer(i, lines[i])
		if err != nil {
			return nil, err
		}
		inst.Customers = append(inst.Customers, c)
	}
	if err := inst.Validate(); err != nil {
		return nil, fmt.Errorf("solomon: %w", err)
	}
	return inst, nil
}

func parseCustomer(line int, f []string) (*model.Customer, error) {
	if len(f) != 7 {
		return nil, lineErr(line, "want 7 fields, got %d", len(f))
	}
	var ints [5]int
	for i, j := range []int{0, 3, 4, 5, 6} {
		v, err := strconv.Atoi(f[j])
		if err != nil {
			return nil, lineErr(line, "field %d: %v", j+1, err)
		}
		ints[i] = v
	}
	x, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return nil, lineErr(line, "x: %v", err)
	}
	y, err := strconv.ParseFloat(f[2], 64)
	if err != nil {
		return nil, lineErr(line, "y: %v", err)
	}
	return &model.Customer{
		ID:          ints[0],
		Position:    model.Point{X: x, Y: y},
		Demand:      ints[1],
		ReadyTime:   ints[2],
		DueTime:     ints[3],
		ServiceTime: ints[4],
	}, nil
}

func lineErr(line int, format string, args ...any) error {
	return fmt.Errorf("solomon: line %d: %s", line+1, fmt.Sprintf(format, args...))
}

// File is a Solomon instance on disk.
type File struct {
	Path string
}

var _ integrations.Source = File{}

func (f File) Name() string {
	return strings.TrimSuffix(filepath.Base(f.Path), filepath.Ext(f.Path))
}

func (f File) Load(ctx context.Context) (*model.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("solomon: %w", err)
	}
	defer fh.Close()
	return Parse(fh, f.Name())
}

// Text is a Solomon instance held in memory, such as an uploaded body.
type Text struct {
	Label string
	Body  []byte
}

var _ integrations.Source = Text{}

func (t Text) Name() string { return t.Label }

func (t Text) Load(ctx context.Context) (*model.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(t.Body), t.Label)
}

// Points returns the customer positions sorted by X, then Y.
func Points(inst *model.Instance) []model.Point {
	pts := make([]model.Point, 0, len(inst.Customers))
	for _, c := range inst.Customers {
		pts = append(pts, c.Position)
	}
	slices.SortFunc(pts, func(a, b model.Point) int {
		return cmp.Or(cmp.Compare(a.X, b.X), cmp.Compare(a.Y, b.Y))
	})
	return pts
}

// WritePlot writes one "x;y" line per customer in Points order.
func WritePlot(w io.Writer, inst *model.Instance) error {
	bw := bufio.NewWriter(w)
	for _, p := range Points(inst) {
		if _, err := fmt.Fprintf(bw, "%s;%s\n", fmtCoord(p.X), fmtCoord(p.Y)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func fmtCoord(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
