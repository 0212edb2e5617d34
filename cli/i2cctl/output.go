package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// printer writes aligned columns on a terminal and key=value lines otherwise.
type printer struct {
	s      *session
	header []string
	rows   [][]string
}

func (s *session) printer(header ...string) *printer {
	return &printer{s: s, header: header}
}

func (p *printer) row(cells ...string) {
	p.rows = append(p.rows, cells)
}

func (p *printer) flush() error {
	if !p.s.table {
		for _, r := range p.rows {
			pairs := make([]string, len(r))
			for i, c := range r {
				pairs[i] = fmt.Sprintf("%s=%s", strings.ToLower(p.header[i]), c)
			}
			if _, err := fmt.Fprintln(p.s.out, strings.Join(pairs, " ")); err != nil {
				return err
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(p.s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(p.header, "\t"))
	for _, r := range p.rows {
		fmt.Fprintln(w, strings.Join(r, "\t"))
	}
	return w.Flush()
}
