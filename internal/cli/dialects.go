package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
)

// DialectInfo describes one registered adapter.
type DialectInfo struct {
	Name         string
	PKStrategy   schema.PKGeneration
	Capabilities dialect.Capabilities
}

// Features returns the names of the supported optional features.
func (d DialectInfo) Features() []string {
	c := d.Capabilities
	var fs []string
	for _, f := range []struct {
		name string
		on   bool
	}{
		{"batch", c.BatchUpdates},
		{"generated-keys", c.GeneratedKeys},
		{"returning", c.Returning},
		{"sequences", c.Sequences},
		{"identity", c.IdentityColumns},
		{"boolean", c.BooleanLiterals},
		{"inline-constraints", c.InlineConstraints},
	} {
		if f.on {
			fs = append(fs, f.name)
		}
	}
	return fs
}

// Dialects describes every registered adapter, sorted by name.
func Dialects() ([]DialectInfo, error) {
	var infos []DialectInfo
	for _, name := range dialect.Names() {
		a, err := dialect.Get(name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, DialectInfo{Name: a.Name(), PKStrategy: a.PKStrategy(), Capabilities: a.Capabilities()})
	}
	return infos, nil
}

// WriteDialects writes infos as an aligned table.
func WriteDialects(w io.Writer, infos []DialectInfo) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKEYS\tMAX IN\tFEATURES")
	for _, d := range infos {
		maxIn := "-"
		if d.Capabilities.MaxInList > 0 {
			maxIn = fmt.Sprint(d.Capabilities.MaxInList)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.PKStrategy, maxIn, strings.Join(d.Features(), ","))
	}
	return tw.Flush()
}
