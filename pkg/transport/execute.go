package transport

import (
	"github.com/tapwalk/jtaghost/pkg/template"
)

// ExecuteTemplate is the transport adapter (spec component D): it binds
// values into a compiled template, hands the resulting wire strings to a
// Driver for one Exchange, and extracts the captured values back out.
func ExecuteTemplate(d Driver, ct *template.CompiledTemplate, values []int64) ([]uint64, error) {
	wire, err := ct.Combine(values)
	if err != nil {
		return nil, err
	}

	n := ct.Len()
	tms := make([]bool, n)
	tdi := make([]bool, n)
	for i := 0; i < n; i++ {
		tms[i] = ct.TMSStr()[i] == '1'
		tdi[i] = wire[i] == '1'
	}

	tdo, err := d.Exchange(tms, tdi, TDORequest{Length: n})
	if err != nil {
		return nil, err
	}
	return ct.Extract(tdo)
}
