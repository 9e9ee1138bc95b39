package domains

import (
	"sort"

	"github.com/pkg/errors"
)

var ErrUnknownDomain = errors.New("unknown domain")

// Catalog indexes the domains served by a process.
type Catalog map[string]*Domain

func NewCatalog(ds ...*Domain) Catalog {
	ret := Catalog{}
	for _, d := range ds {
		ret[d.Name] = d
	}
	return ret
}

func (c Catalog) Get(name string) (*Domain, error) {
	d, ok := c[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownDomain, name)
	}
	return d, nil
}

func (c Catalog) Names() []string {
	ret := make([]string, 0, len(c))
	for n := range c {
		ret = append(ret, n)
	}
	sort.Strings(ret)
	return ret
}
