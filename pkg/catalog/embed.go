package catalog

import (
	_ "embed"
	"sync"
)

//go:embed catalog.yaml
var embedded []byte

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the node-type catalog baked into the binary. The embedded
// document is parsed once; a parse failure is a build defect and surfaces on
// first use.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Load(embedded)
	})
	return defaultCat, defaultErr
}
