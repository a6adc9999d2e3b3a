package config

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/akinizer/akinizer/pkg/engine"
)

// catalogSchema constrains CUE catalogs before they are decoded.
const catalogSchema = `
#GitPackage: {
	repoUrl:     string & !=""
	ref:         string & !=""
	cloneDir?:   string
	binDir?:     string
	binSymlink?: string
}

#Options: {
	skipAction?:          string
	skipActionMessage?:   string
	forceAction?:         string
	testFn?:              string
	actionCommands?:      [...string]
	gitPackage?:          #GitPackage
	verifyCommandExists?: bool
	isGUI?:               bool
	command?:             string
	postInstall?:         [...string]
}

#NamedTarget: {
	name: string & !=""
	#Options
}

#Target: string | [string, #Options] | #NamedTarget

#Phase: {
	name:        string & !=""
	action:      string & !=""
	parallel?:   bool
	when?:       string
	targetOpts?: #Options
	targets?:    [...#Target]
	phases?:     [...#Phase]
}

#Catalog: {
	parallel?: bool
	phases:    [...#Phase]
}
`

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

// catalogDefinition compiles the schema once per process.
func catalogDefinition() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		val := schemaCtx.CompileString(catalogSchema, cue.Filename("catalog-schema.cue"))
		if err := val.Err(); err != nil {
			schemaErr = fmt.Errorf("failed to compile catalog schema: %w", err)
			return
		}
		schemaDef = val.LookupPath(cue.ParsePath("#Catalog"))
		schemaErr = schemaDef.Err()
	})
	return schemaCtx, schemaDef, schemaErr
}

// ParseCatalogCUE evaluates a CUE catalog, validates it against the catalog
// schema and decodes the result like a YAML catalog.
func ParseCatalogCUE(filename string, data []byte) (*Catalog, error) {
	ctx, def, err := catalogDefinition()
	if err != nil {
		return nil, err
	}

	val := ctx.CompileBytes(data, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile %s: %s", filename, cueerrors.Details(err, nil))
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, engine.NewDefinitionError(
			fmt.Sprintf("catalog %s does not match the catalog schema: %s", filename, cueerrors.Details(err, nil)), err)
	}

	// JSON is valid YAML, so the YAML decoder and its target entry rules apply.
	out, err := unified.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", filename, err)
	}
	return ParseCatalogYAML(out)
}
