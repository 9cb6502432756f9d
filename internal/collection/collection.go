// Package collection stores the requests a run can repeat, grouped in
// folders, together with collection variables and named environments.
package collection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/torosent/repeater/internal/request"
	"github.com/torosent/repeater/internal/variables"
)

// PathSeparator joins folder names and the request name into a request path.
const PathSeparator = "/"

// Folder groups requests. Folders nest.
type Folder struct {
	Name     string
	Requests []request.Template
	Folders  []Folder
}

// Collection is a tree of requests plus the variables they are resolved with.
type Collection struct {
	Name         string
	Variables    variables.Set
	Environments map[string]variables.Set
	Root         Folder

	index map[string]request.Template
	paths []string
}

// New indexes root and returns the collection. Request paths must be unique.
func New(name string, vars variables.Set, envs map[string]variables.Set, root Folder) (*Collection, error) {
	c := &Collection{
		Name:         name,
		Variables:    vars,
		Environments: envs,
		Root:         root,
		index:        make(map[string]request.Template),
	}
	if c.Environments == nil {
		c.Environments = make(map[string]variables.Set)
	}
	if err := c.indexFolder(nil, root); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collection) indexFolder(parents []string, f Folder) error {
	for _, req := range f.Requests {
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return fmt.Errorf("request without a name in folder %q", strings.Join(parents, PathSeparator))
		}
		path := strings.Join(append(append([]string(nil), parents...), name), PathSeparator)
		if _, dup := c.index[path]; dup {
			return fmt.Errorf("duplicate request path %q", path)
		}
		c.index[path] = req.Clone()
		c.paths = append(c.paths, path)
	}
	for _, sub := range f.Folders {
		name := strings.TrimSpace(sub.Name)
		if name == "" {
			return fmt.Errorf("folder without a name under %q", strings.Join(parents, PathSeparator))
		}
		if err := c.indexFolder(append(append([]string(nil), parents...), name), sub); err != nil {
			return err
		}
	}
	return nil
}

// Lookup finds a request by its path, for example "Users/Get user". The
// returned template is a copy.
func (c *Collection) Lookup(ref string) (request.Template, bool) {
	if c == nil {
		return request.Template{}, false
	}
	tmpl, ok := c.index[strings.TrimSpace(ref)]
	if !ok {
		return request.Template{}, false
	}
	return tmpl.Clone(), true
}

// Paths lists every request path in collection order.
func (c *Collection) Paths() []string {
	return append([]string(nil), c.paths...)
}

// EnvironmentNames lists environments alphabetically.
func (c *Collection) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolver layers collection variables, the named environment and overrides,
// later layers winning. An empty environment name selects no environment.
func (c *Collection) Resolver(environment string, overrides variables.Set) (*variables.Resolver, error) {
	layers := []variables.Set{c.Variables}
	if environment = strings.TrimSpace(environment); environment != "" {
		env, ok := c.Environments[environment]
		if !ok {
			return nil, fmt.Errorf("environment %q not found (have %s)", environment, strings.Join(c.EnvironmentNames(), ", "))
		}
		layers = append(layers, env)
	}
	layers = append(layers, overrides)
	return variables.NewResolver(layers...), nil
}
