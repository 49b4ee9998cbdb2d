package manifest

import (
	"fmt"
	"sort"
	"strings"
)

type ModulesGraph struct {
	modules map[string]*ModuleDescriptor
	links   map[string][]*ModuleDescriptor
}

func NewModulesGraph(modules []*ModuleDescriptor) (*ModulesGraph, error) {
	g := &ModulesGraph{
		modules: map[string]*ModuleDescriptor{},
		links:   map[string][]*ModuleDescriptor{},
	}

	for _, mod := range modules {
		g.modules[mod.Name] = mod
	}

	for _, mod := range modules {
		var links []*ModuleDescriptor
		for _, input := range mod.Inputs {
			for _, prefix := range []string{"map:", "store:"} {
				if strings.HasPrefix(input, prefix) {
					linkName := strings.TrimPrefix(input, prefix)
					linked, ok := g.modules[linkName]
					if !ok {
						return nil, fmt.Errorf("module %q depends on %q which does not exist", mod.Name, linkName)
					}
					links = append(links, linked)
				}
			}
		}
		g.links[mod.Name] = links
	}

	return g, nil
}

// ModulesFor returns every module needed to compute `name`, dependencies first.
func (g *ModulesGraph) ModulesFor(name string) ([]*ModuleDescriptor, error) {
	this, found := g.modules[name]
	if !found {
		return nil, fmt.Errorf("module %q not found", name)
	}

	return append(g.ancestorsOf(name), this), nil
}

func (g *ModulesGraph) AncestorsOf(name string) ([]*ModuleDescriptor, error) {
	if _, found := g.modules[name]; !found {
		return nil, fmt.Errorf("module %q not found", name)
	}
	return g.ancestorsOf(name), nil
}

func (g *ModulesGraph) ancestorsOf(name string) []*ModuleDescriptor {
	type moduleWithTreeDepth struct {
		module *ModuleDescriptor
		depth  int
	}

	var dfs func(rootName string, depth int, alreadyVisited map[string]struct{}) []moduleWithTreeDepth
	dfs = func(rootName string, depth int, alreadyVisited map[string]struct{}) []moduleWithTreeDepth {
		var result []moduleWithTreeDepth
		for _, link := range g.links[rootName] {
			if _, ok := alreadyVisited[link.Name]; ok {
				continue
			}

			result = append(result, moduleWithTreeDepth{
				module: link,
				depth:  depth,
			})
			alreadyVisited[link.Name] = struct{}{}

			result = append(result, dfs(link.Name, depth+1, alreadyVisited)...)
		}

		return result
	}

	parentsWithDepth := dfs(name, 0, map[string]struct{}{})

	// deepest first, so dependencies come before their dependents
	sort.SliceStable(parentsWithDepth, func(i, j int) bool {
		return parentsWithDepth[i].depth > parentsWithDepth[j].depth
	})

	var result []*ModuleDescriptor
	for _, parent := range parentsWithDepth {
		result = append(result, parent.module)
	}

	return result
}
