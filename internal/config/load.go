package config

import (
	"strconv"
	"strings"
)

// Inventory is the result of loading a configuration file: every process
// configuration in file order, plus the declared groups and the namespace
// set derived from uid group parts.
type Inventory struct {
	Order      []string
	ByUID      map[string]Configuration
	Groups     map[string][]string
	Namespaces map[string]struct{}
}

// Load parses filename and materialises one typed configuration per
// process section, expanding clone suffixes into individual instances.
func Load(filename string) (*Inventory, error) {
	file, err := parseFile(filename)
	if err != nil {
		return nil, err
	}

	inv := &Inventory{
		ByUID:      map[string]Configuration{},
		Groups:     map[string][]string{},
		Namespaces: map[string]struct{}{},
	}

	for _, section := range file.sections {
		name, ok := strings.CutPrefix(section.header, "group:")
		if !ok {
			return nil, configErrf("", "malformed group header [%s]", section.header)
		}
		if _, ok := inv.Groups[name]; !ok {
			inv.Groups[name] = []string{}
		}

		for _, sub := range section.subs {
			header, clones, err := splitClones(sub.header)
			if err != nil {
				return nil, err
			}

			group, component, ok := strings.Cut(header, ".")
			if !ok {
				return nil, configErrf(header, "process header must be group.component")
			}

			typeid, _, _ := strings.Cut(rawTypeOf(sub), ":")
			if typeid == "c" { // helper section, not a process
				continue
			}

			for _, instance := range clones {
				uid := UID{Group: group, Component: component, Instance: instance}
				cfg, err := build(typeid, uid, sub, section, file)
				if err != nil {
					return nil, err
				}
				id := cfg.Base().UID
				if _, dup := inv.ByUID[id]; dup {
					return nil, configErrf(id, "duplicate component identifier")
				}
				inv.Order = append(inv.Order, id)
				inv.ByUID[id] = cfg
				inv.Groups[name] = append(inv.Groups[name], id)
				inv.Namespaces[group] = struct{}{}
			}
		}
	}

	return inv, nil
}

func rawTypeOf(sub *rawSection) string {
	if v, ok := sub.values["type"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// splitClones expands a `:N` or `:(i,j,k)` header suffix into the list of
// instance labels, or a single empty label for plain headers.
func splitClones(header string) (string, []string, error) {
	name, suffix, found := strings.Cut(header, ":")
	if !found {
		return name, []string{""}, nil
	}

	if strings.HasPrefix(suffix, "(") && strings.HasSuffix(suffix, ")") {
		var instances []string
		for _, item := range strings.Split(suffix[1:len(suffix)-1], ",") {
			item = strings.TrimSpace(item)
			if _, err := strconv.Atoi(item); err != nil {
				return "", nil, configErrf(header, "clone instance %q is not an integer", item)
			}
			instances = append(instances, item)
		}
		if len(instances) == 0 {
			return "", nil, configErrf(header, "empty clone enumeration")
		}
		return name, instances, nil
	}

	n, err := strconv.Atoi(suffix)
	if err != nil || n <= 0 {
		return "", nil, configErrf(header, "clone count %q is not a positive integer", suffix)
	}
	instances := make([]string, n)
	for i := range instances {
		instances[i] = strconv.Itoa(i)
	}
	return name, instances, nil
}

func build(typeid string, uid UID, proc, group *rawSection, file *rawFile) (Configuration, error) {
	id := uid.String()
	if !validUID.MatchString(id) {
		return nil, configErrf(id, "invalid component identifier")
	}

	factory, ok := registry[typeid]
	if !ok {
		return nil, configErrf(id, "unknown component type %q", typeid)
	}

	cfg := factory(uid)
	l := &lookup{
		uid:   id,
		stack: []map[string]rawValue{proc.values, group.values, file.globals},
	}
	if err := cfg.parse(l); err != nil {
		return nil, err
	}
	return cfg, nil
}
