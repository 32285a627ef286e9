package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// validateRoutes normalizes and checks every route, rejecting duplicate method/path pairs.
func (c *Config) validateRoutes() error {
	if len(c.Routes) == 0 {
		return errors.New("no routes defined")
	}
	seen := map[string]int{}
	for i := range c.Routes {
		rt := &c.Routes[i]
		if err := rt.normalize(); err != nil {
			return fmt.Errorf("route %d: %w", i, err)
		}
		if err := rt.validate(); err != nil {
			return fmt.Errorf("route %d (%s %s): %w", i, strings.Join(rt.Methods, ","), rt.Path, err)
		}
		for _, m := range rt.Methods {
			key := m + " " + rt.Path
			if j, dup := seen[key]; dup {
				return fmt.Errorf("route %d: %s duplicates route %d", i, key, j)
			}
			seen[key] = i
		}
	}
	return nil
}
