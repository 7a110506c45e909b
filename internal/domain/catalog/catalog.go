package catalog

import (
	"errors"
	"fmt"

	"github.com/dmstore/dmstore/internal/domain/phrase"
)

// Item is one quantity-priced entry of a one-time group.
type Item struct {
	Name      string `json:"name"`
	UnitPrice Amount `json:"unitPrice"`
	Payload   string `json:"-"`
}

// Group is a one-time product category. Items are addressed by 1-based index.
type Group struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// ItemAt returns the item at a 1-based index.
func (g *Group) ItemAt(index int) (Item, bool) {
	if index < 1 || index > len(g.Items) {
		return Item{}, false
	}
	return g.Items[index-1], true
}

// Unlimited is a flat-priced, unlimited-use product.
type Unlimited struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Price   Amount `json:"price"`
	Payload string `json:"-"`
}

// Catalog holds product definitions. It is read-only once built.
type Catalog struct {
	Groups    []Group     `json:"oneTime"`
	Unlimited []Unlimited `json:"unlimited"`
}

// Group looks up a one-time group by key.
func (c *Catalog) Group(key string) (*Group, bool) {
	k := phrase.Normalize(key)
	for i := range c.Groups {
		if phrase.Normalize(c.Groups[i].Key) == k {
			return &c.Groups[i], true
		}
	}
	return nil, false
}

// UnlimitedItem looks up an unlimited product by key.
func (c *Catalog) UnlimitedItem(key string) (*Unlimited, bool) {
	k := phrase.Normalize(key)
	for i := range c.Unlimited {
		if phrase.Normalize(c.Unlimited[i].Key) == k {
			return &c.Unlimited[i], true
		}
	}
	return nil, false
}

// Validate checks that both product kinds are present and every key is unique across the catalog.
func (c *Catalog) Validate() error {
	if len(c.Groups) == 0 {
		return errors.New("catalog: at least one one-time group is required")
	}
	if len(c.Unlimited) == 0 {
		return errors.New("catalog: at least one unlimited product is required")
	}
	seen := map[string]struct{}{}
	claim := func(key string) error {
		k := phrase.Normalize(key)
		if k == "" {
			return errors.New("catalog: product key is required")
		}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("catalog: duplicate key %q", key)
		}
		seen[k] = struct{}{}
		return nil
	}
	for _, g := range c.Groups {
		if err := claim(g.Key); err != nil {
			return err
		}
		if g.Name == "" {
			return fmt.Errorf("catalog: group %q has no name", g.Key)
		}
		if len(g.Items) == 0 {
			return fmt.Errorf("catalog: group %q has no items", g.Key)
		}
		for i, it := range g.Items {
			if it.Name == "" {
				return fmt.Errorf("catalog: group %q item %d has no name", g.Key, i+1)
			}
			if it.Payload == "" {
				return fmt.Errorf("catalog: group %q item %d has no payload", g.Key, i+1)
			}
		}
	}
	for _, u := range c.Unlimited {
		if err := claim(u.Key); err != nil {
			return err
		}
		if u.Name == "" || u.Payload == "" {
			return fmt.Errorf("catalog: unlimited product %q needs a name and payload", u.Key)
		}
	}
	return nil
}
