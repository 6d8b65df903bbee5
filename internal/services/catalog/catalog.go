// Package catalog serves the demo product, address and customer fixtures the
// participants are instructed about.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/caia/concierge/pkg/logger"
	"github.com/caia/concierge/pkg/protocol"
)

//go:embed catalog.yaml
var defaultFixture []byte

type Customer struct {
	CustomerID string          `json:"customerId" yaml:"customerId"`
	Name       string          `json:"name" yaml:"name"`
	AddressIDs []string        `json:"addressIds" yaml:"addressIds"`
	Cards      []protocol.Card `json:"cards" yaml:"cards"`
}

func (c Customer) HasSavedCards() bool {
	return len(c.Cards) > 0
}

type Catalog struct {
	Products  []protocol.Product `yaml:"products"`
	Addresses []protocol.Address `yaml:"addresses"`
	Customers []Customer         `yaml:"customers"`
}

// Load reads a catalog fixture from path, or the embedded demo fixture when
// path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultFixture
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		data = b
	}

	c, err := Parse(data)
	if err != nil {
		return nil, err
	}

	logger.Info(logger.CATALOG, "Loaded catalog with %d products and %d customers", len(c.Products), len(c.Customers))
	return c, nil
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for _, cust := range c.Customers {
		if cust.CustomerID == "" {
			return nil, fmt.Errorf("parse catalog: customer %q has no customerId", cust.Name)
		}
	}
	return &c, nil
}

func (c *Catalog) GetCustomer(id string) (Customer, bool) {
	for _, cust := range c.Customers {
		if cust.CustomerID == id {
			return cust, true
		}
	}
	return Customer{}, false
}

func (c *Catalog) GetProduct(id string) (protocol.Product, bool) {
	for _, p := range c.Products {
		if p.ID == id {
			return p, true
		}
	}
	return protocol.Product{}, false
}

// CustomerAddresses resolves the customer's address ids, skipping unknown ones.
func (c *Catalog) CustomerAddresses(cust Customer) []protocol.Address {
	out := make([]protocol.Address, 0, len(cust.AddressIDs))
	for _, id := range cust.AddressIDs {
		for _, a := range c.Addresses {
			if a.ID == id {
				out = append(out, a)
			}
		}
	}
	return out
}
