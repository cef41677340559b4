// Package directory caches the reference entities appointments point to.
package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/javiermolinar/rendezvous/internal/appointment"
)

// Source loads reference entities from storage.
type Source interface {
	ListCustomers(ctx context.Context) ([]appointment.Customer, error)
	ListContacts(ctx context.Context) ([]appointment.Contact, error)
	ListUsers(ctx context.Context) ([]appointment.User, error)
}

// table is one lazily loaded id-keyed list.
type table[T any] struct {
	loaded bool
	items  []T
	byID   map[int64]T
}

func (t *table[T]) fill(items []T, id func(T) int64) {
	t.items = items
	t.byID = make(map[int64]T, len(items))
	for _, it := range items {
		t.byID[id(it)] = it
	}
	t.loaded = true
}

// Cache holds customers, contacts and users keyed by id. Each list is loaded
// on first use and kept until Refresh.
type Cache struct {
	src Source

	mu        sync.Mutex
	customers table[appointment.Customer]
	contacts  table[appointment.Contact]
	users     table[appointment.User]
}

// New creates an empty cache over src.
func New(src Source) *Cache {
	return &Cache{src: src}
}

// Refresh drops every cached list. Call it after writing reference data.
func (c *Cache) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customers = table[appointment.Customer]{}
	c.contacts = table[appointment.Contact]{}
	c.users = table[appointment.User]{}
}

func (c *Cache) loadCustomers(ctx context.Context) error {
	if c.customers.loaded {
		return nil
	}
	items, err := c.src.ListCustomers(ctx)
	if err != nil {
		return fmt.Errorf("loading customers: %w", err)
	}
	c.customers.fill(items, func(v appointment.Customer) int64 { return v.ID })
	return nil
}

func (c *Cache) loadContacts(ctx context.Context) error {
	if c.contacts.loaded {
		return nil
	}
	items, err := c.src.ListContacts(ctx)
	if err != nil {
		return fmt.Errorf("loading contacts: %w", err)
	}
	c.contacts.fill(items, func(v appointment.Contact) int64 { return v.ID })
	return nil
}

func (c *Cache) loadUsers(ctx context.Context) error {
	if c.users.loaded {
		return nil
	}
	items, err := c.src.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("loading users: %w", err)
	}
	c.users.fill(items, func(v appointment.User) int64 { return v.ID })
	return nil
}

// Customers returns all customers in storage order.
func (c *Cache) Customers(ctx context.Context) ([]appointment.Customer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadCustomers(ctx); err != nil {
		return nil, err
	}
	return append([]appointment.Customer(nil), c.customers.items...), nil
}

// Contacts returns all contacts in storage order.
func (c *Cache) Contacts(ctx context.Context) ([]appointment.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadContacts(ctx); err != nil {
		return nil, err
	}
	return append([]appointment.Contact(nil), c.contacts.items...), nil
}

// Users returns all users in storage order.
func (c *Cache) Users(ctx context.Context) ([]appointment.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadUsers(ctx); err != nil {
		return nil, err
	}
	return append([]appointment.User(nil), c.users.items...), nil
}

// Customer looks up a customer by id.
func (c *Cache) Customer(ctx context.Context, id int64) (appointment.Customer, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadCustomers(ctx); err != nil {
		return appointment.Customer{}, false, err
	}
	v, ok := c.customers.byID[id]
	return v, ok, nil
}

// Contact looks up a contact by id.
func (c *Cache) Contact(ctx context.Context, id int64) (appointment.Contact, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadContacts(ctx); err != nil {
		return appointment.Contact{}, false, err
	}
	v, ok := c.contacts.byID[id]
	return v, ok, nil
}

// User looks up a user by id.
func (c *Cache) User(ctx context.Context, id int64) (appointment.User, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadUsers(ctx); err != nil {
		return appointment.User{}, false, err
	}
	v, ok := c.users.byID[id]
	return v, ok, nil
}

// UserByName finds a user by case-insensitive name.
func (c *Cache) UserByName(ctx context.Context, name string) (appointment.User, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadUsers(ctx); err != nil {
		return appointment.User{}, false, err
	}
	for _, u := range c.users.items {
		if strings.EqualFold(u.Name, name) {
			return u, true, nil
		}
	}
	return appointment.User{}, false, nil
}

// CheckReferences reports references in f that don't resolve. Zero ids are
// left to field validation.
func (c *Cache) CheckReferences(ctx context.Context, f appointment.Fields) (*appointment.ValidationError, error) {
	verr := &appointment.ValidationError{}

	if f.CustomerID > 0 {
		if _, ok, err := c.Customer(ctx, f.CustomerID); err != nil {
			return nil, err
		} else if !ok {
			verr.Add("customer", appointment.CodeUnknownRef, fmt.Sprintf("customer %d does not exist", f.CustomerID))
		}
	}
	if f.ContactID > 0 {
		if _, ok, err := c.Contact(ctx, f.ContactID); err != nil {
			return nil, err
		} else if !ok {
			verr.Add("contact", appointment.CodeUnknownRef, fmt.Sprintf("contact %d does not exist", f.ContactID))
		}
	}
	if f.UserID > 0 {
		if _, ok, err := c.User(ctx, f.UserID); err != nil {
			return nil, err
		} else if !ok {
			verr.Add("user", appointment.CodeUnknownRef, fmt.Sprintf("user %d does not exist", f.UserID))
		}
	}
	return verr, nil
}
