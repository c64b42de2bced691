package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/store"
)

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	supplier.ID = s.nextID("suppliers")
	s.suppliers[supplier.ID] = supplier
	return &supplier, nil
}

func (s *Store) UpdateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	current, ok := s.suppliers[supplier.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	current.Name = supplier.Name
	current.Phone = supplier.Phone
	current.CompanyName = supplier.CompanyName
	s.suppliers[current.ID] = current
	return &current, nil
}

func (s *Store) GetSupplier(_ context.Context, id int64) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	supplier, ok := s.suppliers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &supplier, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.SearchSuppliers(ctx, "")
}

func (s *Store) SearchSuppliers(_ context.Context, term string) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	out := make([]domain.Supplier, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		if matches(term, sup.Name, sup.CompanyName, sup.Phone) {
			out = append(out, sup)
		}
	}
	slices.SortFunc(out, func(a, b domain.Supplier) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) DeleteSupplier(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return err
	}
	if _, ok := s.suppliers[id]; !ok {
		return store.ErrNotFound
	}
	for _, m := range s.medicines {
		if m.SupplierID != nil && *m.SupplierID == id {
			return store.ErrReferentialConflict
		}
	}
	for _, p := range s.purchases {
		if p.SupplierID == id {
			return store.ErrReferentialConflict
		}
	}
	delete(s.suppliers, id)
	return nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = s.now()
	}
	customer.CreatedAt = customer.CreatedAt.UTC().Truncate(time.Second)
	customer.ID = s.nextID("customers")
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	current, ok := s.customers[customer.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	current.Name = customer.Name
	current.Phone = customer.Phone
	current.Email = customer.Email
	current.Notes = customer.Notes
	s.customers[current.ID] = current
	return &current, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.SearchCustomers(ctx, "")
}

func (s *Store) SearchCustomers(_ context.Context, term string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if matches(term, c.Name, c.Phone, c.Email) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.Customer) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return err
	}
	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	for _, sale := range s.sales {
		if sale.CustomerID != nil && *sale.CustomerID == id {
			return store.ErrReferentialConflict
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	user.Username = strings.TrimSpace(user.Username)
	if user.Username == "" || user.PasswordHash == "" {
		return nil, store.ErrValidation
	}
	if _, exists := s.userByName(user.Username); exists {
		return nil, store.ErrDuplicateUsername
	}
	if user.Role == "" {
		user.Role = domain.RolePharmacist
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	user.CreatedAt = user.CreatedAt.UTC().Truncate(time.Second)
	user.ID = s.nextID("users")
	s.users[user.ID] = user
	return &user, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	user, ok := s.userByName(username)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return err
	}
	if passwordHash == "" {
		return store.ErrValidation
	}
	user, ok := s.userByName(username)
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	s.users[user.ID] = user
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return err
	}
	user, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	if user.Username == domain.DefaultAdminUsername {
		return store.ErrProtectedAccount
	}
	for _, sale := range s.sales {
		if sale.UserID == id {
			return store.ErrReferentialConflict
		}
	}
	delete(s.users, id)
	return nil
}

func (s *Store) userByName(username string) (domain.User, bool) {
	for _, u := range s.users {
		if u.Username == username {
			return u, true
		}
	}
	return domain.User{}, false
}
