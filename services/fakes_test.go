package services_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/yashrajoria/storefront-service/models"
	"github.com/yashrajoria/storefront-service/repository"
	"github.com/yashrajoria/storefront-service/services"
)

var (
	productAID = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	productBID = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
)

func clone[T any](v *T) *T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

// --- products ---

type fakeProducts struct {
	mu       sync.Mutex
	products map[uuid.UUID]*models.Product
	// beforeDebit runs before a debit is applied, with the lock released.
	beforeDebit func(id uuid.UUID)
	locked      []uuid.UUID
}

func newFakeProducts(products ...*models.Product) *fakeProducts {
	f := &fakeProducts{products: map[uuid.UUID]*models.Product{}}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func product(id uuid.UUID, name, price string, stock int) *models.Product {
	return &models.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}

func (f *fakeProducts) stock(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

func (f *fakeProducts) setPrice(id uuid.UUID, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[id].Price = decimal.RequireFromString(price)
}

func (f *fakeProducts) delete(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, id)
}

func (f *fakeProducts) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	f.mu.Lock()
	f.locked = append(f.locked, id)
	f.mu.Unlock()
	return f.FindByID(ctx, id)
}

func (f *fakeProducts) FindAll(_ context.Context, page, limit int) ([]models.Product, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]models.Product, 0, len(f.products))
	for _, p := range f.products {
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (f *fakeProducts) Save(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeProducts) DebitStock(_ context.Context, id uuid.UUID, quantity int) error {
	if f.beforeDebit != nil {
		f.beforeDebit(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok || p.Stock < quantity {
		return repository.ErrStockConflict
	}
	p.Stock -= quantity
	return nil
}

func (f *fakeProducts) CreditStock(_ context.Context, id uuid.UUID, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Stock += quantity
	return nil
}

// --- users ---

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
	saves int
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*models.User{}}
	for _, u := range users {
		f.users[u.Username] = u
	}
	return f
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Save(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.Username] = &cp
	f.saves++
	return nil
}

// --- orders ---

type fakeOrders struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]*models.Order
	creates int
	// beforeCreate runs before a create is applied; used to simulate a
	// concurrent request winning the race.
	beforeCreate func(o *models.Order)
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: map[uuid.UUID]*models.Order{}}
}

func (f *fakeOrders) put(o *models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = clone(o)
}

func (f *fakeOrders) all() []*models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Order, 0, len(f.orders))
	for _, o := range f.orders {
		out = append(out, clone(o))
	}
	return out
}

func (f *fakeOrders) FindPendingByUserID(_ context.Context, userID uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.UserID != nil && *o.UserID == userID && o.Status == models.OrderStatusPending {
			return clone(o), nil
		}
	}
	return nil, repository.ErrNotFound
}

// FindPendingByUserIDForUpdate takes no lock; Save rejects a second
// confirm the way the conditional update does.
func (f *fakeOrders) FindPendingByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	return f.FindPendingByUserID(ctx, userID)
}

func (f *fakeOrders) FindByUserID(_ context.Context, userID uuid.UUID, status models.OrderStatus, page, limit int) ([]models.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []models.Order
	for _, o := range f.orders {
		if o.UserID != nil && *o.UserID == userID && o.Status == status {
			matched = append(matched, *clone(o))
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], int64(len(matched)), nil
}

func (f *fakeOrders) FindByIDAndUserID(_ context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.UserID == nil || *o.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return clone(o), nil
}

func (f *fakeOrders) Create(_ context.Context, o *models.Order) error {
	if f.beforeCreate != nil {
		hook := f.beforeCreate
		f.beforeCreate = nil
		hook(o)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if o.UserID != nil && o.Status == models.OrderStatusPending {
		for _, existing := range f.orders {
			if existing.UserID != nil && *existing.UserID == *o.UserID && existing.Status == models.OrderStatusPending {
				return repository.ErrDuplicate
			}
		}
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
		if o.Items[i].ID == uuid.Nil {
			o.Items[i].ID = uuid.New()
		}
	}
	f.orders[o.ID] = clone(o)
	return nil
}

func (f *fakeOrders) Save(_ context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.orders[o.ID]; !ok || stored.Status != models.OrderStatusPending {
		return repository.ErrStaleOrder
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	f.orders[o.ID] = clone(o)
	return nil
}

func (f *fakeOrders) Delete(_ context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.orders, o.ID)
	return nil
}

// --- sessions ---

type fakeSessions struct {
	mu     sync.Mutex
	carts  map[string][]byte
	guards map[string]bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{carts: map[string][]byte{}, guards: map[string]bool{}}
}

func (f *fakeSessions) GetCart(_ context.Context, sessionID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.carts[sessionID]
	if !ok {
		return nil, nil
	}
	var o models.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (f *fakeSessions) SetCart(_ context.Context, sessionID string, cart *models.Order) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[sessionID] = data
	return nil
}

func (f *fakeSessions) RemoveCart(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.carts, sessionID)
	return nil
}

func (f *fakeSessions) AcquireCheckout(_ context.Context, sessionID string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.guards[sessionID] {
		return false, nil
	}
	f.guards[sessionID] = true
	return true, nil
}

func (f *fakeSessions) ReleaseCheckout(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.guards, sessionID)
	return nil
}

func (f *fakeSessions) guarded(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.guards[sessionID]
}

func (f *fakeSessions) has(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.carts[sessionID]
	return ok
}

// --- unit of work ---

type fakeTx struct {
	mu    sync.Mutex
	calls int
	// commitErr is returned in place of a successful commit.
	commitErr error
}

func (f *fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.calls++
	commitErr := f.commitErr
	f.mu.Unlock()
	if err := fn(ctx); err != nil {
		return err
	}
	return commitErr
}

// --- events ---

type fakePublisher struct {
	mu     sync.Mutex
	orders []*models.Order
}

func (f *fakePublisher) OrderConfirmed(_ context.Context, o *models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, clone(o))
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

// --- wiring ---

type harness struct {
	products  *fakeProducts
	users     *fakeUsers
	orders    *fakeOrders
	sessions  *fakeSessions
	tx        *fakeTx
	publisher *fakePublisher
	resolver  *services.CartResolver
	cart      services.CartService
	checkout  services.CheckoutService
}

func newHarness(products *fakeProducts, users *fakeUsers) *harness {
	h := &harness{
		products:  products,
		users:     users,
		orders:    newFakeOrders(),
		sessions:  newFakeSessions(),
		tx:        &fakeTx{},
		publisher: &fakePublisher{},
	}
	log := zap.NewNop()
	h.resolver = services.NewCartResolver(
		services.NewSessionCartStore(h.sessions, h.orders),
		services.NewDurableCartStore(h.users, h.orders),
	)
	h.cart = services.NewCartService(h.tx, h.resolver, h.products, nil, log)
	h.checkout = services.NewCheckoutService(
		h.tx,
		h.resolver,
		services.NewStockLedger(h.products, log),
		services.NewContactBinder(h.users, log),
		h.users,
		h.publisher,
		nil,
		log,
	)
	return h
}

func guest(session string) *services.CartRequest {
	return services.NewCartRequest(models.Anonymous(), session)
}

func member(username string) *services.CartRequest {
	return services.NewCartRequest(models.Actor{Username: username}, "sess-"+username)
}

var validForm = models.ContactForm{
	FirstName: "Jan",
	LastName:  "Kowalski",
	Phone:     "123456789",
	Address:   "Main Street 1",
}
