// Package memory is an in-process repository.Store. Transactions are serialized and run
// against a copy of the data that replaces the original only on commit.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/egannguyen/energystack-storefront/internal/apperr"
	"github.com/egannguyen/energystack-storefront/internal/entity"
	"github.com/egannguyen/energystack-storefront/internal/repository"
	"github.com/google/uuid"
)

type state struct {
	seq        int64
	products   map[string]entity.Product
	carts      map[string]entity.Cart // by id, without items
	sessions   map[string]string      // session id -> cart id
	cartItems  map[string]itemRow
	orders     map[string]entity.Order // without items
	orderItems map[string][]entity.OrderItem
	events     map[string][]entity.EventStoreRecord
}

type itemRow struct {
	seq  int64
	item entity.CartItem
}

func newState() *state {
	return &state{
		products:   map[string]entity.Product{},
		carts:      map[string]entity.Cart{},
		sessions:   map[string]string{},
		cartItems:  map[string]itemRow{},
		orders:     map[string]entity.Order{},
		orderItems: map[string][]entity.OrderItem{},
		events:     map[string][]entity.EventStoreRecord{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.seq = s.seq
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.cartItems {
		c.cartItems[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderItems {
		c.orderItems[k] = append([]entity.OrderItem(nil), v...)
	}
	for k, v := range s.events {
		c.events[k] = append([]entity.EventStoreRecord(nil), v...)
	}
	return c
}

// Store is a repository.Store held in memory.
type Store struct {
	mu     sync.Mutex
	data   *state
	faults map[string]error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: newState(), faults: map[string]error{}}
}

// InjectFault makes the next Tx call to op fail with err. The fault fires once.
func (s *Store) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// PutProduct inserts or replaces a product outside of any transaction.
func (s *Store) PutProduct(p entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.products[p.ID] = p
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	work := s.data.clone()
	if err := fn(ctx, &memTx{st: work, store: s}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) Products() repository.ProductRepository { return (*productRepository)(s) }
func (s *Store) Orders() repository.OrderRepository     { return (*orderRepository)(s) }
func (s *Store) Events() repository.EventStore          { return (*eventStore)(s) }

// fault pops the injected error for op. Callers hold s.mu.
func (s *Store) fault(op string) error {
	err, ok := s.faults[op]
	if !ok {
		return nil
	}
	delete(s.faults, op)
	return err
}

type productRepository Store

func (r *productRepository) List(ctx context.Context, filter entity.ProductFilter) (*entity.ProductPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	search := strings.ToLower(filter.Search)
	matched := []entity.Product{}
	for _, p := range r.data.products {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.MinPrice != nil && p.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := min(filter.Offset(), total)
	end := min(start+filter.Limit, total)

	return &entity.ProductPage{
		Products:   append([]entity.Product{}, matched[start:end]...),
		Pagination: entity.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

func (r *productRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.data.products[id]
	if !ok {
		return nil, apperr.NotFound("Product not found")
	}
	return &p, nil
}

func (r *productRepository) Seed(ctx context.Context, products []entity.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.data.products) > 0 {
		return nil
	}
	for _, p := range products {
		r.data.products[p.ID] = p
	}
	return nil
}

type orderRepository Store

func (r *orderRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.data.orders[id]
	if !ok {
		return nil, apperr.NotFound("Order not found")
	}
	o.Items = []entity.OrderItem{}
	for _, item := range r.data.orderItems[id] {
		if p, ok := r.data.products[item.ProductID]; ok {
			item.Product = &p
		}
		o.Items = append(o.Items, item)
	}
	return &o, nil
}

type eventStore Store

func (e *eventStore) LoadEvents(ctx context.Context, streamID string) ([]entity.EventStoreRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]entity.EventStoreRecord{}, e.data.events[streamID]...), nil
}

// memTx operates on a private copy of the store's state.
type memTx struct {
	st    *state
	store *Store
}

func (t *memTx) GetOrCreateCart(ctx context.Context, sessionID string, lock bool) (*entity.Cart, error) {
	if err := t.store.fault("GetOrCreateCart"); err != nil {
		return nil, err
	}
	if _, ok := t.st.sessions[sessionID]; !ok {
		now := time.Now()
		c := entity.Cart{ID: uuid.NewString(), SessionID: sessionID, CreatedAt: now, UpdatedAt: now}
		t.st.carts[c.ID] = c
		t.st.sessions[sessionID] = c.ID
	}
	return t.FindCart(ctx, sessionID, lock)
}

func (t *memTx) FindCart(ctx context.Context, sessionID string, lock bool) (*entity.Cart, error) {
	if err := t.store.fault("FindCart"); err != nil {
		return nil, err
	}
	id, ok := t.st.sessions[sessionID]
	if !ok {
		return nil, apperr.NotFound("Cart not found")
	}
	c := t.st.carts[id]
	c.Items = []entity.CartItem{}
	return &c, nil
}

func (t *memTx) CartItems(ctx context.Context, cartID string) ([]entity.CartItem, error) {
	if err := t.store.fault("CartItems"); err != nil {
		return nil, err
	}
	var rows []itemRow
	for _, row := range t.st.cartItems {
		if row.item.CartID == cartID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	items := make([]entity.CartItem, 0, len(rows))
	for _, row := range rows {
		item := row.item
		p := t.st.products[item.ProductID]
		item.Product = &p
		items = append(items, item)
	}
	return items, nil
}

func (t *memTx) FindCartItem(ctx context.Context, cartID, productID string) (*entity.CartItem, error) {
	for _, row := range t.st.cartItems {
		if row.item.CartID == cartID && row.item.ProductID == productID {
			item := row.item
			return &item, nil
		}
	}
	return nil, nil
}

func (t *memTx) FindCartItemByID(ctx context.Context, cartID, itemID string) (*entity.CartItem, error) {
	row, ok := t.st.cartItems[itemID]
	if !ok || row.item.CartID != cartID {
		return nil, apperr.NotFound("Cart item not found")
	}
	item := row.item
	return &item, nil
}

func (t *memTx) InsertCartItem(ctx context.Context, item *entity.CartItem) error {
	if err := t.store.fault("InsertCartItem"); err != nil {
		return err
	}
	if existing, _ := t.FindCartItem(ctx, item.CartID, item.ProductID); existing != nil {
		return fmt.Errorf("failed to insert cart item: duplicate product %s in cart %s", item.ProductID, item.CartID)
	}
	if _, ok := t.st.products[item.ProductID]; !ok {
		return fmt.Errorf("failed to insert cart item: unknown product %s", item.ProductID)
	}
	t.st.seq++
	stored := *item
	stored.Product = nil
	t.st.cartItems[item.ID] = itemRow{seq: t.st.seq, item: stored}
	return nil
}

func (t *memTx) SetCartItemQuantity(ctx context.Context, itemID string, quantity int) error {
	if err := t.store.fault("SetCartItemQuantity"); err != nil {
		return err
	}
	row, ok := t.st.cartItems[itemID]
	if !ok {
		return nil
	}
	row.item.Quantity = quantity
	row.item.UpdatedAt = time.Now()
	t.st.cartItems[itemID] = row
	return nil
}

func (t *memTx) DeleteCartItem(ctx context.Context, itemID string) error {
	if err := t.store.fault("DeleteCartItem"); err != nil {
		return err
	}
	delete(t.st.cartItems, itemID)
	return nil
}

func (t *memTx) ClearCart(ctx context.Context, cartID string) error {
	if err := t.store.fault("ClearCart"); err != nil {
		return err
	}
	for id, row := range t.st.cartItems {
		if row.item.CartID == cartID {
			delete(t.st.cartItems, id)
		}
	}
	return nil
}

func (t *memTx) LockProduct(ctx context.Context, productID string) (*entity.Product, error) {
	if err := t.store.fault("LockProduct"); err != nil {
		return nil, err
	}
	p, ok := t.st.products[productID]
	if !ok {
		return nil, apperr.NotFound("Product not found")
	}
	return &p, nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID string, quantity int) error {
	if err := t.store.fault("DecrementStock"); err != nil {
		return err
	}
	p, ok := t.st.products[productID]
	if !ok || p.Stock < quantity {
		return apperr.InsufficientStock(productID, "Insufficient stock")
	}
	p.Stock -= quantity
	p.UpdatedAt = time.Now()
	t.st.products[productID] = p
	return nil
}

func (t *memTx) InsertOrder(ctx context.Context, order *entity.Order) error {
	if err := t.store.fault("InsertOrder"); err != nil {
		return err
	}
	stored := *order
	stored.Items = nil
	t.st.orders[order.ID] = stored
	return nil
}

func (t *memTx) InsertOrderItem(ctx context.Context, item *entity.OrderItem) error {
	if err := t.store.fault("InsertOrderItem"); err != nil {
		return err
	}
	if _, ok := t.st.orders[item.OrderID]; !ok {
		return fmt.Errorf("failed to insert order item: unknown order %s", item.OrderID)
	}
	stored := *item
	stored.Product = nil
	t.st.orderItems[item.OrderID] = append(t.st.orderItems[item.OrderID], stored)
	return nil
}

func (t *memTx) FindOrder(ctx context.Context, orderID string, lock bool) (*entity.Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return nil, apperr.NotFound("Order not found")
	}
	o.Items = []entity.OrderItem{}
	return &o, nil
}

func (t *memTx) SetOrderStatus(ctx context.Context, orderID string, status entity.OrderStatus) error {
	if err := t.store.fault("SetOrderStatus"); err != nil {
		return err
	}
	o, ok := t.st.orders[orderID]
	if !ok {
		return apperr.NotFound("Order not found")
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	t.st.orders[orderID] = o
	return nil
}

func (t *memTx) AppendEvent(ctx context.Context, streamID, streamType string, event entity.Event) error {
	if err := t.store.fault("AppendEvent"); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}
	history := t.st.events[streamID]
	t.st.events[streamID] = append(history, entity.EventStoreRecord{
		ID:         uuid.NewString(),
		StreamID:   streamID,
		StreamType: streamType,
		Version:    len(history) + 1,
		EventType:  event.EventType(),
		Payload:    payload,
		CreatedAt:  time.Now(),
	})
	return nil
}
