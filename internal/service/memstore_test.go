package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/HadichaRaxmat/online-market-api/internal/mailer"
	"github.com/HadichaRaxmat/online-market-api/internal/models"
	"github.com/HadichaRaxmat/online-market-api/internal/store"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for the SQL store. RunInTx snapshots
// the state before running fn and restores it when fn fails, mirroring
// the rollback semantics the services rely on.
type memStore struct {
	users         map[int64]*models.User
	verifications map[int64]*models.EmailVerification
	categories    map[int64]*models.Category
	products      map[int64]*models.Product
	favorites     map[int64]*models.Favorite
	baskets       map[int64]*models.Basket
	comments      map[int64]*models.Comment
	orders        map[int64]*models.Order
	orderItems    map[int64]*models.OrderItem
	payments      map[int64]*models.Payment
	faqs          []models.Faq
	nextID        int64
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[int64]*models.User),
		verifications: make(map[int64]*models.EmailVerification),
		categories:    make(map[int64]*models.Category),
		products:      make(map[int64]*models.Product),
		favorites:     make(map[int64]*models.Favorite),
		baskets:       make(map[int64]*models.Basket),
		comments:      make(map[int64]*models.Comment),
		orders:        make(map[int64]*models.Order),
		orderItems:    make(map[int64]*models.OrderItem),
		payments:      make(map[int64]*models.Payment),
		nextID:        0,
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func cloneMap[V any](src map[int64]*V) map[int64]*V {
	dst := make(map[int64]*V, len(src))
	for k, v := range src {
		c := *v
		dst[k] = &c
	}
	return dst
}

func (m *memStore) snapshot() *memStore {
	c := *m
	c.users = cloneMap(m.users)
	c.verifications = cloneMap(m.verifications)
	c.categories = cloneMap(m.categories)
	c.products = cloneMap(m.products)
	// ProductCount is a pointer; deep-copy it so the snapshot does not
	// share the counter mutated by AdjustProductCounts.
	for _, p := range c.products {
		if p.ProductCount != nil {
			v := *p.ProductCount
			p.ProductCount = &v
		}
	}
	c.favorites = cloneMap(m.favorites)
	c.baskets = cloneMap(m.baskets)
	c.comments = cloneMap(m.comments)
	c.orders = cloneMap(m.orders)
	c.orderItems = cloneMap(m.orderItems)
	c.payments = cloneMap(m.payments)
	return &c
}

func (m *memStore) RunInTx(_ context.Context, fn func(tx store.Tx) error) error {
	saved := m.snapshot()
	if err := fn(&memTx{s: m}); err != nil {
		*m = *saved
		return err
	}
	return nil
}

// seed helpers

func (m *memStore) addUser(email string, balance decimal.Decimal, active bool) *models.User {
	u := &models.User{
		ID:       m.id(),
		Email:    email,
		Balance:  balance,
		IsActive: active,
	}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addProduct(name string, price decimal.Decimal, stock *int) *models.Product {
	p := &models.Product{
		ID:           m.id(),
		Name:         name,
		Price:        price,
		ProductCount: stock,
	}
	m.products[p.ID] = p
	return p
}

func (m *memStore) addBasket(userID, productID int64, qty int) *models.Basket {
	b := &models.Basket{
		ID:        m.id(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
	}
	m.baskets[b.ID] = b
	return b
}

func intPtr(v int) *int { return &v }

// UserStorage

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return store.ErrDuplicate
		}
	}
	user.ID = m.id()
	user.CreatedAt = time.Now()
	c := *user
	m.users[user.ID] = &c
	return nil
}

func (m *memStore) UserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UserByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *memStore) UpdateUser(_ context.Context, id int64, email, passwordHash string) error {
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	for _, other := range m.users {
		if other.ID != id && other.Email == email {
			return store.ErrDuplicate
		}
	}
	u.Email = email
	u.PasswordHash = passwordHash
	return nil
}

func (m *memStore) CreateVerification(_ context.Context, v *models.EmailVerification) error {
	for _, existing := range m.verifications {
		if existing.Code == v.Code {
			return store.ErrDuplicate
		}
	}
	v.ID = m.id()
	c := *v
	m.verifications[v.ID] = &c
	return nil
}

// CatalogStorage

func (m *memStore) Categories(_ context.Context) ([]models.Category, error) {
	out := make([]models.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) Products(_ context.Context, filter store.ProductFilter) ([]models.Product, error) {
	var out []models.Product
	for _, p := range m.products {
		if filter.CategoryID != nil && p.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.MinPrice != nil && p.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		if filter.Search != "" &&
			!strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) &&
			!strings.Contains(strings.ToLower(p.Description), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ProductByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m *memStore) CommentsByProduct(_ context.Context, productID int64) ([]models.Comment, error) {
	var out []models.Comment
	for _, c := range m.comments {
		if c.ProductID == productID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateComment(_ context.Context, comment *models.Comment) error {
	comment.ID = m.id()
	comment.CreatedAt = time.Now()
	c := *comment
	m.comments[comment.ID] = &c
	return nil
}

func (m *memStore) FavoritesByUser(_ context.Context, userID int64) ([]models.Favorite, error) {
	var out []models.Favorite
	for _, f := range m.favorites {
		if f.UserID == userID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateFavorite(_ context.Context, favorite *models.Favorite) error {
	for _, f := range m.favorites {
		if f.UserID == favorite.UserID && f.ProductID == favorite.ProductID {
			return store.ErrDuplicate
		}
	}
	favorite.ID = m.id()
	favorite.AddedAt = time.Now()
	c := *favorite
	m.favorites[favorite.ID] = &c
	return nil
}

func (m *memStore) DeleteFavoriteByProduct(_ context.Context, userID, productID int64) error {
	for id, f := range m.favorites {
		if f.UserID == userID && f.ProductID == productID {
			delete(m.favorites, id)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) Faqs(_ context.Context) ([]models.Faq, error) {
	return append([]models.Faq(nil), m.faqs...), nil
}

// BasketStorage

func (m *memStore) BasketsByUser(_ context.Context, userID int64) ([]models.Basket, error) {
	var out []models.Basket
	for _, b := range m.baskets {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpsertBasket(_ context.Context, basket *models.Basket) error {
	for _, b := range m.baskets {
		if b.UserID == basket.UserID && b.ProductID == basket.ProductID {
			b.Quantity = basket.Quantity
			basket.ID = b.ID
			basket.AddedAt = b.AddedAt
			return nil
		}
	}
	basket.ID = m.id()
	basket.AddedAt = time.Now()
	c := *basket
	m.baskets[basket.ID] = &c
	return nil
}

func (m *memStore) DeleteBasketLine(_ context.Context, userID, basketID int64) error {
	b, ok := m.baskets[basketID]
	if !ok || b.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.baskets, basketID)
	return nil
}

// OrderStorage

func (m *memStore) OrdersByUser(_ context.Context, userID int64) ([]models.Order, error) {
	var out []models.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) OrderByID(_ context.Context, userID, orderID int64) (*models.Order, error) {
	o, ok := m.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, store.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (m *memStore) OrderItemsByOrderIDs(_ context.Context, orderIDs []int64) ([]models.OrderItem, error) {
	want := make(map[int64]bool, len(orderIDs))
	for _, id := range orderIDs {
		want[id] = true
	}
	var out []models.OrderItem
	for _, item := range m.orderItems {
		if want[item.OrderID] {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PaymentStorage

func (m *memStore) PaymentsByUser(_ context.Context, userID int64) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range m.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// SweeperStorage

func (m *memStore) ExpiredPendingOrderIDs(_ context.Context, now time.Time) ([]int64, error) {
	var out []int64
	for _, o := range m.orders {
		if o.Status == models.OrderStatusPending && o.ExpiresAt.Before(now) {
			out = append(out, o.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// memTx implements store.Tx directly over the memStore; RunInTx handles
// rollback by restoring the snapshot.
type memTx struct {
	s *memStore
}

func (t *memTx) BasketsForUser(_ context.Context, userID int64, ids []int64) ([]models.Basket, error) {
	var out []models.Basket
	for _, id := range ids {
		b, ok := t.s.baskets[id]
		if !ok || b.UserID != userID {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (t *memTx) ProductForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	return t.s.ProductByID(ctx, id)
}

func (t *memTx) AdjustProductCounts(_ context.Context, productID int64, stockDelta, soldDelta int) error {
	p, ok := t.s.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	if p.ProductCount != nil {
		*p.ProductCount += stockDelta
	}
	p.SoldCount += soldDelta
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, order *models.Order) error {
	order.ID = t.s.id()
	order.CreatedAt = time.Now()
	c := *order
	t.s.orders[order.ID] = &c
	return nil
}

func (t *memTx) InsertOrderItems(_ context.Context, items []models.OrderItem) error {
	for i := range items {
		items[i].ID = t.s.id()
		c := items[i]
		t.s.orderItems[c.ID] = &c
	}
	return nil
}

func (t *memTx) DeleteBaskets(_ context.Context, userID int64, ids []int64) error {
	for _, id := range ids {
		if b, ok := t.s.baskets[id]; ok && b.UserID == userID {
			delete(t.s.baskets, id)
		}
	}
	return nil
}

func (t *memTx) LatestPendingOrder(_ context.Context, userID int64) (*models.Order, error) {
	var latest *models.Order
	for _, o := range t.s.orders {
		if o.UserID != userID || o.Status != models.OrderStatusPending {
			continue
		}
		if latest == nil || o.ID > latest.ID {
			latest = o
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	c := *latest
	return &c, nil
}

func (t *memTx) OrderForUpdate(_ context.Context, id int64) (*models.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (t *memTx) OrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return t.s.OrderItemsByOrderIDs(ctx, []int64{orderID})
}

func (t *memTx) UpdateOrderStatus(_ context.Context, orderID int64, status string) error {
	o, ok := t.s.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = status
	return nil
}

func (t *memTx) UserForUpdate(ctx context.Context, id int64) (*models.User, error) {
	return t.s.UserByID(ctx, id)
}

func (t *memTx) ChargeBalance(_ context.Context, userID int64, amount decimal.Decimal) error {
	u, ok := t.s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	if u.Balance.LessThan(amount) {
		return store.ErrInsufficientFunds
	}
	u.Balance = u.Balance.Sub(amount)
	return nil
}

func (t *memTx) DepositBalance(_ context.Context, userID int64, amount decimal.Decimal) error {
	u, ok := t.s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.Balance = u.Balance.Add(amount)
	return nil
}

func (t *memTx) InsertPayment(_ context.Context, payment *models.Payment) error {
	payment.ID = t.s.id()
	payment.CreatedAt = time.Now()
	c := *payment
	t.s.payments[payment.ID] = &c
	return nil
}

func (t *memTx) PaymentForUpdate(_ context.Context, id, userID int64) (*models.Payment, error) {
	p, ok := t.s.payments[id]
	if !ok || p.UserID != userID {
		return nil, store.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (t *memTx) MarkPaymentPaid(_ context.Context, paymentID int64, transactionID string) error {
	p, ok := t.s.payments[paymentID]
	if !ok {
		return store.ErrNotFound
	}
	p.Status = models.PaymentStatusPaid
	p.IsConfirmed = true
	p.TransactionID = transactionID
	return nil
}

func (t *memTx) CancelPendingPayments(_ context.Context, orderID int64) (int64, error) {
	var n int64
	for _, p := range t.s.payments {
		if p.OrderID != nil && *p.OrderID == orderID && p.Status == models.PaymentStatusPending {
			p.Status = models.PaymentStatusCancelled
			n++
		}
	}
	return n, nil
}

func (t *memTx) VerificationByCode(_ context.Context, code string) (*models.EmailVerification, error) {
	for _, v := range t.s.verifications {
		if v.Code == code {
			c := *v
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) ActivateUser(_ context.Context, userID int64) error {
	u, ok := t.s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.IsActive = true
	return nil
}

func (t *memTx) DeleteVerification(_ context.Context, id int64) error {
	delete(t.s.verifications, id)
	return nil
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	registered []*models.UserRegisteredEvent
	created    []*models.OrderCreatedEvent
	pending    []*models.PaymentPendingEvent
	paid       []*models.PaymentPaidEvent
	expired    []*models.OrdersExpiredEvent
}

func (r *recordingPublisher) PublishUserRegistered(_ context.Context, e *models.UserRegisteredEvent) error {
	r.registered = append(r.registered, e)
	return nil
}

func (r *recordingPublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	r.created = append(r.created, e)
	return nil
}

func (r *recordingPublisher) PublishPaymentPending(_ context.Context, e *models.PaymentPendingEvent) error {
	r.pending = append(r.pending, e)
	return nil
}

func (r *recordingPublisher) PublishPaymentPaid(_ context.Context, e *models.PaymentPaidEvent) error {
	r.paid = append(r.paid, e)
	return nil
}

func (r *recordingPublisher) PublishOrdersExpired(_ context.Context, e *models.OrdersExpiredEvent) error {
	r.expired = append(r.expired, e)
	return nil
}

// recordingMailer captures outbound messages for assertions.
type recordingMailer struct {
	sent []mailer.Message
}

func (r *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}
